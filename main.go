// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package main wires configuration loading, dependency bootstrap, and process
// lifecycle waiting for the ludari orchestration service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/ludari/ludari/bootstrap"
	"github.com/ludari/ludari/ludconfig"
)

// main initializes runtime settings, boots the application, and blocks until
// an OS termination signal arrives.
func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := ludconfig.Load()
	if err != nil {
		log.Fatal("Loading config error: ", err)
	}

	a, err := bootstrap.NewApp(cfg)
	if err != nil {
		log.Fatal("New App error: ", err)
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		log.Fatal("Start error: ", err)
	}

	s := waitForSignal()
	log.Println("Signal received, shutting down.", s)

	a.Shutdown(ctx)
}

// waitForSignal blocks until an interrupt signal (os.Interrupt) is received.
func waitForSignal() os.Signal {
	signalChan := make(chan os.Signal, 1)
	defer close(signalChan)
	signal.Notify(signalChan, os.Interrupt)
	s := <-signalChan
	signal.Stop(signalChan)
	return s
}
