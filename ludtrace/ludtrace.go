// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package ludtrace provides concurrent-safe trace ID generation so every log
// line and JobRun emitted by a replica can be correlated back to the firing
// that produced it.
package ludtrace

import (
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	initIndex = 10000000 // Initial sequence value for each prefix epoch.
	indexBase = 36       // Base used to encode sequence and timestamp.
)

var (
	hostnameOnce sync.Once
	hostname     string
)

// ID generates unique trace IDs with a host+timestamp prefix.
type ID struct {
	index  uint64
	prefix string
	mu     sync.Mutex
}

// New creates a trace ID generator initialized with host prefix data.
func New() *ID {
	t := &ID{index: initIndex}
	t.updatePrefix()
	return t
}

func (t *ID) updatePrefix() {
	var err error

	t.mu.Lock()
	defer t.mu.Unlock()

	hostnameOnce.Do(func() {
		hostname, err = os.Hostname()
		if err != nil {
			log.Printf("ludtrace: failed to get hostname: %v", err)
			hostname = "unknown"
		}
	})

	t.prefix = hostname + "-" + strconv.FormatInt(time.Now().UnixNano(), indexBase) + "-"
	t.index = initIndex
}

// Next returns a new unique trace ID string.
func (t *ID) Next() string {
	newIndex := atomic.AddUint64(&t.index, 1)

	if newIndex == 0 {
		if atomic.LoadUint64(&t.index) == 0 {
			t.updatePrefix()
		}
	}

	return t.prefix + strconv.FormatUint(newIndex, indexBase)
}
