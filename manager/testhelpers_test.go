// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"testing"

	"github.com/ludari/ludari/storage"
	"github.com/ludari/ludari/storage/memstore"
)

type testLogger struct{}

func (testLogger) Error(string) {}
func (testLogger) Warn(string)  {}
func (testLogger) Log(string)   {}
func (testLogger) Debug(string) {}

// newTestManager builds and initializes a Manager against a fresh memstore
// and the default in-memory cache, for use by every test in this package.
func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := New(Options{
		Storage:   memstore.New(),
		Logger:    testLogger{},
		ReplicaID: "test-replica-0001",
		Enabled:   true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { m.Destroy(context.Background()) })
	return m
}

func jobTypePtr(t storage.JobType) *storage.JobType { return &t }
