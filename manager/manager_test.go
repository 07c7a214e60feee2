// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/ludari/ludari/cache"
	"github.com/ludari/ludari/cache/inmemory"
	"github.com/ludari/ludari/storage"
	"github.com/ludari/ludari/storage/memstore"
)

func TestNewRequiresStorageAndLogger(t *testing.T) {
	if _, err := New(Options{Logger: testLogger{}}); !errors.Is(err, ErrMissingStorage) {
		t.Fatalf("expected ErrMissingStorage, got %v", err)
	}
	if _, err := New(Options{Storage: memstore.New()}); !errors.Is(err, ErrMissingLogger) {
		t.Fatalf("expected ErrMissingLogger, got %v", err)
	}
}

func TestNewRejectsWeakReplicaID(t *testing.T) {
	_, err := New(Options{Storage: memstore.New(), Logger: testLogger{}, ReplicaID: "short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for a too-short replica id, got %v", err)
	}
}

func TestNewGeneratesReplicaIDWhenAbsent(t *testing.T) {
	m, err := New(Options{Storage: memstore.New(), Logger: testLogger{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.replicaID == "" {
		t.Fatal("expected a generated replica id")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize should be a no-op, got %v", err)
	}
}

func TestPublicAPIRequiresInitialize(t *testing.T) {
	m, err := New(Options{Storage: memstore.New(), Logger: testLogger{}, ReplicaID: "uninitialized-0001"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.GetJob(context.Background(), "anything"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestDestroyIsIdempotentAndBlocksFurtherAPI(t *testing.T) {
	m := newTestManager(t)
	m.Destroy(context.Background())
	m.Destroy(context.Background())

	if _, err := m.GetJob(context.Background(), "anything"); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed after Destroy, got %v", err)
	}
}

// closeSpyCache wraps the default cache.Cache contract plus a Close method,
// mirroring cache/inmemory's shape, so Destroy's type-switch cache teardown
// can be observed without depending on inmemory's internals.
type closeSpyCache struct {
	cache.Cache
	closed bool
}

func (c *closeSpyCache) Close() { c.closed = true }

func TestDestroyClosesCloseableCache(t *testing.T) {
	spy := &closeSpyCache{Cache: inmemory.New()}
	m, err := New(Options{
		Storage:   memstore.New(),
		Logger:    testLogger{},
		Cache:     spy,
		ReplicaID: "close-spy-replica-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	m.Destroy(context.Background())

	if !spy.closed {
		t.Fatal("expected Destroy to call Close on a cache backend that exposes it")
	}
}

func TestInitializeCreatesControlAndWatchJob(t *testing.T) {
	m := newTestManager(t)

	control, err := m.GetControl(context.Background())
	if err != nil {
		t.Fatalf("GetControl: %v", err)
	}
	if control == nil {
		t.Fatal("expected Control to be created on Initialize")
	}
	if !control.Enabled {
		t.Fatal("expected a fresh Control to default to enabled")
	}
	if len(control.Replicas) != 1 || control.Replicas[0] != m.replicaID {
		t.Fatalf("expected Control.Replicas to contain only self, got %v", control.Replicas)
	}

	watch, err := m.storage.FindJobByName(context.Background(), storage.WatchJobName)
	if err != nil {
		t.Fatalf("FindJobByName: %v", err)
	}
	if watch == nil {
		t.Fatal("expected the reserved watch job to be created during prepare")
	}
}
