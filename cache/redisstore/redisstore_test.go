package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newUnreachableStore points at a closed port so every call fails fast with
// a network error, exercising the wrap-and-return-error paths without
// requiring a live Redis server in this unit-test tier.
func newUnreachableStore() *Store {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	return New(client)
}

func TestAcquireLockSurfacesConnectionError(t *testing.T) {
	s := newUnreachableStore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := s.AcquireLock(ctx, "nightly-report", time.Minute); err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}

func TestIsHealthyFalseWhenUnreachable(t *testing.T) {
	s := newUnreachableStore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if s.IsHealthy(ctx) {
		t.Fatal("expected IsHealthy to report false for an unreachable server")
	}
}

func TestGetJobContextSurfacesConnectionError(t *testing.T) {
	s := newUnreachableStore()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := s.GetJobContext(ctx, "job-1"); err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}
