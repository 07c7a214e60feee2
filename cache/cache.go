// Package cache defines the distributed-coordination contract the Manager
// uses for locking, per-job execution context, monotonic batch counters, and
// replica liveness. Every method is non-throwing by design: back ends signal
// unavailability through the (bool, error) and documented fallback values
// rather than panicking, since coordination must degrade gracefully when the
// cache is unreachable.
package cache

import (
	"context"
	"time"
)

// Lock represents a held distributed lock and its fencing value. The
// fencing value must be presented back to Release/Extend so a lock can only
// be released or extended by the holder that acquired it.
type Lock struct {
	Key   string
	Value string
}

// Cache is the coordination contract consumed by the Manager.
type Cache interface {
	// AcquireLock attempts to acquire an exclusive, TTL-bound lock for key.
	// Returns (nil, nil) if the lock is already held by someone else.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error)

	// ReleaseLock releases lock if it is still the current holder. Returns
	// false if the lock had already expired or been taken by another holder.
	ReleaseLock(ctx context.Context, lock *Lock) (bool, error)

	// ExtendLock extends lock's TTL if it is still the current holder.
	// Returns false if the lock had already expired or been taken by
	// another holder.
	ExtendLock(ctx context.Context, lock *Lock, ttl time.Duration) (bool, error)

	// SetJobContext stores an opaque execution context for jobID, expiring
	// after ttl.
	SetJobContext(ctx context.Context, jobID string, value map[string]any, ttl time.Duration) error

	// GetJobContext returns the stored execution context for jobID, or nil
	// if absent or expired.
	GetJobContext(ctx context.Context, jobID string) (map[string]any, error)

	// DeleteJobContext removes the stored execution context for jobID.
	DeleteJobContext(ctx context.Context, jobID string) error

	// IncrementBatch atomically increments and returns the named monotonic
	// counter, creating it at 1 if absent.
	IncrementBatch(ctx context.Context, name string) (int64, error)

	// GetBatch returns the current value of the named counter, or 0 if
	// absent.
	GetBatch(ctx context.Context, name string) (int64, error)

	// ResetBatch resets the named counter to zero.
	ResetBatch(ctx context.Context, name string) error

	// MarkReplicaAlive records a liveness heartbeat for replicaID, expiring
	// after ttl.
	MarkReplicaAlive(ctx context.Context, replicaID string, ttl time.Duration) error

	// IsReplicaAlive reports whether replicaID has a live heartbeat.
	IsReplicaAlive(ctx context.Context, replicaID string) (bool, error)

	// IsHealthy reports whether the cache back end is currently reachable.
	IsHealthy(ctx context.Context) bool
}
