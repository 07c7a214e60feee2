// Package inmemory is a single-process cache.Cache implementation. The
// original design chained each cache operation onto a shared promise so
// operations serialized in enqueue order; this implementation replaces that
// with a dedicated worker goroutine draining a channel of submitted
// operations, which gives the same "one operation runs at a time, in
// submission order" guarantee using a genuine concurrency primitive.
package inmemory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ludari/ludari/cache"
)

type op func(s *state)

type state struct {
	locks    map[string]lockEntry
	contexts map[string]ttlEntry[map[string]any]
	batches  map[string]int64
	replicas map[string]time.Time
}

type lockEntry struct {
	value   string
	expires time.Time
}

type ttlEntry[T any] struct {
	value   T
	expires time.Time
}

// Store serializes every cache operation through a single worker goroutine.
type Store struct {
	ops  chan op
	done chan struct{}
}

// New starts the worker goroutine and returns a ready-to-use Store. Close
// must be called to stop the goroutine when the Store is no longer needed.
func New() *Store {
	s := &Store{
		ops:  make(chan op),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Store) run() {
	st := &state{
		locks:    make(map[string]lockEntry),
		contexts: make(map[string]ttlEntry[map[string]any]),
		batches:  make(map[string]int64),
		replicas: make(map[string]time.Time),
	}
	for {
		select {
		case o := <-s.ops:
			o(st)
		case <-s.done:
			return
		}
	}
}

// Close stops the worker goroutine. Subsequent calls to Store methods will
// block forever; callers must not use a Store after Close.
func (s *Store) Close() {
	close(s.done)
}

// submit runs fn on the worker goroutine and waits for it to complete,
// giving every exported method atomic, enqueue-ordered execution.
func (s *Store) submit(ctx context.Context, fn op) error {
	result := make(chan struct{})
	wrapped := func(st *state) {
		fn(st)
		close(result)
	}
	select {
	case s.ops <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isExpired(expires time.Time, now time.Time) bool {
	return !expires.IsZero() && now.After(expires)
}

func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error) {
	var lock *cache.Lock
	err := s.submit(ctx, func(st *state) {
		now := time.Now()
		if existing, ok := st.locks[key]; ok && !isExpired(existing.expires, now) {
			return
		}
		value := uuid.NewString()
		expires := time.Time{}
		if ttl > 0 {
			expires = now.Add(ttl)
		}
		st.locks[key] = lockEntry{value: value, expires: expires}
		lock = &cache.Lock{Key: key, Value: value}
	})
	return lock, err
}

func (s *Store) ReleaseLock(ctx context.Context, l *cache.Lock) (bool, error) {
	if l == nil {
		return false, nil
	}
	var released bool
	err := s.submit(ctx, func(st *state) {
		existing, ok := st.locks[l.Key]
		if !ok || existing.value != l.Value || isExpired(existing.expires, time.Now()) {
			return
		}
		delete(st.locks, l.Key)
		released = true
	})
	return released, err
}

func (s *Store) ExtendLock(ctx context.Context, l *cache.Lock, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, nil
	}
	var extended bool
	err := s.submit(ctx, func(st *state) {
		existing, ok := st.locks[l.Key]
		if !ok || existing.value != l.Value || isExpired(existing.expires, time.Now()) {
			return
		}
		existing.expires = time.Now().Add(ttl)
		st.locks[l.Key] = existing
		extended = true
	})
	return extended, err
}

func (s *Store) SetJobContext(ctx context.Context, jobID string, value map[string]any, ttl time.Duration) error {
	return s.submit(ctx, func(st *state) {
		cp := make(map[string]any, len(value))
		for k, v := range value {
			cp[k] = v
		}
		expires := time.Time{}
		if ttl > 0 {
			expires = time.Now().Add(ttl)
		}
		st.contexts[jobID] = ttlEntry[map[string]any]{value: cp, expires: expires}
	})
}

func (s *Store) GetJobContext(ctx context.Context, jobID string) (map[string]any, error) {
	var out map[string]any
	err := s.submit(ctx, func(st *state) {
		entry, ok := st.contexts[jobID]
		if !ok || isExpired(entry.expires, time.Now()) {
			return
		}
		cp := make(map[string]any, len(entry.value))
		for k, v := range entry.value {
			cp[k] = v
		}
		out = cp
	})
	return out, err
}

func (s *Store) DeleteJobContext(ctx context.Context, jobID string) error {
	return s.submit(ctx, func(st *state) {
		delete(st.contexts, jobID)
	})
}

func (s *Store) IncrementBatch(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.submit(ctx, func(st *state) {
		st.batches[name]++
		v = st.batches[name]
	})
	return v, err
}

func (s *Store) GetBatch(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.submit(ctx, func(st *state) {
		v = st.batches[name]
	})
	return v, err
}

func (s *Store) ResetBatch(ctx context.Context, name string) error {
	return s.submit(ctx, func(st *state) {
		st.batches[name] = 0
	})
}

func (s *Store) MarkReplicaAlive(ctx context.Context, replicaID string, ttl time.Duration) error {
	return s.submit(ctx, func(st *state) {
		st.replicas[replicaID] = time.Now().Add(ttl)
	})
}

// replicaHealthyMargin is the minimum remaining TTL a replica presence
// marker must carry to count as healthy, per the cache contract's
// pingReplica rule.
const replicaHealthyMargin = 5 * time.Second

func (s *Store) IsReplicaAlive(ctx context.Context, replicaID string) (bool, error) {
	var alive bool
	err := s.submit(ctx, func(st *state) {
		expires, ok := st.replicas[replicaID]
		alive = ok && expires.Sub(time.Now()) > replicaHealthyMargin
	})
	return alive, err
}

func (s *Store) IsHealthy(_ context.Context) bool {
	return true
}

var _ cache.Cache = (*Store)(nil)
