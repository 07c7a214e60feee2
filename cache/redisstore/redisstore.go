// Package redisstore is a go-redis/v9-backed implementation of cache.Cache.
// Lock release and extension use compare-and-swap Lua scripts so a holder
// can never release or extend a lock it no longer owns, mirroring the
// fencing-value discipline of a typical distributed job lock manager.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ludari/ludari/cache"
)

const (
	keyPrefixLock    = "ludari:lock:"
	keyPrefixContext = "ludari:jobctx:"
	keyPrefixBatch   = "ludari:batch:"
	keyPrefixReplica = "ludari:replica:"
)

var releaseScript = redis.NewScript(`
local val = redis.call("get", KEYS[1])
if val == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

var extendScript = redis.NewScript(`
local val = redis.call("get", KEYS[1])
if val == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Store is a Redis-backed cache.Cache.
type Store struct {
	client *redis.Client
}

// New wraps an already-configured go-redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error) {
	value := uuid.NewString()
	ok, err := s.client.SetNX(ctx, keyPrefixLock+key, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &cache.Lock{Key: key, Value: value}, nil
}

func (s *Store) ReleaseLock(ctx context.Context, lock *cache.Lock) (bool, error) {
	if lock == nil {
		return false, nil
	}
	res, err := releaseScript.Run(ctx, s.client, []string{keyPrefixLock + lock.Key}, lock.Value).Int()
	if err != nil {
		return false, fmt.Errorf("redisstore: release lock %q: %w", lock.Key, err)
	}
	return res == 1, nil
}

func (s *Store) ExtendLock(ctx context.Context, lock *cache.Lock, ttl time.Duration) (bool, error) {
	if lock == nil {
		return false, nil
	}
	res, err := extendScript.Run(ctx, s.client, []string{keyPrefixLock + lock.Key}, lock.Value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redisstore: extend lock %q: %w", lock.Key, err)
	}
	return res == 1, nil
}

func (s *Store) SetJobContext(ctx context.Context, jobID string, value map[string]any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redisstore: marshal job context %q: %w", jobID, err)
	}
	if err := s.client.Set(ctx, keyPrefixContext+jobID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set job context %q: %w", jobID, err)
	}
	return nil
}

func (s *Store) GetJobContext(ctx context.Context, jobID string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, keyPrefixContext+jobID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get job context %q: %w", jobID, err)
	}
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal job context %q: %w", jobID, err)
	}
	return value, nil
}

func (s *Store) DeleteJobContext(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, keyPrefixContext+jobID).Err(); err != nil {
		return fmt.Errorf("redisstore: delete job context %q: %w", jobID, err)
	}
	return nil
}

func (s *Store) IncrementBatch(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Incr(ctx, keyPrefixBatch+name).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: increment batch %q: %w", name, err)
	}
	return v, nil
}

func (s *Store) GetBatch(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Get(ctx, keyPrefixBatch+name).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redisstore: get batch %q: %w", name, err)
	}
	return v, nil
}

func (s *Store) ResetBatch(ctx context.Context, name string) error {
	if err := s.client.Set(ctx, keyPrefixBatch+name, 0, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: reset batch %q: %w", name, err)
	}
	return nil
}

func (s *Store) MarkReplicaAlive(ctx context.Context, replicaID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefixReplica+replicaID, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: mark replica alive %q: %w", replicaID, err)
	}
	return nil
}

// replicaHealthyMargin is the minimum remaining TTL a replica presence
// marker must carry to count as healthy, per the cache contract's
// pingReplica rule.
const replicaHealthyMargin = 5 * time.Second

func (s *Store) IsReplicaAlive(ctx context.Context, replicaID string) (bool, error) {
	ttl, err := s.client.PTTL(ctx, keyPrefixReplica+replicaID).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: check replica liveness %q: %w", replicaID, err)
	}
	// PTTL returns a negative duration when the key is absent (-2) or has
	// no expiry (-1); neither counts as a healthy, TTL-bounded replica.
	return ttl > replicaHealthyMargin, nil
}

func (s *Store) IsHealthy(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

var _ cache.Cache = (*Store)(nil)
