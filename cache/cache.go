// Package cache is the key/value store with TTL shared by every component:
// per-book embeddings, per-user recommendation lists, computed summaries and
// book detail views. Computation locks live behind the separate Locker type
// so "a computation is running" can never be mistaken for "a result is ready".
//
// Keys are opaque to the backends; use the helpers in keys.go to build them.
package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Cache stores opaque byte payloads under string keys. A present, unexpired
// entry is authoritative; expired entries behave exactly like absent ones.
// Each Set is atomic, concurrent Sets on one key are last-write-wins.
type Cache interface {
	// Get returns the value and true, or nil and false when absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl (whole seconds, rounded up). A non-positive
	// ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Close() error
}

// GetJSON decodes the entry at key into dest. It reports false on a miss.
func GetJSON(ctx context.Context, c Cache, key string, dest any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// secondsTTL rounds ttl up to whole seconds.
func secondsTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ((ttl + time.Second - 1) / time.Second) * time.Second
}
