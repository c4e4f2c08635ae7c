package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// lockPrefix keeps computation locks out of the result keyspace.
const lockPrefix = "lock:"

// LockKey names the lock for one (computation kind, subject) pair.
func LockKey(kind, subject string) string {
	return lockPrefix + kind + ":" + subject
}

// Locker manages ephemeral markers with their own TTL. A lock signals that a
// computation is in flight; its only payload is the holder's token.
type Locker interface {
	// Acquire atomically sets the lock if absent. It reports whether this
	// caller now holds it and, if so, the token that releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)

	// Held reports whether an unexpired lock exists.
	Held(ctx context.Context, key string) (bool, error)

	// Release deletes the lock only while it still carries token. A lock
	// that expired and was taken by another holder is left alone.
	Release(ctx context.Context, key, token string) error
}

func newLockToken() string {
	return uuid.NewString()
}
