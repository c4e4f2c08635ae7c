package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a persistent single-node cache. Entries use badger's native TTL,
// so expired keys are invisible to reads and reclaimed by compaction.
type Badger struct {
	db         *badger.DB
	defaultTTL time.Duration
}

type BadgerConfig struct {
	// Path is the data directory. Empty runs in memory.
	Path       string        `koanf:"path"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	return &Badger{db: db, defaultTTL: cfg.DefaultTTL}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return out, true, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ttl = secondsTTL(ttl)
	if ttl == 0 {
		ttl = b.defaultTTL
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Locker() *BadgerLocker {
	return &BadgerLocker{cache: b}
}

// BadgerLocker implements Locker with a read-then-write transaction. A
// concurrent writer makes the commit fail with ErrConflict, which counts as
// "not acquired".
type BadgerLocker struct {
	cache *Badger
}

func (l *BadgerLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	ttl = secondsTTL(ttl)
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	token := newLockToken()
	acquired := false
	err := l.cache.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.SetEntry(badger.NewEntry([]byte(key), []byte(token)).WithTTL(ttl)); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger lock: %w", err)
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

func (l *BadgerLocker) Held(ctx context.Context, key string) (bool, error) {
	_, ok, err := l.cache.Get(ctx, key)
	return ok, err
}

// Release compares and deletes in one transaction. A conflicting writer
// means the lock changed hands, so the commit failure is not an error.
func (l *BadgerLocker) Release(_ context.Context, key, token string) error {
	err := l.cache.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		held, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(held) != token {
			return nil
		}
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("badger unlock: %w", err)
	}
	return nil
}
