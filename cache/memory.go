package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local cache backed by go-cache. Expired items are
// never returned; a janitor removes them every cleanup interval.
type Memory struct {
	items      *gocache.Cache
	defaultTTL time.Duration
}

type MemoryConfig struct {
	DefaultTTL      time.Duration `koanf:"default_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}
}

func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &Memory{
		items:      gocache.New(cfg.DefaultTTL, cfg.CleanupInterval),
		defaultTTL: cfg.DefaultTTL,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := m.items.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ttl = secondsTTL(ttl)
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	data := make([]byte, len(value))
	copy(data, value)
	m.items.Set(key, data, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *Memory) Len() int {
	return m.items.ItemCount()
}

func (m *Memory) Flush() {
	m.items.Flush()
}

func (m *Memory) Close() error {
	return nil
}

// MemoryLocker implements Locker with go-cache's Add. mu serializes the
// token compare in Release against a concurrent Acquire.
type MemoryLocker struct {
	mu    sync.Mutex
	items *gocache.Cache
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{items: gocache.New(5*time.Minute, time.Minute)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	token := newLockToken()
	if err := l.items.Add(key, token, secondsTTL(ttl)); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

func (l *MemoryLocker) Held(_ context.Context, key string) (bool, error) {
	_, found := l.items.Get(key)
	return found, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, found := l.items.Get(key); found && v == token {
		l.items.Delete(key)
	}
	return nil
}
