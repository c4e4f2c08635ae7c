package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/monitor"
)

// Config selects and configures the cache backend.
type Config struct {
	Backend string       `koanf:"backend"`
	Memory  MemoryConfig `koanf:"memory"`
	Redis   RedisConfig  `koanf:"redis"`
	Badger  BadgerConfig `koanf:"badger"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Memory:  DefaultMemoryConfig(),
		Redis:   DefaultRedisConfig(),
		Badger:  BadgerConfig{Path: "data/cache", DefaultTTL: time.Hour},
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendBadger:
		return nil
	default:
		return fmt.Errorf("%w: cache backend %q", core.ErrInvalidConfig, c.Backend)
	}
}

// Open builds the configured cache together with a Locker on the same backend.
//
//nolint:gocritic // Config passed by value
func Open(ctx context.Context, cfg Config) (Cache, Locker, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(cfg.Memory), NewMemoryLocker(), nil
	case BackendRedis:
		r, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Locker(), nil
	case BackendBadger:
		b, err := OpenBadger(cfg.Badger)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Locker(), nil
	default:
		return nil, nil, fmt.Errorf("%w: cache backend %q", core.ErrInvalidConfig, cfg.Backend)
	}
}

// Instrumented records hit/miss metrics and logs backend errors.
type Instrumented struct {
	Cache
	backend string
	metrics monitor.Collector
	log     zerolog.Logger
}

//nolint:gocritic // zerolog.Logger passed by value
func Instrument(c Cache, backend string, metrics monitor.Collector, log zerolog.Logger) *Instrumented {
	return &Instrumented{Cache: c, backend: backend, metrics: monitor.OrNoOp(metrics), log: log}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := i.Cache.Get(ctx, key)
	if err != nil {
		i.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return nil, false, err
	}
	i.metrics.CacheLookup(i.backend, ok)
	return v, ok, nil
}

func (i *Instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := i.Cache.Set(ctx, key, value, ttl); err != nil {
		i.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		return err
	}
	return nil
}
