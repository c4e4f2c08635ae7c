// Package config loads the process configuration in layers: built-in
// defaults, then an optional YAML file, then SHELF_ environment variables.
// Nested keys use a double underscore in the environment, for example
// SHELF_CACHE__BACKEND=redis or SHELF_PROVIDERS__OPENAI__API_KEY=sk-....
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/hubenschmidt/go-shelf/cache"
	"github.com/hubenschmidt/go-shelf/coordinator"
	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/llm"
	"github.com/hubenschmidt/go-shelf/logging"
	"github.com/hubenschmidt/go-shelf/queue"
	"github.com/hubenschmidt/go-shelf/recommend"
	"github.com/hubenschmidt/go-shelf/store"
	"github.com/hubenschmidt/go-shelf/summarize"
)

const (
	EnvPrefix        = "SHELF_"
	ConfigPathEnvVar = "CONFIG_PATH"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"shelf.yaml",
	"shelf.yml",
	"/etc/shelf/shelf.yaml",
}

type StoreConfig struct {
	// DSN is "memory", a postgres:// URL, or a SQLite path.
	DSN string `koanf:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type AuthorsConfig struct {
	OpenLibraryURL string        `koanf:"openlibrary_url"`
	Timeout        time.Duration `koanf:"timeout"`
}

type Config struct {
	Log         logging.Config         `koanf:"log"`
	Store       StoreConfig            `koanf:"store"`
	Cache       cache.Config           `koanf:"cache"`
	Queue       queue.Config           `koanf:"queue"`
	Supervisor  queue.SupervisorConfig `koanf:"supervisor"`
	Providers   llm.Config             `koanf:"providers"`
	Recommend   recommend.Config       `koanf:"recommend"`
	Coordinator coordinator.Config     `koanf:"coordinator"`
	Authors     AuthorsConfig          `koanf:"authors"`
	Metrics     MetricsConfig          `koanf:"metrics"`
}

func Default() *Config {
	return &Config{
		Log:         logging.DefaultConfig(),
		Store:       StoreConfig{DSN: store.DefaultSQLitePath},
		Cache:       cache.DefaultConfig(),
		Queue:       queue.DefaultConfig(),
		Supervisor:  queue.DefaultSupervisorConfig(),
		Providers:   llm.DefaultConfig(),
		Recommend:   recommend.DefaultConfig(),
		Coordinator: coordinator.DefaultConfig(),
		Authors:     AuthorsConfig{OpenLibraryURL: summarize.DefaultOpenLibraryURL, Timeout: 10 * time.Second},
		Metrics:     MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

// Load reads the layered configuration and validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file
// layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps SHELF_CACHE__REDIS__ADDR to cache.redis.addr.
func envTransform(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// sliceConfigPaths arrive from the environment as comma separated strings.
var sliceConfigPaths = []string{
	"providers.embed_order",
	"providers.generate_order",
	"providers.bio_order",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: store.dsn is empty", core.ErrInvalidConfig))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: metrics.addr is empty", core.ErrInvalidConfig))
	}
	errs = append(errs,
		c.Cache.Validate(),
		c.Queue.Validate(),
		c.Providers.Validate(),
		c.Recommend.Validate(),
		c.Coordinator.Validate(),
	)
	return errors.Join(errs...)
}
