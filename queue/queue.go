// Package queue runs background computations. Tasks are at-least-once:
// a task may run again after a crash or a visibility timeout, so handlers
// must be idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hubenschmidt/go-shelf/core"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

var (
	ErrClosed       = errors.New("queue closed")
	ErrTaskNotFound = errors.New("task not found")
	ErrNoHandler    = errors.New("queue has no handler")
	ErrQueueFull    = errors.New("queue full")
)

// Task is one unit of background work. Attempt starts at 0 and grows by
// one per Retry. LockToken is carried across retries so the final attempt
// can release the lock taken at enqueue time.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Subject    string          `json:"subject"`
	Args       json.RawMessage `json:"args,omitempty"`
	LockToken  string          `json:"lock_token,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Handle identifies an enqueued task.
type Handle struct {
	ID   string
	Kind string
}

func (t Task) Handle() Handle {
	return Handle{ID: t.ID, Kind: t.Kind}
}

// Handler processes a task. A returned error is logged and the task is
// dropped; retries are requested explicitly through Queue.Retry.
type Handler func(ctx context.Context, task Task) error

type Queue interface {
	Enqueue(ctx context.Context, task Task) (Handle, error)

	// Retry schedules another attempt of the task behind handle after
	// delay. The new attempt gets a fresh id and Attempt+1.
	Retry(ctx context.Context, handle Handle, delay time.Duration) error
}

// Config selects the queue backend.
type Config struct {
	Backend      string        `koanf:"backend"`
	Workers      int           `koanf:"workers"`
	Buffer       int           `koanf:"buffer"`
	SQLitePath   string        `koanf:"sqlite_path"`
	Visibility   time.Duration `koanf:"visibility"`
	PollInterval time.Duration `koanf:"poll_interval"`
	MaxAttempts  int           `koanf:"max_attempts"`
}

func DefaultConfig() Config {
	return Config{
		Backend:      BackendMemory,
		Workers:      4,
		Buffer:       256,
		SQLitePath:   "data/queue.db",
		Visibility:   5 * time.Minute,
		PollInterval: time.Second,
		MaxAttempts:  5,
	}
}

//nolint:gocritic // Config passed by value
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("%w: queue backend %q", core.ErrInvalidConfig, c.Backend)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: queue.workers must be positive", core.ErrInvalidConfig)
	}
	return nil
}

// prepare fills the id and enqueue time of a new task.
func prepare(task Task) Task {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	return task
}

// next derives the retry attempt of task.
func next(task Task) Task {
	task.ID = uuid.NewString()
	task.Attempt++
	task.EnqueuedAt = time.Now()
	return task
}
