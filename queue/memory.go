package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Memory is a channel-backed worker pool. Tasks live only in process
// memory and are lost on restart; the computation locks expire and let a
// later request start over.
type Memory struct {
	jobs    chan Task
	workers int
	log     zerolog.Logger

	mu      sync.Mutex
	handler Handler
	tasks   map[string]Task
	timers  map[string]*time.Timer
	closed  bool
}

//nolint:gocritic // zerolog.Logger passed by value
func NewMemory(cfg Config, log zerolog.Logger) *Memory {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{
		jobs:    make(chan Task, buffer),
		workers: workers,
		log:     log,
		tasks:   make(map[string]Task),
		timers:  make(map[string]*time.Timer),
	}
}

func (m *Memory) SetHandler(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Enqueue never blocks: a full buffer fails with ErrQueueFull.
func (m *Memory) Enqueue(_ context.Context, task Task) (Handle, error) {
	task = prepare(task)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Handle{}, ErrClosed
	}
	m.tasks[task.ID] = task
	m.mu.Unlock()

	select {
	case m.jobs <- task:
		return task.Handle(), nil
	default:
		m.forget(task.ID)
		return Handle{}, ErrQueueFull
	}
}

func (m *Memory) Retry(_ context.Context, handle Handle, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	task, ok := m.tasks[handle.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, handle.ID)
	}

	retry := next(task)
	m.tasks[retry.ID] = retry
	m.timers[retry.ID] = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, retry.ID)
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		select {
		case m.jobs <- retry:
		default:
			m.log.Warn().Str("task_id", retry.ID).Str("kind", retry.Kind).Msg("queue full, dropping retry")
			m.forget(retry.ID)
		}
	})
	return nil
}

func (m *Memory) forget(id string) {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()
}

// Pending counts tasks enqueued or scheduled but not yet finished.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Serve runs the workers until ctx is cancelled. It implements suture.Service.
func (m *Memory) Serve(ctx context.Context) error {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return ErrNoHandler
	}

	m.log.Info().Int("workers", m.workers).Msg("memory queue started")
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.work(ctx, h)
		}()
	}
	wg.Wait()
	m.log.Info().Msg("memory queue stopped")
	return ctx.Err()
}

func (m *Memory) work(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-m.jobs:
			run(ctx, h, task, m.log)
			m.forget(task.ID)
		}
	}
}

// Close stops accepting tasks and cancels scheduled retries.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	return nil
}

//nolint:gocritic // zerolog.Logger passed by value
func run(ctx context.Context, h Handler, task Task, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("task_id", task.ID).Str("kind", task.Kind).Msg("task handler panicked")
		}
	}()
	if err := h(ctx, task); err != nil {
		log.Warn().Err(err).Str("task_id", task.ID).Str("kind", task.Kind).Int("attempt", task.Attempt).Msg("task failed")
	}
}
