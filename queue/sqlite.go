package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS shelf_tasks (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    payload     BLOB NOT NULL,
    visible_at  INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    attempts    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_shelf_tasks_visible ON shelf_tasks (visible_at);
`

// SQLite is a visibility-timeout queue. A claimed row stays invisible for
// Visibility and is extended while its handler runs; if the worker dies the
// row reappears and another worker claims it.
type SQLite struct {
	db  *sql.DB
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	handler Handler
	owned   bool
}

// NewSQLite creates the task table on db if needed.
//
//nolint:gocritic // Config and zerolog.Logger passed by value
func NewSQLite(ctx context.Context, db *sql.DB, cfg Config, log zerolog.Logger) (*SQLite, error) {
	if cfg.Visibility <= 0 {
		cfg.Visibility = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create task table: %w", err)
	}
	return &SQLite{db: db, cfg: cfg, log: log}, nil
}

func (q *SQLite) SetHandler(h Handler) {
	q.mu.Lock()
	q.handler = h
	q.mu.Unlock()
}

// Close closes the database when the queue opened it.
func (q *SQLite) Close() error {
	if !q.owned {
		return nil
	}
	return q.db.Close()
}

func (q *SQLite) insert(ctx context.Context, task Task, visibleAt time.Time) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO shelf_tasks (id, kind, payload, visible_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		task.ID, task.Kind, payload, visibleAt.UnixMilli(), task.EnqueuedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (q *SQLite) Enqueue(ctx context.Context, task Task) (Handle, error) {
	task = prepare(task)
	if err := q.insert(ctx, task, task.EnqueuedAt); err != nil {
		return Handle{}, err
	}
	return task.Handle(), nil
}

func (q *SQLite) load(ctx context.Context, id string) (Task, error) {
	var payload []byte
	err := q.db.QueryRowContext(ctx, `SELECT payload FROM shelf_tasks WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("load task: %w", err)
	}
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return Task{}, fmt.Errorf("unmarshal task: %w", err)
	}
	return task, nil
}

func (q *SQLite) Retry(ctx context.Context, handle Handle, delay time.Duration) error {
	task, err := q.load(ctx, handle.ID)
	if err != nil {
		return err
	}
	retry := next(task)
	return q.insert(ctx, retry, retry.EnqueuedAt.Add(delay))
}

// claim picks the oldest visible task and hides it for the visibility window.
// It returns nil when nothing is visible.
func (q *SQLite) claim(ctx context.Context) (*Task, int, error) {
	now := time.Now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE shelf_tasks
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM shelf_tasks
			WHERE visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING payload, attempts`,
		now.Add(q.cfg.Visibility).UnixMilli(), now.UnixMilli(),
	)

	var (
		payload  []byte
		attempts int
	)
	err := row.Scan(&payload, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, attempts, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, attempts, nil
}

func (q *SQLite) ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM shelf_tasks WHERE id = ?`, id)
	return err
}

func (q *SQLite) extend(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE shelf_tasks SET visible_at = ? WHERE id = ?`,
		time.Now().Add(q.cfg.Visibility).UnixMilli(), id,
	)
	return err
}

// Len counts visible and invisible tasks.
func (q *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shelf_tasks`).Scan(&n)
	return n, err
}

// Serve polls for visible tasks with cfg.Workers workers until ctx is
// cancelled. It implements suture.Service.
func (q *SQLite) Serve(ctx context.Context) error {
	q.mu.Lock()
	h := q.handler
	q.mu.Unlock()
	if h == nil {
		return ErrNoHandler
	}

	q.log.Info().Int("workers", q.cfg.Workers).Dur("visibility", q.cfg.Visibility).Msg("sqlite queue started")
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.poll(ctx, h)
		}()
	}
	wg.Wait()
	q.log.Info().Msg("sqlite queue stopped")
	return ctx.Err()
}

func (q *SQLite) poll(ctx context.Context, h Handler) {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drain(ctx, h)
		}
	}
}

func (q *SQLite) drain(ctx context.Context, h Handler) {
	for ctx.Err() == nil {
		task, attempts, err := q.claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				q.log.Warn().Err(err).Msg("claim failed")
			}
			return
		}
		if task == nil {
			return
		}

		if q.cfg.MaxAttempts > 0 && attempts > q.cfg.MaxAttempts {
			q.log.Warn().Str("task_id", task.ID).Int("deliveries", attempts).Msg("task exceeded max deliveries, discarding")
			_ = q.ack(ctx, task.ID)
			continue
		}

		q.process(ctx, h, *task)
	}
}

func (q *SQLite) process(ctx context.Context, h Handler, task Task) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(q.cfg.Visibility / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := q.extend(ctx, task.ID); err != nil {
					q.log.Warn().Err(err).Str("task_id", task.ID).Msg("extend visibility failed")
				}
			}
		}
	}()

	run(ctx, h, task, q.log)
	close(done)

	if ctx.Err() != nil {
		// Left invisible; it reappears once the visibility window lapses.
		return
	}
	if err := q.ack(context.WithoutCancel(ctx), task.ID); err != nil {
		q.log.Warn().Err(err).Str("task_id", task.ID).Msg("ack failed")
	}
}
