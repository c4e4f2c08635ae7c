package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hubenschmidt/go-shelf/core"
	"github.com/hubenschmidt/go-shelf/store"
)

// Backend is a Queue that can be run under a supervisor.
type Backend interface {
	Queue
	SetHandler(h Handler)
	Serve(ctx context.Context) error
	Close() error
}

// Open builds the backend named by cfg.Backend. The sqlite backend opens
// its own database at cfg.SQLitePath.
//
//nolint:gocritic // Config and zerolog.Logger passed by value
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With().Str("component", "queue").Str("backend", cfg.Backend).Logger()

	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(cfg, log), nil
	case BackendSQLite:
		db, err := store.OpenSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open queue database: %w", err)
		}
		q, err := NewSQLite(ctx, db, cfg, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		q.owned = true
		return q, nil
	}
	return nil, fmt.Errorf("%w: queue backend %q", core.ErrInvalidConfig, cfg.Backend)
}
