package store

import (
	"fmt"
	"strings"
)

// Open picks the backend from the DSN:
//   - "memory": MemoryStore
//   - "" : SQLite at DefaultSQLitePath
//   - postgres:// or postgresql:// : PostgreSQL
//   - anything else: SQLite at that path (":memory:" included)
func Open(dsn string) (Store, error) {
	switch {
	case dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	default:
		return NewSQLiteStore(dsn)
	}
}
