package store

import (
	"context"
	"fmt"
)

// Open connects the named backend: "postgres" (running migrations first),
// "sqlite" or "memory".
func Open(ctx context.Context, backend, databaseURL, sqlitePath string) (DataStore, error) {
	switch backend {
	case "postgres":
		if err := RunMigrations(ctx, databaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pg, nil
	case "sqlite":
		lite, err := NewSQLiteStore(ctx, sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return lite, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", backend)
	}
}
