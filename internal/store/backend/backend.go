// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"radarsync/internal/store"
	"radarsync/internal/store/memory"
	"radarsync/internal/store/postgres"
	"radarsync/internal/store/sqlite"
)

// ErrNoSchema is returned for backends without migrations.
var ErrNoSchema = errors.New("backend has no schema")

// Migrator is implemented by the SQL backends.
type Migrator interface {
	MigrateVersion() (uint, bool, error)
}

// Open returns the store for driver. SQL stores are migrated on open.
func Open(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		s, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// SchemaVersion reports the applied migration version of s.
func SchemaVersion(s store.Store) (version uint, dirty bool, err error) {
	m, ok := s.(Migrator)
	if !ok {
		return 0, false, ErrNoSchema
	}
	return m.MigrateVersion()
}
