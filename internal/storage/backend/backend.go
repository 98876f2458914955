// Package backend opens the configured storage.Store implementation.
package backend

import (
	"context"
	"fmt"

	"github.com/yanboishere/MetaOdds/internal/storage"
	"github.com/yanboishere/MetaOdds/internal/storage/postgres"
	"github.com/yanboishere/MetaOdds/internal/storage/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver     string
	SQLitePath string
	Postgres   postgres.ClientConfig
}

// Open returns a ready store. SQLite is the default driver; Postgres runs its
// migrations before returning.
func Open(ctx context.Context, opts Options) (storage.Store, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		st, err := sqlite.Open(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverPostgres:
		st, err := postgres.Open(ctx, opts.Postgres)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
