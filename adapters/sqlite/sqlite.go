// Package sqlite is the embedded SQL record store, backed by the pure-Go
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lborres/tanod/adapters/sqlstore"
	"github.com/lborres/tanod/core"
)

// Open opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.NewStorageError("open", fmt.Errorf("db open error: %w", err))
	}
	// a single connection keeps ":memory:" databases shared and serializes
	// writers the way SQLite wants anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, core.NewStorageError("open", err)
	}

	if err := sqlstore.Migrate(ctx, db, sqlstore.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return sqlstore.New(db, sqlstore.SQLite), nil
}
