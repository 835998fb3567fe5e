// Package pgx is the PostgreSQL record store.
package pgx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lborres/tanod/adapters/sqlstore"
)

// New builds a store on an existing pool and migrates the schema.
// Closing the store does not close the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*sqlstore.Store, error) {
	return open(ctx, stdlib.OpenDBFromPool(pool))
}

func open(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	if err := sqlstore.Migrate(ctx, db, sqlstore.Postgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, sqlstore.Postgres)
}
