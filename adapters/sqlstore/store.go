// Package sqlstore is the database/sql record store shared by the SQLite and
// PostgreSQL backends.
package sqlstore

import (
	"database/sql"

	"github.com/lborres/tanod/core"
)

type Store struct {
	db       *sql.DB
	accounts *Table[core.AccountRecord]
	sessions *Table[core.Session]
}

var _ core.RecordStore = (*Store)(nil)

// New wraps an open database whose schema is already migrated. See Migrate.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{
		db:       db,
		accounts: newTable(db, d, accountSchema),
		sessions: newTable(db, d, sessionSchema),
	}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Accounts() core.Table[core.AccountRecord] { return s.accounts }

func (s *Store) Sessions() core.Table[core.Session] { return s.sessions }

func (s *Store) Close() error {
	return s.db.Close()
}
