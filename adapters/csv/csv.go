// Package csv is the flat-file record store: one CSV file per table, a header
// row naming the columns, whole-file atomic rewrites on every mutation.
package csv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/table"
)

const (
	AccountsFile = "accounts.csv"
	SessionsFile = "sessions.csv"
)

type Store struct {
	dir      string
	accounts *table.Table[core.AccountRecord]
	sessions *table.Table[core.Session]
}

var _ core.RecordStore = (*Store)(nil)

// Open loads (or creates) the two tables under dir.
//
// The files are read once; afterwards the in-memory snapshot is
// authoritative and every write replaces the whole file. Only one process
// may own a data directory at a time.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, core.NewStorageError("open", fmt.Errorf("creating data dir: %w", err))
	}

	accounts, err := table.New("accounts", core.AccountKey, table.Persister[core.AccountRecord](&file[core.AccountRecord]{
		path:  filepath.Join(dir, AccountsFile),
		codec: accountCodec,
	}))
	if err != nil {
		return nil, err
	}

	sessions, err := table.New("sessions", core.SessionKey, table.Persister[core.Session](&file[core.Session]{
		path:  filepath.Join(dir, SessionsFile),
		codec: sessionCodec,
	}))
	if err != nil {
		return nil, err
	}

	return &Store{dir: dir, accounts: accounts, sessions: sessions}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Accounts() core.Table[core.AccountRecord] { return s.accounts }

func (s *Store) Sessions() core.Table[core.Session] { return s.sessions }

// Close is a no-op; every write is already durable when it returns.
func (s *Store) Close() error { return nil }
