// Package memory is a non-durable record store. Contents are lost on Close.
package memory

import (
	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/table"
)

type Store struct {
	accounts *table.Table[core.AccountRecord]
	sessions *table.Table[core.Session]
}

var _ core.RecordStore = (*Store)(nil)

func New() *Store {
	// without a persister New cannot fail
	accounts, _ := table.New("accounts", core.AccountKey, nil)
	sessions, _ := table.New("sessions", core.SessionKey, nil)
	return &Store{accounts: accounts, sessions: sessions}
}

func (s *Store) Accounts() core.Table[core.AccountRecord] { return s.accounts }

func (s *Store) Sessions() core.Table[core.Session] { return s.sessions }

func (s *Store) Close() error { return nil }
