package core

import "context"

// Table is one durable table of records.
//
// Every mutation of a table is serialized through a single writer. Update is
// the read-modify-write primitive: fn receives a private copy of all rows and
// returns the full replacement set; returning an error aborts without
// writing. Readers never observe a partially written table.
type Table[R any] interface {
	FindAll(ctx context.Context) ([]R, error)

	// FindByKey returns the first record matching match, scanning in table
	// order, or ErrRecordNotFound.
	FindByKey(ctx context.Context, match func(R) bool) (R, error)

	// Insert appends record; ErrDuplicateKey if its primary key exists.
	Insert(ctx context.Context, record R) error

	// RewriteAll atomically replaces the table contents.
	RewriteAll(ctx context.Context, records []R) error

	Update(ctx context.Context, fn func(records []R) ([]R, error)) error
}

// RecordStore groups the account and session tables.
type RecordStore interface {
	Accounts() Table[AccountRecord]
	Sessions() Table[Session]
	Close() error
}

// AccountKey is the primary key of an account record.
func AccountKey(r AccountRecord) string { return r.ID }

// SessionKey is the primary key of a session record.
func SessionKey(s Session) string { return s.TokenHash }
