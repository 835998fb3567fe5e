package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lborres/tanod/core"
)

// Table implements core.Table over one SQL table.
//
// Rows keep their table order in the seq column. Every write runs in a
// single transaction, and writes from this process are serialized by mu.
type Table[R any] struct {
	db *sql.DB
	s  schema[R]
	mu sync.Mutex

	selectAll  string
	selectKey  string
	insertNext string
	insertAt   string
	deleteAll  string
}

var _ core.Table[core.AccountRecord] = (*Table[core.AccountRecord])(nil)

func newTable[R any](db *sql.DB, d Dialect, s schema[R]) *Table[R] {
	cols := strings.Join(s.columns, ", ")
	n := len(s.columns)

	return &Table[R]{
		db:        db,
		s:         s,
		selectAll: fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", cols, s.table),
		selectKey: fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s", s.table, s.columns[0], d.bindvar(1)),
		insertNext: fmt.Sprintf(
			"INSERT INTO %s (%s, seq) VALUES (%s, (SELECT COALESCE(MAX(seq), -1) + 1 FROM %s))",
			s.table, cols, d.placeholders(1, n), s.table,
		),
		insertAt: fmt.Sprintf(
			"INSERT INTO %s (%s, seq) VALUES (%s)",
			s.table, cols, d.placeholders(1, n+1),
		),
		deleteAll: "DELETE FROM " + s.table,
	}
}

func (t *Table[R]) op(name string) string {
	return t.s.table + "." + name
}

func (t *Table[R]) FindAll(ctx context.Context) ([]R, error) {
	records, err := t.readAll(ctx, t.db)
	if err != nil {
		return nil, core.NewStorageError(t.op("read"), err)
	}
	return records, nil
}

func (t *Table[R]) FindByKey(ctx context.Context, match func(R) bool) (R, error) {
	var zero R
	records, err := t.FindAll(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if match(r) {
			return r, nil
		}
	}
	return zero, core.ErrRecordNotFound
}

func (t *Table[R]) Insert(ctx context.Context, record R) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dup bool
	err := withTx(ctx, t.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, t.selectKey, t.s.key(record)).Scan(&one)
		switch {
		case err == nil:
			dup = true
			return errDuplicate
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		_, err = tx.ExecContext(ctx, t.insertNext, t.s.values(record)...)
		return err
	})
	if dup {
		return fmt.Errorf("%s: %w", t.s.table, core.ErrDuplicateKey)
	}
	return core.NewStorageError(t.op("insert"), err)
}

func (t *Table[R]) RewriteAll(ctx context.Context, records []R) error {
	return t.Update(ctx, func([]R) ([]R, error) {
		return records, nil
	})
}

func (t *Table[R]) Update(ctx context.Context, fn func(records []R) ([]R, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fnErr error
	err := withTx(ctx, t.db, func(tx *sql.Tx) error {
		current, err := t.readAll(ctx, tx)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}
		if err := checkKeys(next, t.s.key); err != nil {
			fnErr = fmt.Errorf("%s: %w", t.s.table, err)
			return fnErr
		}

		if _, err := tx.ExecContext(ctx, t.deleteAll); err != nil {
			return err
		}
		for i, r := range next {
			args := append(t.s.values(r), i)
			if _, err := tx.ExecContext(ctx, t.insertAt, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	return core.NewStorageError(t.op("rewrite"), err)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (t *Table[R]) readAll(ctx context.Context, q queryer) ([]R, error) {
	rows, err := q.QueryContext(ctx, t.selectAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []R
	for rows.Next() {
		r, err := t.s.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

var errDuplicate = errors.New("duplicate")

// withTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

func checkKeys[R any](rows []R, key func(R) string) error {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, dup := seen[k]; dup {
			return core.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}
	return nil
}
