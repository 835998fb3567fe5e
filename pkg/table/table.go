// Package table is the in-process table engine behind the memory and CSV
// record stores.
//
// A Table keeps its rows as an immutable snapshot behind an atomic pointer.
// Readers load the current snapshot without locking. Writers are serialized
// by one mutex, build the next snapshot from a private copy, persist it, and
// only then publish it, so a reader sees either the old table or the new one.
package table

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/lborres/tanod/core"
)

// Persister durably stores a full table image.
type Persister[R any] interface {
	Load() ([]R, error)
	Save(records []R) error
}

type Table[R any] struct {
	name    string
	key     func(R) string
	persist Persister[R] // nil keeps the table in memory only

	writeMu sync.Mutex
	rows    atomic.Pointer[[]R]
}

var _ core.Table[core.Session] = (*Table[core.Session])(nil)

// New builds a table and loads its initial contents from p when p is non-nil.
func New[R any](name string, key func(R) string, p Persister[R]) (*Table[R], error) {
	t := &Table[R]{name: name, key: key, persist: p}

	var initial []R
	if p != nil {
		loaded, err := p.Load()
		if err != nil {
			return nil, core.NewStorageError(name+".load", err)
		}
		if err := checkKeys(loaded, key); err != nil {
			return nil, core.NewStorageError(name+".load", err)
		}
		initial = loaded
	}
	t.rows.Store(&initial)

	return t, nil
}

func (t *Table[R]) snapshot() []R {
	return *t.rows.Load()
}

func (t *Table[R]) FindAll(ctx context.Context) ([]R, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(t.snapshot()), nil
}

func (t *Table[R]) FindByKey(ctx context.Context, match func(R) bool) (R, error) {
	var zero R
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	for _, r := range t.snapshot() {
		if match(r) {
			return r, nil
		}
	}
	return zero, core.ErrRecordNotFound
}

func (t *Table[R]) Insert(ctx context.Context, record R) error {
	return t.Update(ctx, func(rows []R) ([]R, error) {
		k := t.key(record)
		for _, r := range rows {
			if t.key(r) == k {
				return nil, fmt.Errorf("%s: %w", t.name, core.ErrDuplicateKey)
			}
		}
		return append(rows, record), nil
	})
}

func (t *Table[R]) RewriteAll(ctx context.Context, records []R) error {
	return t.Update(ctx, func([]R) ([]R, error) {
		return slices.Clone(records), nil
	})
}

func (t *Table[R]) Update(ctx context.Context, fn func(records []R) ([]R, error)) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next, err := fn(slices.Clone(t.snapshot()))
	if err != nil {
		return err
	}
	if err := checkKeys(next, t.key); err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}

	return t.commit(next)
}

func (t *Table[R]) commit(next []R) error {
	if t.persist != nil {
		if err := t.persist.Save(next); err != nil {
			return core.NewStorageError(t.name+".rewrite", err)
		}
	}
	t.rows.Store(&next)
	return nil
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
