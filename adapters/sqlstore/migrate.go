package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/lborres/tanod/adapters/sqlstore/migrations"
	"github.com/lborres/tanod/core"
)

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Migrate brings the schema of db up to date.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(d.Goose); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return core.NewStorageError("migrate", err)
	}

	return nil
}
