package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	// Goose is the goose dialect name used for migrations.
	Goose   string
	bindvar func(n int) string
}

var (
	SQLite = Dialect{
		Goose:   "sqlite3",
		bindvar: func(int) string { return "?" },
	}
	Postgres = Dialect{
		Goose:   "postgres",
		bindvar: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// placeholders returns n bind variables numbered from start, comma separated.
func (d Dialect) placeholders(start, n int) string {
	vars := make([]string, n)
	for i := range vars {
		vars[i] = d.bindvar(start + i)
	}
	return strings.Join(vars, ", ")
}
