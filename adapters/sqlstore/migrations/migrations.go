// Package migrations embeds the schema shared by the SQL record stores.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
