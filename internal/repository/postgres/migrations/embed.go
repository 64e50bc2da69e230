// Package migrations embeds the SQL schema migrations applied by goose.
package migrations

import "embed"

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
