// Package migrations embeds the PostgreSQL schema migrations so the migrate
// command and integration tests share one source.
package migrations

import "embed"

// FS holds the *.sql migration files in golang-migrate naming order.
//
//go:embed *.sql
var FS embed.FS
