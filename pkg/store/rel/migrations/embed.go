// Package migrations embeds the PostgreSQL schema migrations applied by
// golang-migrate at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
