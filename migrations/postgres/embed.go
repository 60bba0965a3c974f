// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the migrations for the Postgres document store.
//
//go:embed *.sql
var FS embed.FS
