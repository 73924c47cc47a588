// Package migrations provides embedded SQL migration files.
package migrations

import "embed"

// Files contains all SQL migration files, applied with goose at startup.
//
//go:embed *.sql
var Files embed.FS
