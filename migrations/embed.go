// Package migrations carries the bridge's SQLite schema compiled into the
// binary.
package migrations

import "embed"

// Files holds every *.sql migration at its root, ready for
// database.DB.Migrate.
//
//go:embed *.sql
var Files embed.FS
