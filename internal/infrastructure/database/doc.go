// Package database opens the bridge's SQLite file and keeps its schema
// current.
//
// The database holds the variable subscriptions configured for an
// instance, which must survive restarts, plus two append-only logs: facet
// changes for the state history endpoint (package store) and action
// invocations for the action log endpoint (package audit).
//
// A single pooled connection is used. WAL mode and the busy timeout come
// from config.DatabaseConfig and are passed through the DSN. The file is
// created with mode 0600.
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// with a matching .down.sql, read from any fs.FS:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Files); err != nil {
//	    return err
//	}
package database
