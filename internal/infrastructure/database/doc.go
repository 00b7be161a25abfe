// Package database provides the SQLite persistence layer for the dispatch core.
//
// It wraps database/sql with:
//   - Connection setup (WAL mode, busy timeout, foreign keys)
//   - Embedded SQL migrations applied in version order
//   - Health checks for the readiness endpoint
//
// SQLite is opened with a single pooled connection because it supports one
// writer; the dispatcher's hot path never waits on the database (committed
// state writes happen after transport confirmation, audit writes go through
// the audit sink's buffer).
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/dispatch.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
