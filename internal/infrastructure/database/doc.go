// Package database manages the SQLite connection for Canopy Core.
//
// It wraps database/sql with WAL-mode configuration, health checks and an
// embedded-migration runner. Controllers, workflow graphs, dimmer configs
// and the activity log all live in this single database; domain packages
// receive the *sql.DB and own their tables through repository types.
//
// Migration files are embedded by the top-level migrations package and
// applied in version order at startup, each in its own transaction.
package database
