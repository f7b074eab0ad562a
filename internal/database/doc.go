// Package database owns the SQL connection shared by the catalog and the job
// queue.
//
// It opens either the embedded SQLite driver (default) or PostgreSQL through
// pgx, installs the embedded schema on first use, verifies the schema version
// on later opens, and exposes a small Querier surface implemented by both DB
// and Tx. Queries are written with `?` placeholders and rebound for the active
// dialect. SQLite busy errors and PostgreSQL serialization failures are
// retried with bounded exponential backoff.
//
// Timestamps are stored as fixed-width UTC text so lexical and chronological
// ordering agree on both backends.
package database
