package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"burstline/internal/config"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Querier is the statement surface shared by DB and Tx. Queries use `?`
// placeholders regardless of dialect.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the pooled connection with dialect-aware helpers.
type DB struct {
	db      *sql.DB
	dialect Dialect
	dsn     string
}

// Open connects to the database selected by cfg and installs the schema.
func Open(ctx context.Context, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("database: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenDSN(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
}

// OpenDSN connects using an explicit driver name ("sqlite" or "postgres").
func OpenDSN(ctx context.Context, driver, dsn string) (*DB, error) {
	ctx = ensureContext(ctx)
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	var conn *sql.DB
	switch dialect {
	case DialectPostgres:
		conn, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}
	default:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("ensure database directory: %w", err)
			}
		}
		conn, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
		// A single connection serializes writers inside this process; statements
		// issued inside WithTx must go through the Tx or they will block.
		conn.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := conn.ExecContext(ctx, pragma); execErr != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	db := &DB{db: conn, dialect: dialect, dsn: dsn}
	if err := db.initSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Dialect reports the active SQL dialect.
func (d *DB) Dialect() Dialect { return d.dialect }

// Location returns the DSN for diagnostics. Postgres passwords are redacted.
func (d *DB) Location() string {
	if d.dialect == DialectPostgres {
		return redactDSN(d.dsn)
	}
	return d.dsn
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = d.dialect.Rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = d.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx = ensureContext(ctx)
	query = d.dialect.Rebind(query)
	var (
		rows     *sql.Rows
		queryErr error
	)
	if err := retryOnBusy(ctx, func() error {
		rows, queryErr = d.db.QueryContext(ctx, query, args...)
		return queryErr
	}); err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ensureContext(ctx), d.dialect.Rebind(query), args...)
}

// QueryRowRetry runs a single-row query and hands the row to scan, retrying
// both on lock contention. Use it for UPDATE ... RETURNING statements.
func (d *DB) QueryRowRetry(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	ctx = ensureContext(ctx)
	query = d.dialect.Rebind(query)
	return retryOnBusy(ctx, func() error {
		return scan(d.db.QueryRowContext(ctx, query, args...))
	})
}

func (d *DB) initSchema(ctx context.Context) error {
	var tableExists int
	if err := d.db.QueryRowContext(ctx, d.dialect.tableExistsQuery(), "schema_version").Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return d.createSchema(ctx)
	}

	var version int
	if err := d.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (d *DB) createSchema(ctx context.Context) error {
	schema := sqliteSchema
	if d.dialect == DialectPostgres {
		schema = postgresSchema
	}
	return d.WithTx(ctx, func(tx *Tx) error {
		for _, stmt := range splitStatements(schema) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}

func splitStatements(schema string) []string {
	parts := strings.Split(schema, ";")
	stmts := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			stmts = append(stmts, trimmed)
		}
	}
	return stmts
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
