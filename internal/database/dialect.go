package database

import (
	"fmt"
	"strconv"
	"strings"

	"burstline/internal/config"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = config.DriverSQLite
	DialectPostgres Dialect = config.DriverPostgres
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("database: unsupported driver %q", driver)
	}
}

func (d Dialect) String() string { return string(d) }

// Rebind rewrites `?` placeholders to `$n` for PostgreSQL. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func (d Dialect) tableExistsQuery() string {
	if d == DialectPostgres {
		return "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
	}
	return "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name = ?"
}
