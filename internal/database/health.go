package database

import (
	"context"
	"fmt"
)

// Health summarizes database readiness for diagnostics.
type Health struct {
	Dialect       Dialect
	Location      string
	SchemaVersion int
	Expected      int
	Sessions      int
	Photos        int
	Jobs          int
	Err           error
}

// Ready reports whether the database is reachable and on the current schema.
func (h Health) Ready() bool {
	return h.Err == nil && h.SchemaVersion == h.Expected
}

// CheckHealth inspects schema version and row counts.
func (d *DB) CheckHealth(ctx context.Context) Health {
	health := Health{Dialect: d.dialect, Location: d.Location(), Expected: schemaVersion}
	if err := d.db.PingContext(ensureContext(ctx)); err != nil {
		health.Err = fmt.Errorf("ping: %w", err)
		return health
	}
	if err := d.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Err = fmt.Errorf("read schema version: %w", err)
		return health
	}
	counts := []struct {
		table string
		dest  *int
	}{
		{"photo_sessions", &health.Sessions},
		{"photos", &health.Photos},
		{"jobs", &health.Jobs},
	}
	for _, c := range counts {
		if err := d.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+c.table).Scan(c.dest); err != nil {
			health.Err = fmt.Errorf("count %s: %w", c.table, err)
			return health
		}
	}
	return health
}
