package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// busyBackoff is the wait before each retry of a contended statement.
var busyBackoff = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
	160 * time.Millisecond,
}

// IsBusy reports lock contention worth retrying: SQLITE_BUSY or
// SQLITE_LOCKED (any extended code), and PostgreSQL serialization failures
// and deadlocks.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		primary := liteErr.Code() & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}
	return strings.Contains(err.Error(), "database is locked")
}

// retryOnBusy runs op until it succeeds, fails with a non-busy error, or the
// backoff schedule is exhausted.
func retryOnBusy(ctx context.Context, op func() error) error {
	err := op()
	for _, wait := range busyBackoff {
		if !IsBusy(err) {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = op()
	}
	return err
}
