package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"burstline/internal/database"
	"burstline/internal/logging"
	"burstline/internal/services"
)

const component = "catalog"

// Catalog is the session and photo repository.
type Catalog struct {
	db     *database.DB
	locks  *sessionLocks
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a catalog backed by db.
func New(db *database.DB, opts ...Option) *Catalog {
	c := &Catalog{
		db:     db,
		locks:  newSessionLocks(),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, component)
	return c
}

func (c *Catalog) timestamp() string {
	return database.FormatTime(c.now())
}

func notFound(operation, what string, id int64) error {
	return services.Wrap(services.ErrNotFound, component, operation, fmt.Sprintf("%s %d not found", what, id), nil)
}

func invalid(operation, message string) error {
	return services.Wrap(services.ErrValidation, component, operation, message, nil)
}

func getSession(ctx context.Context, q database.Querier, operation string, id int64) (*Session, error) {
	row := q.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM photo_sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(operation, "session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", id, err)
	}
	return session, nil
}

func getPhoto(ctx context.Context, q database.Querier, operation string, id int64) (*Photo, error) {
	row := q.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE id = ?", id)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(operation, "photo", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load photo %d: %w", id, err)
	}
	return photo, nil
}

func countPhotos(ctx context.Context, q database.Querier, sessionID int64) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM photos WHERE session_id = ?", sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos for session %d: %w", sessionID, err)
	}
	return count, nil
}

// renumber rewrites positions of every photo in sessionID to 0..n-1 ordered by
// the current (position, id). It reads from q so changes made earlier in the
// same transaction are visible.
func renumber(ctx context.Context, q database.Querier, sessionID int64, updatedAt string) (int, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, position FROM photos WHERE session_id = ? ORDER BY position, id", sessionID)
	if err != nil {
		return 0, fmt.Errorf("read positions for session %d: %w", sessionID, err)
	}
	type slot struct {
		id       int64
		position int
	}
	var slots []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.id, &s.position); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan position: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate positions: %w", err)
	}
	rows.Close()

	for index, s := range slots {
		if s.position == index {
			continue
		}
		if _, err := q.ExecContext(ctx, "UPDATE photos SET position = ?, updated_at = ? WHERE id = ?", index, updatedAt, s.id); err != nil {
			return 0, fmt.Errorf("renumber photo %d: %w", s.id, err)
		}
	}
	return len(slots), nil
}
