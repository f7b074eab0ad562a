package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"burstline/internal/database"
	"burstline/internal/logging"
	"burstline/internal/services"
)

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Date        string
	VisibleOnly bool
	Limit       int
}

// CreateSession inserts a session together with its photos at positions
// 0..n-1. It is the ingestion entry point.
func (c *Catalog) CreateSession(ctx context.Context, in NewSession) (*Session, error) {
	burstID := strings.TrimSpace(in.BurstID)
	if burstID == "" {
		return nil, invalid("create_session", "burst id is required")
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "camera"
	}

	var created *Session
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM photo_sessions WHERE burst_id = ?", burstID).Scan(&exists); err != nil {
			return fmt.Errorf("check burst id: %w", err)
		}
		if exists > 0 {
			return invalid("create_session", fmt.Sprintf("burst id %q already exists", burstID))
		}

		now := c.timestamp()
		var id int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO photo_sessions (burst_id, session_number, session_date, started_at, ended_at, source, photo_count, visible, quality, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			burstID,
			in.SessionNumber,
			in.SessionDate,
			database.NullableTime(in.StartedAt),
			database.NullableTime(in.EndedAt),
			source,
			len(in.Photos),
			database.BoolInt(in.Visible),
			in.Quality,
			now,
			now,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for position, photo := range in.Photos {
			if err := insertPhoto(ctx, tx, id, position, photo, now); err != nil {
				return err
			}
		}

		session, err := getSession(ctx, tx, "create_session", id)
		if err != nil {
			return err
		}
		created = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("session created",
		logging.String("burst_id", created.BurstID),
		logging.Int64(logging.FieldSessionID, created.ID),
		logging.Int("photos", created.PhotoCount),
	)
	return created, nil
}

func insertPhoto(ctx context.Context, tx *database.Tx, sessionID int64, position int, photo NewPhoto, now string) error {
	filename := strings.TrimSpace(photo.Filename)
	if filename == "" {
		return invalid("create_session", fmt.Sprintf("photo at position %d has no filename", position))
	}
	metadata := photo.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := encodeJSON(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", filename, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO photos (session_id, filename, raw_path, position, metadata, exif_data, taken_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '{}', ?, ?, ?)`,
		sessionID,
		filename,
		photo.RawPath,
		position,
		encoded,
		database.NullableTime(photo.TakenAt),
		now,
		now,
	); err != nil {
		return fmt.Errorf("insert photo %s: %w", filename, err)
	}
	return nil
}

// GetSession returns the session with id.
func (c *Catalog) GetSession(ctx context.Context, id int64) (*Session, error) {
	return getSession(ctx, c.db, "get_session", id)
}

// GetSessionByBurstID looks a session up by its burst identifier.
func (c *Catalog) GetSessionByBurstID(ctx context.Context, burstID string) (*Session, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM photo_sessions WHERE burst_id = ?", strings.TrimSpace(burstID))
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, component, "get_session", fmt.Sprintf("burst %q not found", burstID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load burst %q: %w", burstID, err)
	}
	return session, nil
}

// ListSessions returns sessions ordered by date, session number and id.
func (c *Catalog) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	query := "SELECT " + sessionColumns + " FROM photo_sessions"
	var (
		clauses []string
		args    []any
	)
	if date := strings.TrimSpace(filter.Date); date != "" {
		clauses = append(clauses, "session_date = ?")
		args = append(args, date)
	}
	if filter.VisibleOnly {
		clauses = append(clauses, "visible = 1")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY session_date, session_number, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SetHeroPhoto marks photoID as the session hero. A nil photoID clears it.
func (c *Catalog) SetHeroPhoto(ctx context.Context, sessionID int64, photoID *int64) error {
	return c.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := getSession(ctx, tx, "set_hero", sessionID); err != nil {
			return err
		}
		if photoID != nil {
			photo, err := getPhoto(ctx, tx, "set_hero", *photoID)
			if err != nil {
				return err
			}
			if photo.SessionID != sessionID {
				return invalid("set_hero", fmt.Sprintf("photo %d does not belong to session %d", photo.ID, sessionID))
			}
		}
		_, err := tx.ExecContext(ctx, "UPDATE photo_sessions SET hero_photo_id = ?, updated_at = ? WHERE id = ?",
			database.NullableInt64(photoID), c.timestamp(), sessionID)
		if err != nil {
			return fmt.Errorf("update hero photo: %w", err)
		}
		return nil
	})
}

// SetVisibility toggles whether the session is shown to viewers.
func (c *Catalog) SetVisibility(ctx context.Context, sessionID int64, visible bool) error {
	res, err := c.db.ExecContext(ctx, "UPDATE photo_sessions SET visible = ?, updated_at = ? WHERE id = ?",
		database.BoolInt(visible), c.timestamp(), sessionID)
	if err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	return requireAffected(res, notFound("set_visibility", "session", sessionID))
}

// SetGenderAnalysis stores the analyzer output for a session.
func (c *Catalog) SetGenderAnalysis(ctx context.Context, sessionID int64, result json.RawMessage, analyzedAt time.Time) error {
	if !json.Valid(result) {
		return invalid("set_gender_analysis", "analysis result is not valid JSON")
	}
	res, err := c.db.ExecContext(ctx,
		"UPDATE photo_sessions SET gender_analysis = ?, gender_analyzed_at = ?, updated_at = ? WHERE id = ?",
		string(result), database.FormatTime(analyzedAt), c.timestamp(), sessionID)
	if err != nil {
		return fmt.Errorf("update gender analysis: %w", err)
	}
	return requireAffected(res, notFound("set_gender_analysis", "session", sessionID))
}

func requireAffected(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}
