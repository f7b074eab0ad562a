package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"burstline/internal/database"
	"burstline/internal/logging"
	"burstline/internal/services"
)

// splitSuffixStart is the first counter tried for a split burst id, so the
// first split of burst_3 is burst_3-split-2.
const splitSuffixStart = 2

// Split moves splitPhotoID and every later photo of sessionID into a new
// sibling session and returns it. Splitting at the first photo is rejected.
// A session left without photos is kept as an empty shell.
func (c *Catalog) Split(ctx context.Context, sessionID, splitPhotoID int64) (*Session, error) {
	unlock := c.locks.lock(sessionID)
	defer unlock()

	ctx = services.WithSessionID(ctx, sessionID)
	ctx = services.WithPhotoID(ctx, splitPhotoID)
	logger := logging.WithContext(ctx, c.logger)

	var created *Session
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		original, err := getSession(ctx, tx, "split", sessionID)
		if err != nil {
			return err
		}
		splitPhoto, err := getPhoto(ctx, tx, "split", splitPhotoID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return invalid("split", fmt.Sprintf("photo %d is not in session %d", splitPhotoID, sessionID))
			}
			return err
		}
		if splitPhoto.SessionID != sessionID {
			return invalid("split", fmt.Sprintf("photo %d is not in session %d", splitPhotoID, sessionID))
		}

		var firstPosition int
		if err := tx.QueryRowContext(ctx, "SELECT MIN(position) FROM photos WHERE session_id = ?", sessionID).Scan(&firstPosition); err != nil {
			return fmt.Errorf("read first position: %w", err)
		}
		if splitPhoto.Position <= firstPosition {
			return invalid("split", "cannot split at the first photo of a session")
		}

		moving, err := photoIDsFrom(ctx, tx, sessionID, splitPhoto.Position)
		if err != nil {
			return err
		}
		if len(moving) == 0 {
			return invalid("split", "no photos to move")
		}

		burstID, err := nextSplitBurstID(ctx, tx, original.BurstID)
		if err != nil {
			return err
		}

		startedAt := original.StartedAt
		if splitPhoto.TakenAt != nil {
			startedAt = splitPhoto.TakenAt
		}
		now := c.timestamp()

		var newID int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO photo_sessions (burst_id, session_number, session_date, started_at, ended_at, source, photo_count, visible, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			burstID,
			original.SessionNumber,
			original.SessionDate,
			database.NullableTime(startedAt),
			database.NullableTime(original.EndedAt),
			original.Source,
			len(moving),
			database.BoolInt(original.Visible),
			now,
			now,
		).Scan(&newID); err != nil {
			return fmt.Errorf("insert split session: %w", err)
		}

		movedSet := make(map[int64]struct{}, len(moving))
		for index, photoID := range moving {
			if _, err := tx.ExecContext(ctx,
				"UPDATE photos SET session_id = ?, position = ?, updated_at = ? WHERE id = ?",
				newID, index, now, photoID,
			); err != nil {
				return fmt.Errorf("move photo %d: %w", photoID, err)
			}
			movedSet[photoID] = struct{}{}
		}

		remaining, err := countPhotos(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		endedAt := original.StartedAt
		if remaining > 0 {
			last, err := lastTakenAt(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			endedAt = original.EndedAt
			if last != nil {
				endedAt = last
			}
		}

		hero := original.HeroPhotoID
		if hero != nil {
			if _, ok := movedSet[*hero]; ok {
				if _, err := tx.ExecContext(ctx, "UPDATE photo_sessions SET hero_photo_id = ? WHERE id = ?", *hero, newID); err != nil {
					return fmt.Errorf("move hero photo: %w", err)
				}
				hero = nil
			}
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE photo_sessions SET photo_count = ?, ended_at = ?, hero_photo_id = ?, updated_at = ? WHERE id = ?",
			remaining, database.NullableTime(endedAt), database.NullableInt64(hero), now, sessionID,
		); err != nil {
			return fmt.Errorf("update original session: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE sittings SET session_id = ? WHERE session_id = ? AND hero_photo_id IN (SELECT id FROM photos WHERE session_id = ?)",
			newID, sessionID, newID,
		); err != nil {
			return fmt.Errorf("move sittings: %w", err)
		}

		created, err = getSession(ctx, tx, "split", newID)
		return err
	})
	if err != nil {
		details := services.Details(err)
		logger.Warn("session split failed",
			logging.String(logging.FieldEventType, "session_split_failed"),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
		)
		return nil, err
	}

	logger.Info("session split",
		logging.Int64("new_session_id", created.ID),
		logging.String("new_burst_id", created.BurstID),
		logging.Int("moved", created.PhotoCount),
		logging.String(logging.FieldEventType, "session_split"),
	)
	return created, nil
}

func photoIDsFrom(ctx context.Context, q database.Querier, sessionID int64, fromPosition int) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM photos WHERE session_id = ? AND position >= ? ORDER BY position, id",
		sessionID, fromPosition)
	if err != nil {
		return nil, fmt.Errorf("select photos to move: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nextSplitBurstID(ctx context.Context, q database.Querier, burstID string) (string, error) {
	for n := splitSuffixStart; ; n++ {
		candidate := fmt.Sprintf("%s-split-%d", burstID, n)
		var exists int
		if err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM photo_sessions WHERE burst_id = ?", candidate).Scan(&exists); err != nil {
			return "", fmt.Errorf("check burst id %q: %w", candidate, err)
		}
		if exists == 0 {
			return candidate, nil
		}
	}
}

func lastTakenAt(ctx context.Context, q database.Querier, sessionID int64) (*time.Time, error) {
	var raw sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT taken_at FROM photos WHERE session_id = ? ORDER BY position DESC, id DESC LIMIT 1", sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last capture time: %w", err)
	}
	return database.ScanTime(raw)
}
