package catalog

import (
	"context"
	"fmt"

	"burstline/internal/database"
	"burstline/internal/logging"
	"burstline/internal/services"
)

// Merge moves every photo of source into target, renumbers target to a
// contiguous sequence and deletes source. Sittings follow their session and
// target adopts source's hero photo when it has none. The whole operation is
// one transaction: on error neither session changes.
//
// Photos are renumbered by their current (position, id) order across the
// combined set.
func (c *Catalog) Merge(ctx context.Context, targetID, sourceID int64) (MergeResult, error) {
	result := MergeResult{TargetID: targetID, SourceID: sourceID, PreviousMaxPosition: -1}
	if targetID == sourceID {
		return result, invalid("merge", "cannot merge a session into itself")
	}

	unlock := c.locks.lock(targetID, sourceID)
	defer unlock()

	ctx = services.WithSessionID(ctx, targetID)
	logger := logging.WithContext(ctx, c.logger)

	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		target, err := getSession(ctx, tx, "merge", targetID)
		if err != nil {
			return err
		}
		source, err := getSession(ctx, tx, "merge", sourceID)
		if err != nil {
			return err
		}
		now := c.timestamp()

		var previousMax int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position), -1) FROM photos WHERE session_id = ?", targetID,
		).Scan(&previousMax); err != nil {
			return fmt.Errorf("read target max position: %w", err)
		}

		res, err := tx.ExecContext(ctx, "UPDATE photos SET session_id = ?, updated_at = ? WHERE session_id = ?", targetID, now, sourceID)
		if err != nil {
			return fmt.Errorf("move photos: %w", err)
		}
		moved, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		total, err := renumber(ctx, tx, targetID, now)
		if err != nil {
			return err
		}

		endedAt := target.EndedAt
		if source.EndedAt != nil && (endedAt == nil || source.EndedAt.After(*endedAt)) {
			endedAt = source.EndedAt
		}
		hero := target.HeroPhotoID
		if hero == nil {
			hero = source.HeroPhotoID
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE photo_sessions SET photo_count = ?, ended_at = ?, hero_photo_id = ?, updated_at = ? WHERE id = ?",
			total, database.NullableTime(endedAt), database.NullableInt64(hero), now, targetID,
		); err != nil {
			return fmt.Errorf("update target session: %w", err)
		}

		sittingRes, err := tx.ExecContext(ctx, "UPDATE sittings SET session_id = ? WHERE session_id = ?", targetID, sourceID)
		if err != nil {
			return fmt.Errorf("move sittings: %w", err)
		}
		sittingsMoved, err := sittingRes.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		remaining, err := countPhotos(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		if remaining != 0 {
			return services.Wrap(services.ErrIntegrity, component, "merge",
				fmt.Sprintf("session %d still owns %d photos after move", sourceID, remaining), nil)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM photo_sessions WHERE id = ?", sourceID); err != nil {
			return fmt.Errorf("delete source session: %w", err)
		}

		result.Moved = int(moved)
		result.PreviousMaxPosition = previousMax
		result.PhotoCount = total
		result.SittingsMoved = int(sittingsMoved)
		return nil
	})
	if err != nil {
		details := services.Details(err)
		logger.Warn("session merge failed",
			logging.Int64("source_session_id", sourceID),
			logging.String(logging.FieldEventType, "session_merge_failed"),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
		)
		return MergeResult{TargetID: targetID, SourceID: sourceID, PreviousMaxPosition: -1}, err
	}

	logger.Info("sessions merged",
		logging.Int64("source_session_id", sourceID),
		logging.Int("moved", result.Moved),
		logging.Int("photo_count", result.PhotoCount),
		logging.Int("sittings_moved", result.SittingsMoved),
		logging.String(logging.FieldEventType, "session_merged"),
	)
	return result, nil
}
