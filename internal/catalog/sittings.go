package catalog

import (
	"context"
	"fmt"
	"strings"

	"burstline/internal/database"
)

// CreateSitting records a visitor sitting on a session.
func (c *Catalog) CreateSitting(ctx context.Context, sessionID int64, heroPhotoID *int64, visitor string) (*Sitting, error) {
	var created *Sitting
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := getSession(ctx, tx, "create_sitting", sessionID); err != nil {
			return err
		}
		if heroPhotoID != nil {
			photo, err := getPhoto(ctx, tx, "create_sitting", *heroPhotoID)
			if err != nil {
				return err
			}
			if photo.SessionID != sessionID {
				return invalid("create_sitting", fmt.Sprintf("photo %d does not belong to session %d", photo.ID, sessionID))
			}
		}
		row := tx.QueryRowContext(ctx,
			"INSERT INTO sittings (session_id, hero_photo_id, visitor, created_at) VALUES (?, ?, ?, ?) RETURNING "+sittingColumns,
			sessionID, database.NullableInt64(heroPhotoID), strings.TrimSpace(visitor), c.timestamp())
		sitting, err := scanSitting(row)
		if err != nil {
			return fmt.Errorf("insert sitting: %w", err)
		}
		created = sitting
		return nil
	})
	return created, err
}

// ListSittings returns the sittings attached to a session.
func (c *Catalog) ListSittings(ctx context.Context, sessionID int64) ([]*Sitting, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT "+sittingColumns+" FROM sittings WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sittings: %w", err)
	}
	defer rows.Close()

	var sittings []*Sitting
	for rows.Next() {
		sitting, err := scanSitting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sitting: %w", err)
		}
		sittings = append(sittings, sitting)
	}
	return sittings, rows.Err()
}
