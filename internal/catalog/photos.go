package catalog

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"burstline/internal/database"
)

// ListPhotos returns the session's photos ordered by position.
func (c *Catalog) ListPhotos(ctx context.Context, sessionID int64) ([]*Photo, error) {
	return listPhotos(ctx, c.db, sessionID)
}

func listPhotos(ctx context.Context, q database.Querier, sessionID int64) ([]*Photo, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE session_id = ? ORDER BY position, id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list photos for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// GetPhoto returns the photo with id.
func (c *Catalog) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	return getPhoto(ctx, c.db, "get_photo", id)
}

// SetRejected flags or unflags a photo as rejected.
func (c *Catalog) SetRejected(ctx context.Context, photoID int64, rejected bool) error {
	res, err := c.db.ExecContext(ctx, "UPDATE photos SET rejected = ?, updated_at = ? WHERE id = ?",
		database.BoolInt(rejected), c.timestamp(), photoID)
	if err != nil {
		return fmt.Errorf("update rejected flag: %w", err)
	}
	return requireAffected(res, notFound("set_rejected", "photo", photoID))
}

// SetAttachment records the stored original. It returns false without error
// when the photo already has an attachment.
func (c *Catalog) SetAttachment(ctx context.Context, photoID int64, assetKey, contentType string) (bool, error) {
	if strings.TrimSpace(assetKey) == "" {
		return false, invalid("set_attachment", "asset key is required")
	}
	res, err := c.db.ExecContext(ctx,
		"UPDATE photos SET asset_key = ?, content_type = ?, updated_at = ? WHERE id = ? AND (asset_key IS NULL OR asset_key = '')",
		assetKey, database.NullableString(contentType), c.timestamp(), photoID)
	if err != nil {
		return false, fmt.Errorf("update attachment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := c.GetPhoto(ctx, photoID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// SetExif stores extracted EXIF data and merges summary into the photo's
// metadata map. Existing metadata keys not present in summary are kept. A
// non-nil takenAt fills the capture time only when the photo has none. It
// returns false without writing when EXIF data is already present.
func (c *Catalog) SetExif(ctx context.Context, photoID int64, exif map[string]map[string]any, summary map[string]any, takenAt *time.Time) (bool, error) {
	if len(exif) == 0 {
		return false, invalid("set_exif", "exif data is empty")
	}
	applied := false
	err := c.db.WithTx(ctx, func(tx *database.Tx) error {
		photo, err := getPhoto(ctx, tx, "set_exif", photoID)
		if err != nil {
			return err
		}
		if photo.HasExif() {
			return nil
		}
		merged := maps.Clone(photo.Metadata)
		if merged == nil {
			merged = map[string]any{}
		}
		maps.Copy(merged, summary)

		exifJSON, err := encodeJSON(exif)
		if err != nil {
			return fmt.Errorf("encode exif: %w", err)
		}
		metadataJSON, err := encodeJSON(merged)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE photos SET exif_data = ?, metadata = ?, taken_at = COALESCE(taken_at, ?), updated_at = ? WHERE id = ?",
			exifJSON, metadataJSON, database.NullableTime(takenAt), c.timestamp(), photoID); err != nil {
			return fmt.Errorf("update exif: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// SetFaces persists a detection result and its timestamp. An empty result is
// stored as an empty array. It returns false without writing when faces were
// already detected.
func (c *Catalog) SetFaces(ctx context.Context, photoID int64, data FaceData) (bool, error) {
	if data.Faces == nil {
		data.Faces = []FaceBox{}
	}
	if data.DetectedAt.IsZero() {
		data.DetectedAt = c.now()
	}
	data.DetectedAt = data.DetectedAt.UTC()
	encoded, err := encodeJSON(data)
	if err != nil {
		return false, fmt.Errorf("encode face data: %w", err)
	}
	res, err := c.db.ExecContext(ctx,
		"UPDATE photos SET face_data = ?, face_detected_at = ?, updated_at = ? WHERE id = ? AND face_detected_at IS NULL",
		encoded, database.FormatTime(data.DetectedAt), c.timestamp(), photoID)
	if err != nil {
		return false, fmt.Errorf("update face data: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := c.GetPhoto(ctx, photoID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// SetPortraitCrop stores the portrait rectangle. A nil rect clears it.
func (c *Catalog) SetPortraitCrop(ctx context.Context, photoID int64, rect *Rect) error {
	var value any
	if rect != nil {
		encoded, err := encodeJSON(rect)
		if err != nil {
			return fmt.Errorf("encode portrait crop: %w", err)
		}
		value = encoded
	}
	res, err := c.db.ExecContext(ctx, "UPDATE photos SET portrait_crop = ?, updated_at = ? WHERE id = ?",
		value, c.timestamp(), photoID)
	if err != nil {
		return fmt.Errorf("update portrait crop: %w", err)
	}
	return requireAffected(res, notFound("set_portrait_crop", "photo", photoID))
}
