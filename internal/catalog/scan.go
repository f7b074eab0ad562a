package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"burstline/internal/database"
)

const sessionColumns = "id, burst_id, session_number, session_date, started_at, ended_at, source, photo_count, visible, hero_photo_id, quality, gender_analysis, gender_analyzed_at, created_at, updated_at"

const photoColumns = "id, session_id, filename, raw_path, position, rejected, metadata, exif_data, face_data, face_detected_at, portrait_crop, asset_key, content_type, taken_at, created_at, updated_at"

const sittingColumns = "id, session_id, hero_photo_id, visitor, created_at"

type scanner interface{ Scan(dest ...any) error }

func scanSession(row scanner) (*Session, error) {
	var (
		s           Session
		startedRaw  sql.NullString
		endedRaw    sql.NullString
		visible     int64
		hero        sql.NullInt64
		genderRaw   sql.NullString
		genderAtRaw sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(
		&s.ID,
		&s.BurstID,
		&s.SessionNumber,
		&s.SessionDate,
		&startedRaw,
		&endedRaw,
		&s.Source,
		&s.PhotoCount,
		&visible,
		&hero,
		&s.Quality,
		&genderRaw,
		&genderAtRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	var err error
	if s.StartedAt, err = database.ScanTime(startedRaw); err != nil {
		return nil, fmt.Errorf("session %d started_at: %w", s.ID, err)
	}
	if s.EndedAt, err = database.ScanTime(endedRaw); err != nil {
		return nil, fmt.Errorf("session %d ended_at: %w", s.ID, err)
	}
	if s.GenderAnalyzedAt, err = database.ScanTime(genderAtRaw); err != nil {
		return nil, fmt.Errorf("session %d gender_analyzed_at: %w", s.ID, err)
	}
	if s.CreatedAt, err = parseRequiredTime(createdRaw); err != nil {
		return nil, fmt.Errorf("session %d created_at: %w", s.ID, err)
	}
	if s.UpdatedAt, err = parseRequiredTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("session %d updated_at: %w", s.ID, err)
	}
	s.Visible = visible != 0
	s.HeroPhotoID = database.ScanInt64(hero)
	if genderRaw.Valid && strings.TrimSpace(genderRaw.String) != "" {
		s.GenderAnalysis = json.RawMessage(genderRaw.String)
	}
	return &s, nil
}

func scanPhoto(row scanner) (*Photo, error) {
	var (
		p           Photo
		rejected    int64
		metadataRaw string
		exifRaw     string
		faceRaw     sql.NullString
		faceAtRaw   sql.NullString
		portraitRaw sql.NullString
		assetKey    sql.NullString
		contentType sql.NullString
		takenRaw    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(
		&p.ID,
		&p.SessionID,
		&p.Filename,
		&p.RawPath,
		&p.Position,
		&rejected,
		&metadataRaw,
		&exifRaw,
		&faceRaw,
		&faceAtRaw,
		&portraitRaw,
		&assetKey,
		&contentType,
		&takenRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	p.Rejected = rejected != 0
	p.AssetKey = assetKey.String
	p.ContentType = contentType.String

	if err := decodeJSON(metadataRaw, &p.Metadata); err != nil {
		return nil, fmt.Errorf("photo %d metadata: %w", p.ID, err)
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if err := decodeJSON(exifRaw, &p.ExifData); err != nil {
		return nil, fmt.Errorf("photo %d exif_data: %w", p.ID, err)
	}
	if p.ExifData == nil {
		p.ExifData = map[string]map[string]any{}
	}
	if faceRaw.Valid && strings.TrimSpace(faceRaw.String) != "" {
		var fd FaceData
		if err := decodeJSON(faceRaw.String, &fd); err != nil {
			return nil, fmt.Errorf("photo %d face_data: %w", p.ID, err)
		}
		if fd.Faces == nil {
			fd.Faces = []FaceBox{}
		}
		p.FaceData = &fd
	}
	if portraitRaw.Valid && strings.TrimSpace(portraitRaw.String) != "" {
		var rect Rect
		if err := decodeJSON(portraitRaw.String, &rect); err != nil {
			return nil, fmt.Errorf("photo %d portrait_crop: %w", p.ID, err)
		}
		p.PortraitCrop = &rect
	}

	var err error
	if p.FaceDetectedAt, err = database.ScanTime(faceAtRaw); err != nil {
		return nil, fmt.Errorf("photo %d face_detected_at: %w", p.ID, err)
	}
	if p.TakenAt, err = database.ScanTime(takenRaw); err != nil {
		return nil, fmt.Errorf("photo %d taken_at: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseRequiredTime(createdRaw); err != nil {
		return nil, fmt.Errorf("photo %d created_at: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseRequiredTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("photo %d updated_at: %w", p.ID, err)
	}
	return &p, nil
}

func scanSitting(row scanner) (*Sitting, error) {
	var (
		s          Sitting
		hero       sql.NullInt64
		createdRaw string
	)
	if err := row.Scan(&s.ID, &s.SessionID, &hero, &s.Visitor, &createdRaw); err != nil {
		return nil, err
	}
	s.HeroPhotoID = database.ScanInt64(hero)
	created, err := parseRequiredTime(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("sitting %d created_at: %w", s.ID, err)
	}
	s.CreatedAt = created
	return &s, nil
}

func parseRequiredTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return database.ParseTime(raw)
}

func decodeJSON(raw string, dest any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
