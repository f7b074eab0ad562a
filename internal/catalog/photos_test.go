package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"burstline/internal/catalog"
	"burstline/internal/services"
	"burstline/internal/testsupport"
)

func TestSetAttachmentOnlyOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	s := testsupport.NewSession(t, cat, "burst_attach", 1)
	id := testsupport.PhotoIDs(t, cat, s.ID)[0]

	applied, err := cat.SetAttachment(ctx, id, "originals/1.jpg", "image/jpeg")
	if err != nil || !applied {
		t.Fatalf("first SetAttachment = %v, %v", applied, err)
	}
	applied, err = cat.SetAttachment(ctx, id, "originals/other.jpg", "image/jpeg")
	if err != nil || applied {
		t.Fatalf("second SetAttachment = %v, %v", applied, err)
	}
	photo, err := cat.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if photo.AssetKey != "originals/1.jpg" || !photo.Attached() {
		t.Fatalf("attachment overwritten: %+v", photo)
	}
	if _, err := cat.SetAttachment(ctx, 4242, "x", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown photo, got %v", err)
	}
}

func TestSetExifMergesMetadataOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	session, err := cat.CreateSession(ctx, catalog.NewSession{
		BurstID: "burst_exif",
		Photos:  []catalog.NewPhoto{{Filename: "a.jpg", Metadata: map[string]any{"uploader": "desk-2"}}},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := testsupport.PhotoIDs(t, cat, session.ID)[0]

	exif := map[string]map[string]any{"camera": {"Make": "Canon"}}
	applied, err := cat.SetExif(ctx, id, exif, map[string]any{"camera_make": "Canon"}, nil)
	if err != nil || !applied {
		t.Fatalf("SetExif = %v, %v", applied, err)
	}
	applied, err = cat.SetExif(ctx, id, map[string]map[string]any{"camera": {"Make": "Nikon"}}, map[string]any{"camera_make": "Nikon"}, nil)
	if err != nil || applied {
		t.Fatalf("second SetExif = %v, %v", applied, err)
	}

	photo, err := cat.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if photo.Metadata["uploader"] != "desk-2" || photo.Metadata["camera_make"] != "Canon" {
		t.Fatalf("expected merged metadata, got %v", photo.Metadata)
	}
	if photo.ExifData["camera"]["Make"] != "Canon" {
		t.Fatalf("unexpected exif data %v", photo.ExifData)
	}
}

func TestSetFacesStoresEmptyArray(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	s := testsupport.NewSession(t, cat, "burst_faces", 1)
	id := testsupport.PhotoIDs(t, cat, s.ID)[0]

	if applied, err := cat.SetFaces(ctx, id, catalog.FaceData{ImageWidth: 640, ImageHeight: 480}); err != nil || !applied {
		t.Fatalf("SetFaces = %v, %v", applied, err)
	}

	var raw string
	if err := db.QueryRowContext(ctx, "SELECT face_data FROM photos WHERE id = ?", id).Scan(&raw); err != nil {
		t.Fatalf("read face_data: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("decode face_data: %v", err)
	}
	if string(decoded["faces"]) != "[]" {
		t.Fatalf("expected faces to be [], got %s", decoded["faces"])
	}

	photo, err := cat.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if !photo.FacesDetected() || photo.FaceData == nil || photo.FaceData.Faces == nil || len(photo.FaceData.Faces) != 0 {
		t.Fatalf("unexpected face state %+v", photo.FaceData)
	}
}

func TestSetPortraitCropAndRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	s := testsupport.NewSession(t, cat, "burst_crop", 2)
	ids := testsupport.PhotoIDs(t, cat, s.ID)

	if err := cat.SetPortraitCrop(ctx, ids[0], &catalog.Rect{X: 10, Y: 20, Width: 100, Height: 120}); err != nil {
		t.Fatalf("SetPortraitCrop: %v", err)
	}
	if err := cat.SetRejected(ctx, ids[1], true); err != nil {
		t.Fatalf("SetRejected: %v", err)
	}
	photos, err := cat.ListPhotos(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	if photos[0].PortraitCrop == nil || photos[0].PortraitCrop.Height != 120 {
		t.Fatalf("unexpected crop %+v", photos[0].PortraitCrop)
	}
	if !photos[1].Rejected || photos[0].Rejected {
		t.Fatalf("unexpected rejected flags %v %v", photos[0].Rejected, photos[1].Rejected)
	}
}

func TestSetGenderAnalysisRequiresJSON(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()
	s := testsupport.NewSession(t, cat, "burst_gender", 1)

	if err := cat.SetGenderAnalysis(ctx, s.ID, json.RawMessage("not json"), time.Now()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	at := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	if err := cat.SetGenderAnalysis(ctx, s.ID, json.RawMessage(`{"female":2,"male":1}`), at); err != nil {
		t.Fatalf("SetGenderAnalysis: %v", err)
	}
	reloaded, err := cat.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.GenderAnalyzedAt == nil || !reloaded.GenderAnalyzedAt.Equal(at) {
		t.Fatalf("unexpected analyzed_at %v", reloaded.GenderAnalyzedAt)
	}
	if string(reloaded.GenderAnalysis) != `{"female":2,"male":1}` {
		t.Fatalf("unexpected analysis %s", reloaded.GenderAnalysis)
	}
}

func TestCreateSessionRejectsDuplicateBurst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	testsupport.NewSession(t, cat, "burst_dup", 1)

	_, err := cat.CreateSession(context.Background(), catalog.NewSession{BurstID: "burst_dup"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckInvariantsReportsDrift(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	s := testsupport.NewSession(t, cat, "burst_drift", 3)
	assertInvariants(t, cat, s.ID)

	ids := testsupport.PhotoIDs(t, cat, s.ID)
	if _, err := db.ExecContext(ctx, "UPDATE photos SET position = 7 WHERE id = ?", ids[2]); err != nil {
		t.Fatalf("corrupt position: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE photo_sessions SET photo_count = 4 WHERE id = ?", s.ID); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}
	report, err := cat.CheckInvariants(ctx, s.ID)
	if err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}
	if report.OK() || len(report.Problems) != 2 {
		t.Fatalf("expected gap and count problems, got %v", report.Problems)
	}
}

func TestSetFacesOnlyOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	s := testsupport.NewSession(t, cat, "burst_faces_once", 1)
	id := testsupport.PhotoIDs(t, cat, s.ID)[0]

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	applied, err := cat.SetFaces(ctx, id, catalog.FaceData{
		ImageWidth:  640,
		ImageHeight: 480,
		Faces:       []catalog.FaceBox{{X: 10, Y: 20, Width: 100, Height: 120, Confidence: 0.9}},
		DetectedAt:  first,
	})
	if err != nil || !applied {
		t.Fatalf("first SetFaces = %v, %v", applied, err)
	}
	applied, err = cat.SetFaces(ctx, id, catalog.FaceData{ImageWidth: 320, ImageHeight: 240, DetectedAt: first.Add(time.Hour)})
	if err != nil || applied {
		t.Fatalf("second SetFaces = %v, %v", applied, err)
	}

	photo, err := cat.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if photo.FaceData == nil || len(photo.FaceData.Faces) != 1 || photo.FaceData.ImageWidth != 640 {
		t.Fatalf("face data overwritten: %+v", photo.FaceData)
	}
	if photo.FaceDetectedAt == nil || !photo.FaceDetectedAt.Equal(first) {
		t.Fatalf("detection time overwritten: %v", photo.FaceDetectedAt)
	}
	if _, err := cat.SetFaces(ctx, 4242, catalog.FaceData{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown photo, got %v", err)
	}
}

func TestSetExifFillsMissingTakenAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	session, err := cat.CreateSession(ctx, catalog.NewSession{
		BurstID: "burst_taken",
		Photos:  []catalog.NewPhoto{{Filename: "a.jpg"}},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	missing := testsupport.PhotoIDs(t, cat, session.ID)[0]

	captured := time.Date(2024, 5, 30, 17, 45, 12, 0, time.UTC)
	exif := map[string]map[string]any{"image": {"DateTimeOriginal": "2024:05:30 17:45:12"}}
	if applied, err := cat.SetExif(ctx, missing, exif, nil, &captured); err != nil || !applied {
		t.Fatalf("SetExif = %v, %v", applied, err)
	}
	photo, err := cat.GetPhoto(ctx, missing)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if photo.TakenAt == nil || !photo.TakenAt.Equal(captured) {
		t.Fatalf("expected taken_at %v, got %v", captured, photo.TakenAt)
	}

	// An imported capture time is kept.
	s := testsupport.NewSession(t, cat, "burst_taken_kept", 1)
	kept := testsupport.PhotoIDs(t, cat, s.ID)[0]
	if applied, err := cat.SetExif(ctx, kept, exif, nil, &captured); err != nil || !applied {
		t.Fatalf("SetExif = %v, %v", applied, err)
	}
	photo, err = cat.GetPhoto(ctx, kept)
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	imported := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if photo.TakenAt == nil || !photo.TakenAt.Equal(imported) {
		t.Fatalf("expected imported taken_at %v to be kept, got %v", imported, photo.TakenAt)
	}
}
