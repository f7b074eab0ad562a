package main

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"burstline/internal/testsupport"
)

func TestPhotoProcessRunsAttachAndFollowUps(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(env.baseDir, "incoming")
	writeImportDir(t, dir, 2)
	if _, _, err := runCLI(t, []string{"import", dir, "--burst-id", "burst-p"}, env.configPath); err != nil {
		t.Fatalf("import: %v", err)
	}

	_, cat := testsupport.MustOpenCatalog(t, env.cfg)
	session, err := cat.GetSessionByBurstID(context.Background(), "burst-p")
	if err != nil {
		t.Fatalf("GetSessionByBurstID: %v", err)
	}
	ids := testsupport.PhotoIDs(t, cat, session.ID)
	photoID := strconv.FormatInt(ids[0], 10)

	out, _, err := runCLI(t, []string{"photo", "process", photoID}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v\n%s", err, out)
	}
	requireContains(t, out, "Attach")
	requireContains(t, out, "Variants")
	requireContains(t, out, "Exif")

	photo, err := cat.GetPhoto(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if !photo.Attached() {
		t.Fatal("expected photo to be attached")
	}
	other, err := cat.GetPhoto(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if other.Attached() {
		t.Fatal("processing one photo must not touch its neighbours")
	}

	out, _, err = runCLI(t, []string{"photo", "show", photoID}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "succeeded")
}

func TestPhotoProcessRejectsUnknownStage(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"photo", "process", "1", "--stage", "session_analysis"}, env.configPath); err == nil {
		t.Fatal("expected unsupported stage error")
	}
}

func TestPhotoReject(t *testing.T) {
	env := setupCLITestEnv(t)
	_, cat := testsupport.MustOpenCatalog(t, env.cfg)
	session := testsupport.NewSession(t, cat, "burst-r", 1)
	id := testsupport.PhotoIDs(t, cat, session.ID)[0]

	if _, _, err := runCLI(t, []string{"photo", "reject", strconv.FormatInt(id, 10)}, env.configPath); err != nil {
		t.Fatalf("reject: %v", err)
	}
	photo, err := cat.GetPhoto(context.Background(), id)
	if err != nil || !photo.Rejected {
		t.Fatalf("expected rejected photo, got %+v, %v", photo, err)
	}
	if _, _, err := runCLI(t, []string{"photo", "reject", "--undo", strconv.FormatInt(id, 10)}, env.configPath); err != nil {
		t.Fatalf("reject --undo: %v", err)
	}
	photo, _ = cat.GetPhoto(context.Background(), id)
	if photo.Rejected {
		t.Fatal("expected rejection cleared")
	}
}
