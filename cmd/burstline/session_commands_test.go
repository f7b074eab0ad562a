package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"burstline/internal/queue"
	"burstline/internal/testsupport"
)

func TestImportCreatesSessionAndQueuesAttach(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(env.baseDir, "incoming")
	writeImportDir(t, dir, 3)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 10)

	out, _, err := runCLI(t, []string{"import", dir, "--burst-id", "burst-a"}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Imported 3 photos")
	requireContains(t, out, "Queued 3 attach jobs")

	_, cat := testsupport.MustOpenCatalog(t, env.cfg)
	session, err := cat.GetSessionByBurstID(context.Background(), "burst-a")
	if err != nil {
		t.Fatalf("GetSessionByBurstID: %v", err)
	}
	photos, err := cat.ListPhotos(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	if len(photos) != 3 || photos[0].Filename != "IMG_A.jpg" || photos[2].Filename != "IMG_C.jpg" {
		t.Fatalf("unexpected photos %+v", photos)
	}
	if session.SessionDate != "2024-06-01" {
		t.Fatalf("unexpected session date %q", session.SessionDate)
	}

	_, store := testsupport.MustOpenQueue(t, env.cfg)
	jobs, err := store.List(context.Background(), queue.Filter{Kind: queue.KindAttach})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 3 || jobs[0].RequestID == "" {
		t.Fatalf("expected 3 attach jobs with a request id, got %+v", jobs)
	}

	if _, _, err := runCLI(t, []string{"import", filepath.Join(env.baseDir, "empty")}, env.configPath); err == nil {
		t.Fatal("expected import of a missing directory to fail")
	}
}

func TestSessionMergeSplitAndCheck(t *testing.T) {
	env := setupCLITestEnv(t)
	_, cat := testsupport.MustOpenCatalog(t, env.cfg)
	target := testsupport.NewSession(t, cat, "burst-t", 2)
	source := testsupport.NewSession(t, cat, "burst-s", 3)

	out, _, err := runCLI(t, []string{"session", "merge", "burst-t", strconv.FormatInt(source.ID, 10)}, env.configPath)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	requireContains(t, out, "3 photos moved, 5 total")

	if _, err := cat.GetSession(context.Background(), source.ID); err == nil {
		t.Fatal("expected source session to be deleted")
	}

	ids := testsupport.PhotoIDs(t, cat, target.ID)
	out, _, err = runCLI(t, []string{"session", "split", "burst-t", strconv.FormatInt(ids[3], 10), "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	var created sessionJSON
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode split output %q: %v", out, err)
	}
	if created.BurstID != "burst-t-split-2" || created.PhotoCount != 2 {
		t.Fatalf("unexpected split session %+v", created)
	}

	out, _, err = runCLI(t, []string{"session", "check", "burst-t", created.BurstID}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "ok, 3 photos")
	requireContains(t, out, "ok, 2 photos")

	out, _, err = runCLI(t, []string{"session", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "burst-t-split-2")
}

func TestSessionMergeRejectsSelf(t *testing.T) {
	env := setupCLITestEnv(t)
	_, cat := testsupport.MustOpenCatalog(t, env.cfg)
	testsupport.NewSession(t, cat, "burst-x", 2)

	if _, _, err := runCLI(t, []string{"session", "merge", "burst-x", "burst-x"}, env.configPath); err == nil {
		t.Fatal("expected merging a session into itself to fail")
	}
}

func TestSessionHeroAndAnalyze(t *testing.T) {
	env := setupCLITestEnv(t)
	_, cat := testsupport.MustOpenCatalog(t, env.cfg)
	session := testsupport.NewSession(t, cat, "burst-h", 2)
	ids := testsupport.PhotoIDs(t, cat, session.ID)

	if _, _, err := runCLI(t, []string{"session", "hero", "burst-h", strconv.FormatInt(ids[1], 10)}, env.configPath); err != nil {
		t.Fatalf("hero: %v", err)
	}
	updated, err := cat.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if updated.HeroPhotoID == nil || *updated.HeroPhotoID != ids[1] {
		t.Fatalf("expected hero %d, got %v", ids[1], updated.HeroPhotoID)
	}
	if _, _, err := runCLI(t, []string{"session", "hero", "burst-h"}, env.configPath); err == nil {
		t.Fatal("expected hero without photo or --clear to fail")
	}

	out, _, err := runCLI(t, []string{"session", "analyze", "burst-h"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	requireContains(t, out, "Queued analysis job")
}
