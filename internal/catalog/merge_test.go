package catalog_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"burstline/internal/catalog"
	"burstline/internal/services"
	"burstline/internal/testsupport"
)

func positions(t *testing.T, cat *catalog.Catalog, sessionID int64) []int {
	t.Helper()
	photos, err := cat.ListPhotos(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	out := make([]int, 0, len(photos))
	for _, p := range photos {
		out = append(out, p.Position)
	}
	return out
}

func assertInvariants(t *testing.T, cat *catalog.Catalog, sessionID int64) {
	t.Helper()
	report, err := cat.CheckInvariants(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("CheckInvariants(%d): %v", sessionID, err)
	}
	if !report.OK() {
		t.Fatalf("session %d violates invariants: %v", sessionID, report.Problems)
	}
}

func TestMergeMovesPhotosRenumbersAndDeletesSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	burst1 := testsupport.NewSession(t, cat, "burst_1", 2)
	burst2 := testsupport.NewSession(t, cat, "burst_2", 3)
	before := append(testsupport.PhotoIDs(t, cat, burst1.ID), testsupport.PhotoIDs(t, cat, burst2.ID)...)

	result, err := cat.Merge(ctx, burst1.ID, burst2.ID)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Moved != 3 || result.PhotoCount != 5 || result.PreviousMaxPosition != 1 {
		t.Fatalf("unexpected merge result %+v", result)
	}

	if got := positions(t, cat, burst1.ID); !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("expected positions 0..4, got %v", got)
	}
	merged, err := cat.GetSession(ctx, burst1.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if merged.PhotoCount != 5 {
		t.Fatalf("expected photo_count 5, got %d", merged.PhotoCount)
	}

	after := testsupport.PhotoIDs(t, cat, burst1.ID)
	slices.Sort(before)
	sortedAfter := slices.Clone(after)
	slices.Sort(sortedAfter)
	if !slices.Equal(before, sortedAfter) {
		t.Fatalf("expected union of photos %v, got %v", before, after)
	}

	if _, err := cat.GetSession(ctx, burst2.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected source session to be deleted, got %v", err)
	}
	if _, err := cat.GetSessionByBurstID(ctx, "burst_2"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected burst_2 lookup to fail, got %v", err)
	}
	assertInvariants(t, cat, burst1.ID)
}

func TestMergeRenumbersByCurrentPositionThenID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)

	a := testsupport.NewSession(t, cat, "burst_a", 2)
	b := testsupport.NewSession(t, cat, "burst_b", 3)
	aIDs := testsupport.PhotoIDs(t, cat, a.ID)
	bIDs := testsupport.PhotoIDs(t, cat, b.ID)

	if _, err := cat.Merge(context.Background(), a.ID, b.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	want := []int64{aIDs[0], bIDs[0], aIDs[1], bIDs[1], bIDs[2]}
	if got := testsupport.PhotoIDs(t, cat, a.ID); !slices.Equal(got, want) {
		t.Fatalf("unexpected merged order: got %v want %v", got, want)
	}
}

func TestMergePreservesTargetIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	a := testsupport.NewSession(t, cat, "burst_a", 1)
	b := testsupport.NewSession(t, cat, "burst_b", 1)

	if _, err := cat.Merge(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, err := cat.GetSession(ctx, b.ID); err != nil {
		t.Fatalf("expected target %d to survive: %v", b.ID, err)
	}
	if _, err := cat.GetSession(ctx, a.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected source %d to be gone, got %v", a.ID, err)
	}
}

func TestMergeRejectsSameSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	s := testsupport.NewSession(t, cat, "burst_self", 2)

	_, err := cat.Merge(context.Background(), s.ID, s.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := positions(t, cat, s.ID); !slices.Equal(got, []int{0, 1}) {
		t.Fatalf("session mutated: %v", got)
	}
}

func TestMergeMissingSourceLeavesTargetUnchanged(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()
	s := testsupport.NewSession(t, cat, "burst_only", 2)

	_, err := cat.Merge(ctx, s.ID, s.ID+100)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	reloaded, err := cat.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.PhotoCount != 2 || !reloaded.UpdatedAt.Equal(s.UpdatedAt) {
		t.Fatalf("target changed after failed merge: %+v", reloaded)
	}
}

func TestMergeExtendsEndTimeMovesSittingsAndAdoptsHero(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	early := testsupport.NewSession(t, cat, "burst_early", 2)
	late, err := cat.CreateSession(ctx, catalog.NewSession{
		BurstID:     "burst_late",
		SessionDate: "2024-06-01",
		EndedAt:     timePtr(time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)),
		Photos:      []catalog.NewPhoto{{Filename: "late.jpg"}},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	lateIDs := testsupport.PhotoIDs(t, cat, late.ID)
	if err := cat.SetHeroPhoto(ctx, late.ID, &lateIDs[0]); err != nil {
		t.Fatalf("SetHeroPhoto: %v", err)
	}
	if _, err := cat.CreateSitting(ctx, late.ID, &lateIDs[0], "visitor-1"); err != nil {
		t.Fatalf("CreateSitting: %v", err)
	}

	result, err := cat.Merge(ctx, early.ID, late.ID)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.SittingsMoved != 1 {
		t.Fatalf("expected one sitting moved, got %d", result.SittingsMoved)
	}

	merged, err := cat.GetSession(ctx, early.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if merged.EndedAt == nil || !merged.EndedAt.Equal(*late.EndedAt) {
		t.Fatalf("expected ended_at extended to %v, got %v", late.EndedAt, merged.EndedAt)
	}
	if merged.HeroPhotoID == nil || *merged.HeroPhotoID != lateIDs[0] {
		t.Fatalf("expected hero adopted from source, got %v", merged.HeroPhotoID)
	}
	sittings, err := cat.ListSittings(ctx, early.ID)
	if err != nil {
		t.Fatalf("ListSittings: %v", err)
	}
	if len(sittings) != 1 || sittings[0].Visitor != "visitor-1" {
		t.Fatalf("expected sitting to follow merge, got %+v", sittings)
	}
}

func TestMergeKeepsLaterTargetEndTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	target := testsupport.NewSession(t, cat, "burst_target", 3)
	source, err := cat.CreateSession(ctx, catalog.NewSession{
		BurstID: "burst_source",
		EndedAt: timePtr(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
		Photos:  []catalog.NewPhoto{{Filename: "a.jpg"}},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := cat.Merge(ctx, target.ID, source.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	merged, err := cat.GetSession(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !merged.EndedAt.Equal(*target.EndedAt) {
		t.Fatalf("expected target end %v to be kept, got %v", target.EndedAt, merged.EndedAt)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
