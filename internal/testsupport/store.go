package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"burstline/internal/catalog"
	"burstline/internal/config"
	"burstline/internal/database"
	"burstline/internal/queue"
)

// MustOpenDB opens the configured database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// MustOpenCatalog opens the database and wraps it in a catalog.
func MustOpenCatalog(t testing.TB, cfg *config.Config) (*database.DB, *catalog.Catalog) {
	t.Helper()
	db := MustOpenDB(t, cfg)
	return db, catalog.New(db)
}

// MustOpenQueue opens the database and returns a job store using cfg's retry settings.
func MustOpenQueue(t testing.TB, cfg *config.Config, opts ...queue.Option) (*database.DB, *queue.Store) {
	t.Helper()
	db := MustOpenDB(t, cfg)
	return db, queue.NewStoreFromConfig(db, cfg, opts...)
}

// NewSession creates a session named burstID with n photos. Photo i is named
// IMG_000i.jpg, points at a raw path under the temp tree and was taken i
// minutes after 2024-06-01 10:00 UTC.
func NewSession(t testing.TB, cat *catalog.Catalog, burstID string, n int) *catalog.Session {
	t.Helper()

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	photos := make([]catalog.NewPhoto, 0, n)
	for i := range n {
		taken := start.Add(time.Duration(i) * time.Minute)
		name := fmt.Sprintf("%s_IMG_%04d.jpg", burstID, i+1)
		photos = append(photos, catalog.NewPhoto{
			Filename: name,
			RawPath:  filepath.Join("raw", burstID, name),
			TakenAt:  &taken,
		})
	}
	var endedAt *time.Time
	if n > 0 {
		end := start.Add(time.Duration(n-1) * time.Minute)
		endedAt = &end
	}
	session, err := cat.CreateSession(context.Background(), catalog.NewSession{
		BurstID:       burstID,
		SessionNumber: 1,
		SessionDate:   "2024-06-01",
		StartedAt:     &start,
		EndedAt:       endedAt,
		Source:        "camera",
		Visible:       true,
		Photos:        photos,
	})
	if err != nil {
		t.Fatalf("catalog.CreateSession(%s): %v", burstID, err)
	}
	return session
}

// PhotoIDs lists the session's photo ids in position order.
func PhotoIDs(t testing.TB, cat *catalog.Catalog, sessionID int64) []int64 {
	t.Helper()
	photos, err := cat.ListPhotos(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("catalog.ListPhotos(%d): %v", sessionID, err)
	}
	ids := make([]int64, 0, len(photos))
	for _, photo := range photos {
		ids = append(ids, photo.ID)
	}
	return ids
}
