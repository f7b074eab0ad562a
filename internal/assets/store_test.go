package assets_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"burstline/internal/assets"
	"burstline/internal/catalog"
	"burstline/internal/services"
	"burstline/internal/testsupport"
)

func newStore(t *testing.T) (*assets.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return assets.NewStore(cfg, nil), testsupport.BaseDir(cfg)
}

func attachJPEG(t *testing.T, store *assets.Store, base string, photoID int64, w, h int) assets.Ref {
	t.Helper()
	src := testsupport.WriteJPEG(t, filepath.Join(base, "raw", "photo.jpg"), w, h)
	f, err := os.Open(src)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	ref, err := store.Attach(context.Background(), photoID, f, "IMG_0001.JPG", "")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return ref
}

func TestAttachStoresOriginal(t *testing.T) {
	store, base := newStore(t)
	ref := attachJPEG(t, store, base, 12, 64, 48)

	if ref.Key != "originals/12/original.jpg" {
		t.Fatalf("unexpected key %q", ref.Key)
	}
	if ref.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ref.ContentType)
	}
	if ref.Size == 0 || ref.Checksum == "" {
		t.Fatalf("expected size and checksum, got %+v", ref)
	}
	if !strings.HasSuffix(ref.URL, "/assets/originals/12/original.jpg") {
		t.Fatalf("unexpected url %q", ref.URL)
	}

	original, err := store.Original(12)
	if err != nil {
		t.Fatalf("Original: %v", err)
	}
	if original.Path != ref.Path || original.Size != ref.Size {
		t.Fatalf("Original mismatch: %+v vs %+v", original, ref)
	}
}

func TestAttachRejectsUndecodableInput(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.Attach(context.Background(), 3, strings.NewReader("not an image"), "broken.jpg", "image/jpeg")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("decode failures should be retried")
	}
	if _, err := store.Original(3); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected no original, got %v", err)
	}
}

func TestVariantRendersOnceAndIsStable(t *testing.T) {
	store, base := newStore(t)
	attachJPEG(t, store, base, 5, 1000, 500)
	ctx := context.Background()

	thumb, err := store.Variant(ctx, 5, "thumb")
	if err != nil {
		t.Fatalf("Variant thumb: %v", err)
	}
	img, err := imaging.Open(thumb.Path)
	if err != nil {
		t.Fatalf("open thumb: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 300 {
		t.Fatalf("expected 300x300 fill, got %v", img.Bounds())
	}

	medium, err := store.Variant(ctx, 5, "medium")
	if err != nil {
		t.Fatalf("Variant medium: %v", err)
	}
	img, err = imaging.Open(medium.Path)
	if err != nil {
		t.Fatalf("open medium: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 400 {
		t.Fatalf("expected 800x400 fit, got %v", img.Bounds())
	}

	info, err := os.Stat(thumb.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	again, err := store.Variant(ctx, 5, "thumb")
	if err != nil {
		t.Fatalf("Variant again: %v", err)
	}
	info2, err := os.Stat(again.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if again.Key != thumb.Key || !info2.ModTime().Equal(info.ModTime()) {
		t.Fatal("expected existing variant to be reused")
	}
}

func TestVariantErrors(t *testing.T) {
	store, _ := newStore(t)
	if _, err := store.Variant(context.Background(), 1, "poster"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := store.Variant(context.Background(), 1, "thumb"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found without original, got %v", err)
	}
}

func facePhoto(id int64, faces ...catalog.FaceBox) *catalog.Photo {
	return &catalog.Photo{
		ID: id,
		FaceData: &catalog.FaceData{
			ImageWidth:  400,
			ImageHeight: 300,
			Faces:       faces,
			DetectedAt:  time.Now(),
		},
	}
}

func TestFaceCropURLAndRender(t *testing.T) {
	store, base := newStore(t)
	attachJPEG(t, store, base, 9, 400, 300)
	photo := facePhoto(9, catalog.FaceBox{X: 150, Y: 100, Width: 60, Height: 80, Confidence: 0.9})

	url, ok := store.FaceCropURL(photo, 150)
	if !ok || !strings.HasSuffix(url, "/faces/9/150.jpg") {
		t.Fatalf("unexpected url %q, %v", url, ok)
	}
	if _, ok := store.FaceCropURL(photo, 999); ok {
		t.Fatal("expected unsupported size to have no url")
	}
	if _, ok := store.FaceCropURL(facePhoto(9), 150); ok {
		t.Fatal("expected no url without faces")
	}

	ref, err := store.FaceCrop(context.Background(), photo, 150)
	if err != nil {
		t.Fatalf("FaceCrop: %v", err)
	}
	img, err := imaging.Open(ref.Path)
	if err != nil {
		t.Fatalf("open crop: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 150, 150) {
		t.Fatalf("expected 150x150 crop, got %v", img.Bounds())
	}
}

func TestFaceCropWithoutFaces(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.FaceCrop(context.Background(), facePhoto(2), 150)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPortraitRectUsesLargestFaceAndClamps(t *testing.T) {
	data := &catalog.FaceData{
		ImageWidth:  400,
		ImageHeight: 300,
		Faces: []catalog.FaceBox{
			{X: 10, Y: 10, Width: 20, Height: 20},
			{X: 0, Y: 0, Width: 100, Height: 80},
		},
	}
	rect, ok := assets.PortraitRect(data, 0.5)
	if !ok {
		t.Fatal("expected rect")
	}
	if rect != (catalog.Rect{X: 0, Y: 0, Width: 200, Height: 200}) {
		t.Fatalf("unexpected rect %+v", rect)
	}

	rect, ok = assets.PortraitRect(data, 5)
	if !ok || rect.Width != 300 || rect.Height != 300 {
		t.Fatalf("expected rect clamped to image height, got %+v", rect)
	}
	if rect.X+rect.Width > 400 || rect.Y+rect.Height > 300 {
		t.Fatalf("rect escapes image: %+v", rect)
	}

	if _, ok := assets.PortraitRect(&catalog.FaceData{ImageWidth: 10, ImageHeight: 10, Faces: []catalog.FaceBox{}}, 0.5); ok {
		t.Fatal("expected no rect without faces")
	}
}

func TestAttachReplacesOriginalWithDifferentExtension(t *testing.T) {
	store, base := newStore(t)
	attachJPEG(t, store, base, 4, 32, 32)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(16, 16, image.Black.C), imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	ref, err := store.Attach(context.Background(), 4, &buf, "IMG_0001.png", "")
	if err != nil {
		t.Fatalf("Attach png: %v", err)
	}
	if ref.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", ref.ContentType)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(ref.Path), "original.*"))
	if len(matches) != 1 {
		t.Fatalf("expected a single original, got %v", matches)
	}
}

func TestDimensionsReadsHeader(t *testing.T) {
	path := testsupport.WriteJPEG(t, filepath.Join(t.TempDir(), "dims.jpg"), 120, 90)
	w, h, err := assets.Dimensions(path)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 120 || h != 90 {
		t.Fatalf("unexpected dimensions %dx%d", w, h)
	}
}
