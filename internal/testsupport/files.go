package testsupport

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteJPEG writes a real width x height JPEG with a two-tone pattern so crops
// and resizes have something to look at.
func WriteJPEG(t testing.TB, path string, width, height int) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := imaging.New(width, height, color.NRGBA{R: 40, G: 90, B: 160, A: 255})
	inner := imaging.New(max(1, width/2), max(1, height/2), color.NRGBA{R: 220, G: 200, B: 120, A: 255})
	img = imaging.Paste(img, inner, image.Pt(width/4, height/4))
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("save jpeg %s: %v", path, err)
	}
	return path
}

// ReadFile returns the file contents as a string.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
