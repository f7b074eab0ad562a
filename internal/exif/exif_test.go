package exif_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"burstline/internal/exif"
	"burstline/internal/services/tool"
	"burstline/internal/testsupport"
)

const sampleOutput = `[{
  "SourceFile": "/raw/IMG_0001.JPG",
  "ExifToolVersion": 12.76,
  "Make": "Canon",
  "Model": "EOS R6",
  "LensModel": "RF24-70mm F2.8 L IS USM",
  "ISO": 800,
  "FNumber": 2.8,
  "ExposureTime": 0.004,
  "FocalLength": 50,
  "ImageWidth": 6000,
  "ImageHeight": 4000,
  "Orientation": 6,
  "DateTimeOriginal": "2024:06:01 10:15:30",
  "GPSLatitude": 51.5,
  "GPSLongitude": -0.12,
  "GPSDateTime": "2024:06:01 09:15:30Z",
  "UserComment": "undef",
  "Artist": "",
  "Copyright": null,
  "ThumbnailImage": "(Binary data 8123 bytes, use -b option to extract)",
  "Rating": 3
}]`

func TestParseCategorizesAndFilters(t *testing.T) {
	data, err := exif.Parse([]byte(sampleOutput), exif.DefaultRules)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	expect := map[string]string{
		"Make":             exif.CategoryCamera,
		"LensModel":        exif.CategoryCamera,
		"ISO":              exif.CategoryExposure,
		"ExposureTime":     exif.CategoryExposure,
		"ImageWidth":       exif.CategoryImage,
		"DateTimeOriginal": exif.CategoryImage,
		"GPSLatitude":      exif.CategoryGPS,
		"GPSDateTime":      exif.CategoryGPS,
		"Rating":           exif.CategoryOther,
	}
	for field, category := range expect {
		if _, ok := data[category][field]; !ok {
			t.Fatalf("expected %s under %s, got %v", field, category, data)
		}
	}
	for _, dropped := range []string{"UserComment", "Artist", "Copyright", "ThumbnailImage", "SourceFile", "ExifToolVersion"} {
		for category, fields := range data {
			if _, ok := fields[dropped]; ok {
				t.Fatalf("expected %s to be dropped, found under %s", dropped, category)
			}
		}
	}
}

func TestKeepDropsOverlongStrings(t *testing.T) {
	if exif.Keep(strings.Repeat("x", 201)) {
		t.Fatal("expected overlong string to be dropped")
	}
	if !exif.Keep(strings.Repeat("x", 200)) {
		t.Fatal("expected 200-char string to be kept")
	}
	if exif.Keep(" UNDEF ") || exif.Keep(nil) || exif.Keep("   ") {
		t.Fatal("expected empty-ish values to be dropped")
	}
	if !exif.Keep(0.0) {
		t.Fatal("expected zero numbers to be kept")
	}
}

func TestSummary(t *testing.T) {
	data, err := exif.Parse([]byte(sampleOutput), exif.DefaultRules)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	summary := data.Summary()
	if summary["camera"] != "Canon EOS R6" || summary["iso"] != 800.0 || summary["orientation"] != 6 {
		t.Fatalf("unexpected summary %v", summary)
	}
	if summary["taken_at"] != "2024-06-01T10:15:30Z" {
		t.Fatalf("unexpected taken_at %v", summary["taken_at"])
	}
	taken, ok := data.TakenAt()
	if !ok || !taken.Equal(time.Date(2024, 6, 1, 10, 15, 30, 0, time.UTC)) {
		t.Fatalf("unexpected TakenAt %v %v", taken, ok)
	}
}

func TestParseMalformedOutputIsNoData(t *testing.T) {
	for _, output := range []string{"", "not json", "[]", `[{"SourceFile":"x","Artist":""}]`} {
		if _, err := exif.Parse([]byte(output), exif.DefaultRules); !errors.Is(err, exif.ErrNoData) {
			t.Fatalf("Parse(%q): expected ErrNoData, got %v", output, err)
		}
	}
}

func TestToolRunsExiftool(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := testsupport.WriteScript(t, filepath.Join(dir, "exiftool"),
		fmt.Sprintf("echo \"$@\" > %q\ncat <<'JSON'\n%s\nJSON\n", argsFile, sampleOutput))
	runner, err := tool.New("exif", script, 5)
	if err != nil {
		t.Fatalf("tool.New: %v", err)
	}

	data, err := exif.NewTool(runner).Extract(context.Background(), "/raw/IMG_0001.JPG")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.Orientation() != 6 {
		t.Fatalf("expected orientation 6, got %d", data.Orientation())
	}
	args := testsupport.ReadFile(t, argsFile)
	if strings.TrimSpace(args) != "-json -n -- /raw/IMG_0001.JPG" {
		t.Fatalf("unexpected args %q", args)
	}
}
