package faces_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"burstline/internal/faces"
	"burstline/internal/services"
	"burstline/internal/services/tool"
	"burstline/internal/testsupport"
)

func TestNormalizeOrientations(t *testing.T) {
	box := faces.Box{X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.8}
	tests := []struct {
		orientation int
		want        faces.Box
		width       int
		height      int
	}{
		{1, faces.Box{X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.8}, 400, 300},
		{2, faces.Box{X: 360, Y: 20, Width: 30, Height: 40, Confidence: 0.8}, 400, 300},
		{3, faces.Box{X: 360, Y: 240, Width: 30, Height: 40, Confidence: 0.8}, 400, 300},
		{4, faces.Box{X: 10, Y: 240, Width: 30, Height: 40, Confidence: 0.8}, 400, 300},
		{5, faces.Box{X: 20, Y: 10, Width: 40, Height: 30, Confidence: 0.8}, 300, 400},
		{6, faces.Box{X: 240, Y: 10, Width: 40, Height: 30, Confidence: 0.8}, 300, 400},
		{7, faces.Box{X: 240, Y: 360, Width: 40, Height: 30, Confidence: 0.8}, 300, 400},
		{8, faces.Box{X: 20, Y: 360, Width: 40, Height: 30, Confidence: 0.8}, 300, 400},
	}
	for _, tc := range tests {
		res := faces.Normalize(faces.Result{ImageWidth: 400, ImageHeight: 300, Faces: []faces.Box{box}}, tc.orientation, 400, 300)
		if res.ImageWidth != tc.width || res.ImageHeight != tc.height {
			t.Fatalf("orientation %d: dims %dx%d, want %dx%d", tc.orientation, res.ImageWidth, res.ImageHeight, tc.width, tc.height)
		}
		if len(res.Faces) != 1 || res.Faces[0] != tc.want {
			t.Fatalf("orientation %d: got %+v, want %+v", tc.orientation, res.Faces, tc.want)
		}
	}
}

func TestNormalizeRescalesAndClamps(t *testing.T) {
	res := faces.Normalize(faces.Result{
		ImageWidth:  200,
		ImageHeight: 150,
		Faces: []faces.Box{
			{X: 10, Y: 10, Width: 20, Height: 20},
			{X: 190, Y: 140, Width: 40, Height: 40},
			{X: 300, Y: 300, Width: 5, Height: 5},
		},
	}, 1, 400, 300)

	if len(res.Faces) != 2 {
		t.Fatalf("expected out-of-frame box dropped, got %+v", res.Faces)
	}
	if res.Faces[0] != (faces.Box{X: 20, Y: 20, Width: 40, Height: 40}) {
		t.Fatalf("unexpected rescaled box %+v", res.Faces[0])
	}
	if res.Faces[1].X+res.Faces[1].Width > 400 || res.Faces[1].Y+res.Faces[1].Height > 300 {
		t.Fatalf("expected clamped box, got %+v", res.Faces[1])
	}
}

func TestNormalizeKeepsOrientedResults(t *testing.T) {
	box := faces.Box{X: 5, Y: 5, Width: 10, Height: 10}
	res := faces.Normalize(faces.Result{ImageWidth: 300, ImageHeight: 400, Faces: []faces.Box{box}, Oriented: true}, 6, 400, 300)
	if res.Faces[0] != box {
		t.Fatalf("expected oriented result untouched, got %+v", res.Faces[0])
	}
}

func TestNormalizeEmptyFacesIsEmptySlice(t *testing.T) {
	res := faces.Normalize(faces.Result{ImageWidth: 10, ImageHeight: 10}, 1, 10, 10)
	if res.Faces == nil || len(res.Faces) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", res.Faces)
	}
}

func TestParse(t *testing.T) {
	res, err := faces.Parse([]byte(`{"image_width": 640, "image_height": 480}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Faces == nil {
		t.Fatal("expected empty faces slice")
	}
	if _, err := faces.Parse([]byte(`{"error": "model missing"}`)); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := faces.Parse([]byte(`garbage`)); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestToolDetect(t *testing.T) {
	script := testsupport.WriteScript(t, filepath.Join(t.TempDir(), "detector"),
		`echo '{"image_width": 100, "image_height": 80, "faces": [{"x": 1, "y": 2, "width": 10, "height": 12, "confidence": 0.97}]}'`+"\n")
	runner, err := tool.New("faces", script, 5)
	if err != nil {
		t.Fatalf("tool.New: %v", err)
	}
	res, err := faces.NewTool(runner).Detect(context.Background(), "/tmp/photo.jpg")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(res.Faces) != 1 || res.Faces[0].Confidence != 0.97 {
		t.Fatalf("unexpected result %+v", res)
	}
}
