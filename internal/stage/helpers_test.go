package stage

import (
	"errors"
	"testing"

	"burstline/internal/queue"
	"burstline/internal/services"
)

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"session_analysis": "Session Analysis",
		"face_detection":   "Face Detection",
		"exif":             "Exif",
		"":                 "",
	}
	for input, want := range cases {
		if got := Label(input); got != want {
			t.Fatalf("Label(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDecodeTask(t *testing.T) {
	job := &queue.Job{ID: 1, Kind: queue.KindFaces, Payload: []byte(`{"photo_id": 42}`)}
	task, err := DecodeTask[queue.FaceTask](job)
	if err != nil {
		t.Fatalf("DecodeTask: %v", err)
	}
	if task.PhotoID != 42 {
		t.Fatalf("unexpected task %+v", task)
	}

	if _, err := DecodeTask[queue.ExifTask](job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for mismatched kind, got %v", err)
	}
	job.Payload = []byte(`{`)
	if _, err := DecodeTask[queue.FaceTask](job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad payload, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	if h := Healthy("exif"); !h.Ready || h.Name != "exif" || h.State() != "ready" {
		t.Fatalf("unexpected %+v", h)
	}
	if h := Unhealthy("faces", "detector missing"); h.Ready || h.Detail != "detector missing" || h.State() != "not ready" {
		t.Fatalf("unexpected %+v", h)
	}
	if h := Disabled("session_analysis", " analyzer not configured "); !h.Ready || h.State() != "disabled" || h.Detail != "disabled: analyzer not configured" {
		t.Fatalf("unexpected %+v", h)
	}
	if BestEffort.String() != "best-effort" || Required.String() != "required" {
		t.Fatal("unexpected policy labels")
	}
}
