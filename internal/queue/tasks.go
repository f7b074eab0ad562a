package queue

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Task is a typed job payload.
type Task interface {
	Kind() Kind
	// Target returns the photo or session the task acts on; the other id is zero.
	Target() (photoID, sessionID int64)
}

// AttachTask stores a photo's raw file as its original asset.
type AttachTask struct {
	PhotoID int64 `json:"photo_id"`
}

func (AttachTask) Kind() Kind { return KindAttach }
func (t AttachTask) Target() (int64, int64) { return t.PhotoID, 0 }

// VariantsTask renders the named derived sizes. Empty means the configured defaults.
type VariantsTask struct {
	PhotoID  int64    `json:"photo_id"`
	Variants []string `json:"variants,omitempty"`
}

func (VariantsTask) Kind() Kind { return KindVariants }
func (t VariantsTask) Target() (int64, int64) { return t.PhotoID, 0 }

// ExifTask extracts EXIF metadata.
type ExifTask struct {
	PhotoID int64 `json:"photo_id"`
}

func (ExifTask) Kind() Kind { return KindExif }
func (t ExifTask) Target() (int64, int64) { return t.PhotoID, 0 }

// FaceTask runs face detection.
type FaceTask struct {
	PhotoID int64 `json:"photo_id"`
}

func (FaceTask) Kind() Kind { return KindFaces }
func (t FaceTask) Target() (int64, int64) { return t.PhotoID, 0 }

// PortraitTask computes the portrait crop and pre-warms face crops.
type PortraitTask struct {
	PhotoID int64 `json:"photo_id"`
}

func (PortraitTask) Kind() Kind { return KindPortrait }
func (t PortraitTask) Target() (int64, int64) { return t.PhotoID, 0 }

// SessionAnalysisTask runs the optional session analyzer.
type SessionAnalysisTask struct {
	SessionID int64 `json:"session_id"`
}

func (SessionAnalysisTask) Kind() Kind { return KindSessionAnalysis }
func (t SessionAnalysisTask) Target() (int64, int64) { return 0, t.SessionID }

// DecodeTask rebuilds the typed task for kind from its JSON payload.
func DecodeTask(kind Kind, payload []byte) (Task, error) {
	var (
		task Task
		err  error
	)
	switch kind {
	case KindAttach:
		var t AttachTask
		err = json.Unmarshal(payload, &t)
		task = t
	case KindVariants:
		var t VariantsTask
		err = json.Unmarshal(payload, &t)
		task = t
	case KindExif:
		var t ExifTask
		err = json.Unmarshal(payload, &t)
		task = t
	case KindFaces:
		var t FaceTask
		err = json.Unmarshal(payload, &t)
		task = t
	case KindPortrait:
		var t PortraitTask
		err = json.Unmarshal(payload, &t)
		task = t
	case KindSessionAnalysis:
		var t SessionAnalysisTask
		err = json.Unmarshal(payload, &t)
		task = t
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return task, nil
}

func validateTask(task Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	if !task.Kind().Valid() {
		return fmt.Errorf("unknown job kind %q", task.Kind())
	}
	photoID, sessionID := task.Target()
	if photoID <= 0 && sessionID <= 0 {
		return fmt.Errorf("%s task has no target", task.Kind())
	}
	return nil
}

// mergeVariants unions two variant lists keeping first-seen order. An empty
// list means "all defaults" and absorbs the other.
func mergeVariants(existing, incoming []string) []string {
	if len(existing) == 0 || len(incoming) == 0 {
		return nil
	}
	merged := slices.Clone(existing)
	for _, name := range incoming {
		if !slices.Contains(merged, name) {
			merged = append(merged, name)
		}
	}
	return merged
}
