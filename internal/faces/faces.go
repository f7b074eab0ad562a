// Package faces runs the external face detector and maps its boxes into the
// EXIF-oriented pixel space the rest of burstline uses.
package faces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"burstline/internal/services"
	"burstline/internal/services/tool"
)

// Box is a face bounding box with top-left origin.
type Box struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Area returns the box area in square pixels.
func (b Box) Area() float64 { return b.Width * b.Height }

// Result is the detector's report for one image. Boxes are in the raw
// (un-oriented) pixel grid unless Oriented is set.
type Result struct {
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`
	Faces       []Box  `json:"faces"`
	Oriented    bool   `json:"oriented,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Detector finds faces in an image file.
type Detector interface {
	Detect(ctx context.Context, path string) (Result, error)
}

// Tool runs a detector binary that prints a Result as JSON on stdout.
type Tool struct {
	runner *tool.Runner
}

// NewTool wraps runner.
func NewTool(runner *tool.Runner) *Tool {
	return &Tool{runner: runner}
}

// Detect invokes the detector with path as its only argument. A non-empty
// error field in the output is reported as an external tool failure.
func (t *Tool) Detect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("face detect: empty path")
	}
	output, err := t.runner.Run(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return Parse(output)
}

// Parse decodes detector output. A missing faces list decodes as empty.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "faces", "parse", "detector output is not valid JSON", err)
	}
	if msg := strings.TrimSpace(result.Error); msg != "" {
		return Result{}, services.Wrap(services.ErrExternalTool, "faces", "detect", fmt.Sprintf("detector reported: %s", msg), nil)
	}
	if result.Faces == nil {
		result.Faces = []Box{}
	}
	return result, nil
}
