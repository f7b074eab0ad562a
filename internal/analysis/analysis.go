// Package analysis runs the optional session analyzer, an external program
// that inspects a session's representative photos and prints a JSON object
// (for example a gender breakdown of the visitors). burstline stores the
// object verbatim; it does not interpret it.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"burstline/internal/services"
	"burstline/internal/services/tool"
)

// MaxPhotos caps how many photos are handed to the analyzer per session.
const MaxPhotos = 5

// Analyzer inspects a set of image files.
type Analyzer interface {
	Analyze(ctx context.Context, paths []string) (json.RawMessage, error)
}

// Tool runs the analyzer binary with the image paths as arguments.
type Tool struct {
	runner *tool.Runner
}

// NewTool wraps runner.
func NewTool(runner *tool.Runner) *Tool {
	return &Tool{runner: runner}
}

// Analyze returns the analyzer's JSON object.
func (t *Tool) Analyze(ctx context.Context, paths []string) (json.RawMessage, error) {
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrValidation, "analysis", "analyze", "no photos to analyze", nil)
	}
	output, err := t.runner.Run(ctx, paths...)
	if err != nil {
		return nil, err
	}
	return Parse(output)
}

// Parse accepts a single JSON object and returns it compacted.
func Parse(output []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(output)
	var object map[string]any
	if err := json.Unmarshal(trimmed, &object); err != nil || object == nil {
		if err == nil {
			err = errors.New("null result")
		}
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "parse", "analyzer output is not a JSON object", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "parse", "compact analyzer output", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
