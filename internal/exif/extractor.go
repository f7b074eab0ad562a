package exif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"burstline/internal/services/tool"
)

// ErrNoData reports extractor output that was empty or unparseable. Callers
// treat it as a soft failure.
var ErrNoData = errors.New("no exif data")

// Extractor reads metadata from an image file.
type Extractor interface {
	Extract(ctx context.Context, path string) (Data, error)
}

// Tool extracts metadata by running exiftool in JSON mode.
type Tool struct {
	runner *tool.Runner
	rules  []Rule
}

// NewTool wraps runner. Numeric output (-n) keeps orientation and exposure
// values machine readable.
func NewTool(runner *tool.Runner) *Tool {
	return &Tool{runner: runner, rules: DefaultRules}
}

// Extract runs exiftool against path.
func (t *Tool) Extract(ctx context.Context, path string) (Data, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("exif extract: empty path")
	}
	output, err := t.runner.Run(ctx, "-json", "-n", "--", path)
	if err != nil {
		return nil, err
	}
	return Parse(output, t.rules)
}

// Parse decodes exiftool -json output into categorized data.
func Parse(output []byte, rules []Rule) (Data, error) {
	var records []map[string]any
	if err := json.Unmarshal(output, &records); err != nil {
		return nil, fmt.Errorf("%w: parse exiftool output: %v", ErrNoData, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: exiftool returned no records", ErrNoData)
	}
	fields := records[0]
	for _, key := range []string{"SourceFile", "ExifToolVersion", "Directory", "FileName", "FilePermissions"} {
		delete(fields, key)
	}
	data := Categorize(fields, rules)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no usable fields", ErrNoData)
	}
	return data, nil
}
