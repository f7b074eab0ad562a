package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"burstline/internal/config"
)

// Options controls logger construction.
type Options struct {
	Level  string
	Format string
	// Outputs lists destinations. "stdout" and "stderr" name the standard
	// streams; anything else is a file opened for append. Empty means stdout.
	Outputs     []string
	Development bool
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds a logger for opts. Unknown levels fall back to info; unknown
// formats are an error.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(opts.Level))]; ok {
		level.Set(lvl)
	}
	source := opts.Development || level.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "" && format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	w, err := openOutputs(outputs)
	if err != nil {
		return nil, err
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			AddSource:   source,
			ReplaceAttr: jsonReplace,
		})), nil
	}
	return slog.New(newLineHandler(w, level, source, terminalOnly(outputs))), nil
}

// NewFromConfig logs to stdout and to burstline.log under the configured log
// directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info"})
	}
	outputs := []string{"stdout"}
	if dir := cfg.Paths.LogDir; dir != "" {
		outputs = append(outputs, filepath.Join(dir, "burstline.log"))
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Outputs: outputs})
}

func openOutputs(outputs []string) (io.Writer, error) {
	seen := make(map[string]bool, len(outputs))
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" || seen[out] {
			continue
		}
		seen[out] = true
		switch out {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", out, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

// terminalOnly reports whether colour is safe: a single standard stream that
// is attached to a terminal and NO_COLOR unset.
func terminalOnly(outputs []string) bool {
	if len(outputs) != 1 {
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	var fd uintptr
	switch strings.TrimSpace(outputs[0]) {
	case "stdout":
		fd = os.Stdout.Fd()
	case "stderr":
		fd = os.Stderr.Fd()
	default:
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func jsonReplace(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
		}
		attr.Key = "ts"
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
