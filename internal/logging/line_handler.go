package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\x1b[90m",
	slog.LevelInfo:  "\x1b[36m",
	slog.LevelWarn:  "\x1b[33m",
	slog.LevelError: "\x1b[31m",
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

// lineHandler writes "TIME LEVEL component: message key=value" lines.
// Attributes added through WithAttrs are rendered once and reused.
type lineHandler struct {
	out       *lockedWriter
	level     slog.Leveler
	source    bool
	color     bool
	component string
	prefix    string
	preset    []byte
}

func newLineHandler(w io.Writer, level slog.Leveler, source, color bool) *lineHandler {
	return &lineHandler{out: &lockedWriter{w: w}, level: level, source: source, color: color}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	component := h.component
	var pairs []byte
	record.Attrs(func(attr slog.Attr) bool {
		pairs = appendAttr(pairs, h.prefix, attr, &component)
		return true
	})

	buf := make([]byte, 0, 96+len(h.preset)+len(pairs))
	buf = ts.UTC().AppendFormat(buf, time.RFC3339)
	buf = append(buf, ' ')
	buf = h.appendLevel(buf, record.Level)
	buf = append(buf, ' ')
	if component != "" {
		buf = append(buf, component...)
		buf = append(buf, ": "...)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf = append(buf, msg...)
	if h.source && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		buf = append(buf, " ["...)
		buf = append(buf, filepath.Base(frame.File)...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(frame.Line), 10)
		buf = append(buf, ']')
	}
	buf = append(buf, h.preset...)
	buf = append(buf, pairs...)
	buf = append(buf, '\n')
	return h.out.write(buf)
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = append([]byte(nil), h.preset...)
	for _, attr := range attrs {
		next.preset = appendAttr(next.preset, h.prefix, attr, &next.component)
	}
	return &next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *lineHandler) appendLevel(dst []byte, level slog.Level) []byte {
	bucket := slog.LevelDebug
	switch {
	case level >= slog.LevelError:
		bucket = slog.LevelError
	case level >= slog.LevelWarn:
		bucket = slog.LevelWarn
	case level >= slog.LevelInfo:
		bucket = slog.LevelInfo
	}
	if !h.color {
		return append(dst, bucket.String()...)
	}
	dst = append(dst, levelColors[bucket]...)
	dst = append(dst, bucket.String()...)
	return append(dst, "\x1b[0m"...)
}

// appendAttr renders attr as " key=value", flattening groups into dotted
// keys. The first component attribute seen is captured instead of rendered.
func appendAttr(dst []byte, prefix string, attr slog.Attr, component *string) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			dst = appendAttr(dst, prefix, member, component)
		}
		return dst
	}
	key := prefix + attr.Key
	if key == "" {
		return dst
	}
	if key == FieldComponent {
		if *component == "" {
			*component = attr.Value.String()
		}
		return dst
	}
	dst = append(dst, ' ')
	dst = append(dst, key...)
	dst = append(dst, '=')
	return appendValue(dst, attr.Value)
}

func appendValue(dst []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendText(dst, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(dst, v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(dst, time.RFC3339)
	}
	if err, ok := v.Any().(error); ok {
		return appendText(dst, err.Error())
	}
	return appendText(dst, v.String())
}

func appendText(dst []byte, s string) []byte {
	plain := s != "" && !strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
	if plain {
		return append(dst, s...)
	}
	return strconv.AppendQuote(dst, s)
}
