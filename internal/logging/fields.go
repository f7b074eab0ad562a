package logging

import (
	"log/slog"
	"time"
)

// Structured field names shared by every component.
const (
	FieldComponent      = "component"
	FieldPhotoID        = "photo_id"
	FieldSessionID      = "session_id"
	FieldJobID          = "job_id"
	FieldJobKind        = "job_kind"
	FieldAttempt        = "attempt"
	FieldStage          = "stage"
	FieldLane           = "lane"
	FieldCorrelationID  = "correlation_id"
	FieldEventType      = "event_type"
	FieldErrorHint      = "error_hint"
	FieldErrorKind      = "error_kind"
	FieldErrorOperation = "error_operation"
	// FieldImpact says what the user loses when a warning fires.
	FieldImpact = "impact"
	FieldAlert  = "alert"
)

// Attr aliases slog.Attr so call sites only import this package.
type Attr = slog.Attr

func String(key, value string) Attr { return slog.String(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Strings(key string, values []string) Attr { return slog.Any(key, values) }

// Alert tags a line that operators should notice when scanning logs.
func Alert(value string) Attr { return slog.String(FieldAlert, value) }

// Error renders err under the "error" key. A nil error adds nothing.
func Error(err error) Attr {
	if err == nil {
		return Attr{}
	}
	return slog.Any("error", err)
}

// Args adapts attrs to the ...any parameter of the slog methods.
func Args(attrs ...Attr) []any {
	out := make([]any, len(attrs))
	for i := range attrs {
		out[i] = attrs[i]
	}
	return out
}
