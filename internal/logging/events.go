package logging

import (
	"log/slog"
	"slices"
)

const (
	defaultHint   = "check logs for details"
	defaultImpact = "operation completed with warnings"
)

// NewNop returns a logger that drops everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component name. A nil logger yields a
// no-op logger carrying the tag.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Values supplied in attrs take precedence over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultHint),
		String(FieldImpact, defaultImpact),
	)
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error that always carries event_type and
// error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, defaultHint),
	)
	logger.Error(msg, Args(attrs...)...)
}

func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, def := range defaults {
		present := slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == def.Key })
		if !present {
			attrs = append(attrs, def)
		}
	}
	return attrs
}
