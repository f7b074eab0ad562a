package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	// ErrIntegrity marks a consistency check that failed after a mutation; the
	// surrounding transaction has been rolled back.
	ErrIntegrity = errors.New("integrity violation")
)

// ServiceError carries the structured pieces of a wrapped failure. It is
// produced by Wrap and read back through Details.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator-facing hint to a wrapped error. Errors that did
// not come from Wrap are returned unchanged.
func WithHint(err error, hint string) error {
	var svc *ServiceError
	if !errors.As(err, &svc) {
		return err
	}
	clone := *svc
	clone.Hint = strings.TrimSpace(hint)
	return &clone
}

// Retryable reports whether the job runner should schedule another attempt.
// Validation, configuration, not-found and integrity failures are terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrIntegrity):
		return false
	default:
		return true
	}
}

// ErrorDetails is a flattened view of a failure suitable for structured logs.
type ErrorDetails struct {
	Kind      string
	Operation string
	Message   string
	Hint      string
	Cause     string
}

// Details extracts loggable fields from err. Unstructured errors are reported
// with kind "unknown" and their full text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svc *ServiceError
	if !errors.As(err, &svc) {
		return ErrorDetails{Kind: "unknown", Message: err.Error()}
	}
	details := ErrorDetails{
		Kind:      kindOf(svc.Marker),
		Operation: strings.Trim(strings.Join([]string{svc.Stage, svc.Operation}, "."), "."),
		Message:   svc.Message,
		Hint:      svc.Hint,
	}
	if svc.Cause != nil {
		details.Cause = svc.Cause.Error()
	}
	if details.Hint == "" {
		details.Hint = defaultHint(svc.Marker)
	}
	return details
}

func kindOf(marker error) string {
	switch {
	case errors.Is(marker, ErrExternalTool):
		return "external_tool"
	case errors.Is(marker, ErrValidation):
		return "validation"
	case errors.Is(marker, ErrConfiguration):
		return "configuration"
	case errors.Is(marker, ErrNotFound):
		return "not_found"
	case errors.Is(marker, ErrTimeout):
		return "timeout"
	case errors.Is(marker, ErrIntegrity):
		return "integrity"
	case errors.Is(marker, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func defaultHint(marker error) string {
	switch {
	case errors.Is(marker, ErrExternalTool):
		return "run `burstline deps check` and inspect the tool output"
	case errors.Is(marker, ErrConfiguration):
		return "review config.toml"
	case errors.Is(marker, ErrNotFound):
		return "verify the referenced record still exists"
	case errors.Is(marker, ErrIntegrity):
		return "run `burstline session check` on the affected sessions"
	case errors.Is(marker, ErrTimeout):
		return "raise tools.timeout_seconds or check system load"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
