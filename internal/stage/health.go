package stage

import "strings"

// Health is a handler's readiness report.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Disabled reports a stage that is ready only because it never receives
// work, such as an optional tool left unconfigured.
func Disabled(name, reason string) Health {
	return Health{Name: name, Ready: true, Detail: "disabled: " + strings.TrimSpace(reason)}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: strings.TrimSpace(detail)}
}

// State is the one-word form used in tables.
func (h Health) State() string {
	switch {
	case !h.Ready:
		return "not ready"
	case strings.HasPrefix(h.Detail, "disabled: "):
		return "disabled"
	default:
		return "ready"
	}
}
