package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds a single version probe.
const versionTimeout = 5 * time.Second

// Requirement defines an external tool burstline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to read its version.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Blocking reports whether a missing dependency prevents processing.
func (s Status) Blocking() bool {
	return !s.Available && !s.Optional
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		if len(req.VersionArgs) > 0 {
			status.Version = probeVersion(ctx, path, req.VersionArgs)
		}
		results = append(results, status)
	}
	return results
}

// Blocking returns the required dependencies that are unavailable.
func Blocking(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if status.Blocking() {
			missing = append(missing, status)
		}
	}
	return missing
}

// probeVersion returns the first output line of the version command, or ""
// when the probe fails.
func probeVersion(ctx context.Context, path string, args []string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(probeCtx, path, args...).Output()
	if err != nil {
		return ""
	}
	line, _, _ := bytes.Cut(bytes.TrimSpace(output), []byte("\n"))
	return strings.TrimSpace(string(line))
}
