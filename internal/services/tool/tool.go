// Package tool runs the external metadata extractors (exiftool, the face
// detector, the session analyzer) under a timeout and classifies their
// failures with the services error markers.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"burstline/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) (stdout []byte, stderr []byte, err error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner invokes one binary.
type Runner struct {
	name    string
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs a runner. name labels errors ("exif", "faces").
func New(name, binary string, timeoutSeconds int, opts ...Option) (*Runner, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, name, "configure", "binary not configured", nil)
	}
	r := &Runner{
		name:    name,
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Binary returns the configured executable.
func (r *Runner) Binary() string { return r.binary }

// Run executes the binary and returns its stdout.
func (r *Runner) Run(ctx context.Context, args ...string) ([]byte, error) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stdout, stderr, err := r.exec.Output(runCtx, r.binary, args)
	if err == nil {
		return stdout, nil
	}
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, services.Wrap(services.ErrTimeout, r.name, "run",
			fmt.Sprintf("%s exceeded %s", r.binary, r.timeout), err)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, exec.ErrNotFound):
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, r.name, "run", fmt.Sprintf("%s not found", r.binary), err),
			"install the tool or point the [tools] setting at it",
		)
	}
	message := fmt.Sprintf("%s failed", r.binary)
	if tail := lastLine(stderr); tail != "" {
		message += ": " + tail
	}
	return nil, services.Wrap(services.ErrExternalTool, r.name, "run", message, err)
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) > 300 {
		last = last[:300]
	}
	return last
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
