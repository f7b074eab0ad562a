package stage

import (
	"context"

	"burstline/internal/queue"
)

// Policy tells the runner how a stage's failures are treated.
type Policy int

const (
	// Required stages return errors so the job is retried with backoff.
	Required Policy = iota
	// BestEffort stages absorb their own failures; the job always succeeds.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "required"
}

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Kind() queue.Kind
	Policy() Policy
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
