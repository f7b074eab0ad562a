// Package stageexec runs one claimed job through its stage handler and
// applies the queue transition: success, retry with backoff or terminal
// failure with an alert. The workflow manager uses it for every job and the
// CLI uses it for synchronous processing.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"burstline/internal/logging"
	"burstline/internal/notifications"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/stage"
)

// Store is the queue surface the runner persists transitions through.
type Store interface {
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, cause error, retryable bool) (queue.Outcome, error)
}

// Options controls a single job execution.
type Options struct {
	Logger   *slog.Logger
	Store    Store
	Notifier notifications.Service
	Handler  stage.Handler
	Job      *queue.Job
}

// Result describes how the job ended.
type Result struct {
	Status   queue.Status
	Outcome  queue.Outcome
	Err      error
	Duration time.Duration
}

// JobContext annotates ctx with the job's identifiers for logging.
func JobContext(ctx context.Context, job *queue.Job) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithStage(ctx, string(job.Kind))
	ctx = services.WithLane(ctx, job.Lane)
	if job.PhotoID > 0 {
		ctx = services.WithPhotoID(ctx, job.PhotoID)
	}
	if job.SessionID > 0 {
		ctx = services.WithSessionID(ctx, job.SessionID)
	}
	if job.RequestID != "" {
		ctx = services.WithRequestID(ctx, job.RequestID)
	}
	return ctx
}

// Run executes the job. A cancelled ctx leaves the job running in the store
// so the next daemon start requeues it; the returned error is ctx.Err().
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Handler == nil {
		return Result{}, fmt.Errorf("stage handler unavailable for job kind %q", opts.Job.Kind)
	}
	if opts.Store == nil {
		return Result{}, errors.New("queue store is required")
	}
	if opts.Job == nil {
		return Result{}, errors.New("job is required")
	}

	job := opts.Job
	stageCtx := JobContext(ctx, job)
	stageLogger := logging.WithContext(stageCtx, opts.Logger).With(
		logging.String(logging.FieldJobKind, string(job.Kind)),
		logging.Int(logging.FieldAttempt, job.Attempts),
	)
	stageLogger.Debug("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("policy", opts.Handler.Policy().String()),
	)

	started := time.Now()
	execErr := opts.Handler.Execute(stageCtx, job)
	duration := time.Since(started)

	if execErr != nil && ctx.Err() != nil {
		stageLogger.Info("stage interrupted",
			logging.String(logging.FieldEventType, "stage_interrupted"),
			logging.Duration("duration", duration),
		)
		return Result{Status: queue.StatusRunning, Err: execErr, Duration: duration}, ctx.Err()
	}

	if execErr != nil && opts.Handler.Policy() == stage.BestEffort {
		logging.WarnWithContext(stageLogger, "best-effort stage failed", "stage_soft_failure",
			append(errorAttrs(execErr), logging.String(logging.FieldImpact, "enrichment skipped for this job"))...)
		execErr = nil
	}

	if execErr == nil {
		if err := opts.Store.Complete(stageCtx, job.ID); err != nil {
			return Result{}, fmt.Errorf("persist job completion: %w", err)
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("duration", duration),
		)
		return Result{Status: queue.StatusSucceeded, Duration: duration}, nil
	}

	return handleFailure(stageCtx, stageLogger, opts, execErr, duration)
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error, duration time.Duration) (Result, error) {
	job := opts.Job
	retryable := services.Retryable(stageErr)
	outcome, err := opts.Store.Fail(ctx, job.ID, stageErr, retryable)
	if err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
		return Result{}, fmt.Errorf("persist job failure: %w", err)
	}
	result := Result{Status: outcome.Status, Outcome: outcome, Err: stageErr, Duration: duration}

	attrs := append(errorAttrs(stageErr),
		logging.Int("attempts", outcome.Attempts),
		logging.Int("max_attempts", outcome.MaxAttempts),
		logging.Bool("retryable", retryable),
	)
	if !outcome.Exhausted() {
		logging.WarnWithContext(logger, "stage failed, retry scheduled", "stage_retry",
			append(attrs,
				logging.String("retry_at", outcome.RetryAt.UTC().Format(time.RFC3339)),
				logging.String(logging.FieldImpact, "job will run again after backoff"),
			)...)
		return result, nil
	}

	logging.ErrorWithContext(logger, "stage failed permanently", "stage_failure",
		append(attrs, logging.Alert("job_failed"))...)

	if opts.Notifier != nil {
		if err := opts.Notifier.Publish(ctx, notifications.EventJobFailed, notifications.Payload{
			"kind":     string(job.Kind),
			"job_id":   job.ID,
			"target":   targetLabel(job),
			"attempts": outcome.Attempts,
			"error":    failureMessage(stageErr),
		}); err != nil {
			logger.Debug("job failure notification failed", logging.Error(err))
		}
	}
	return result, nil
}

func errorAttrs(err error) []logging.Attr {
	details := services.Details(err)
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldErrorKind, details.Kind),
	}
	if details.Operation != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorOperation, details.Operation))
	}
	if details.Hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, details.Hint))
	}
	return attrs
}

func failureMessage(err error) string {
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	return message
}

func targetLabel(job *queue.Job) string {
	if job.SessionID > 0 {
		return fmt.Sprintf("session %d", job.SessionID)
	}
	return fmt.Sprintf("photo %d", job.PhotoID)
}
