package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/stageexec"
)

// Start launches the lane workers and the stale-job reclaimer.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	clear(m.workers)

	type worker struct {
		lane  string
		index int
	}
	var workers []worker
	for _, lane := range queue.Lanes() {
		if len(m.laneKinds(lane)) == 0 {
			continue
		}
		count := m.cfg.LaneWorkers(lane)
		m.workers[lane] = count
		for i := range count {
			workers = append(workers, worker{lane: lane, index: i + 1})
		}
	}
	m.wg.Add(len(workers) + 1)
	m.mu.Unlock()

	for _, w := range workers {
		go m.runWorker(runCtx, w.lane, w.index)
	}
	go m.runReclaimer(runCtx)

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", len(workers)),
	)
	return nil
}

// Stop cancels the workers and waits for them to return. Jobs interrupted
// mid-stage stay running and are requeued on the next start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runWorker(ctx context.Context, lane string, index int) {
	defer m.wg.Done()
	logger := m.logger.With(
		logging.String(logging.FieldLane, lane),
		logging.Int("worker", index),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextForLane(ctx, lane)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleNextJobError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processJob(ctx, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.waitForJobOrShutdown(ctx, m.retryInterval)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	m.setLastJob(job)
	handler, ok := m.handlerFor(job.Kind)
	if !ok {
		cause := services.Wrap(services.ErrConfiguration, "workflow", "dispatch",
			fmt.Sprintf("no handler registered for %s jobs", job.Kind), nil)
		logger.Error("job has no stage handler",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, string(job.Kind)),
			logging.String(logging.FieldEventType, "stage_missing"),
		)
		if _, err := m.store.Fail(ctx, job.ID, cause, false); err != nil {
			m.setLastError(err)
			return err
		}
		m.setLastError(cause)
		return nil
	}

	hbCtx, hbCancel := context.WithCancel(stageexec.JobContext(ctx, job))
	var hbWG sync.WaitGroup
	hbWG.Go(func() { m.heartbeat.keepAlive(hbCtx, job.ID) })

	result, err := stageexec.Run(ctx, stageexec.Options{
		Logger:   m.logger,
		Store:    m.store,
		Notifier: m.notifier,
		Handler:  handler,
		Job:      job,
	})
	hbCancel()
	hbWG.Wait()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("job execution failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_execution_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.setLastError(err)
		return err
	}
	if result.Err != nil {
		m.setLastError(result.Err)
	}
	return nil
}

func (m *Manager) handleNextJobError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.waitForJobOrShutdown(ctx, m.retryInterval)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// runReclaimer requeues stale running jobs every half heartbeat timeout.
func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.timeout / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.heartbeat.reclaim(ctx); err != nil && ctx.Err() == nil {
			m.setLastError(err)
			m.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
