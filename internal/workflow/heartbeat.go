package workflow

import (
	"context"
	"log/slog"
	"time"

	"burstline/internal/logging"
	"burstline/internal/queue"
)

// heartbeats keeps claimed jobs fresh in the store and requeues jobs whose
// worker stopped touching them.
type heartbeats struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func newHeartbeats(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeats {
	return &heartbeats{
		store:    store,
		logger:   logger.With(logging.String("subsystem", "heartbeat")),
		interval: interval,
		timeout:  timeout,
	}
}

// reclaim requeues running jobs silent for longer than the timeout. A zero
// timeout disables reclamation.
func (h *heartbeats) reclaim(ctx context.Context) error {
	if h.timeout <= 0 {
		return nil
	}
	n, err := h.store.ReclaimStale(ctx, time.Now().Add(-h.timeout))
	if err != nil || n == 0 {
		return err
	}
	logging.WarnWithContext(h.logger, "reclaimed stale jobs", "heartbeat_reclaim",
		logging.Int64("count", n),
		logging.String(logging.FieldImpact, "jobs whose worker stopped responding will run again"),
	)
	return nil
}

// keepAlive touches jobID every interval until ctx ends. Failed updates are
// logged; the job keeps running and the reclaimer decides its fate.
func (h *heartbeats) keepAlive(ctx context.Context, jobID int64) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := h.store.Heartbeat(ctx, jobID); err != nil && ctx.Err() == nil {
			logging.WithContext(ctx, h.logger).Warn("heartbeat update failed", logging.Error(err))
		}
	}
}
