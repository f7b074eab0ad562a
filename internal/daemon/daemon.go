package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"burstline/internal/config"
	"burstline/internal/logging"
	"burstline/internal/notifications"
	"burstline/internal/queue"
	"burstline/internal/workflow"
)

// LockFileName is created in the log directory while a daemon runs.
const LockFileName = "burstline.lock"

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. A nil notifier
// falls back to the configured ntfy service.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, requeues interrupted jobs and launches the
// workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another burstline daemon instance is already running")
	}

	requeued, err := d.store.ResetRunning(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("requeue interrupted jobs: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.running.Store(true)

	lanes := queue.Lanes()
	d.logger.Info("burstline daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Int64("requeued", requeued),
	)
	if err := d.notifier.Publish(ctx, notifications.EventDaemonStarted, notifications.Payload{
		"lanes":    len(lanes),
		"requeued": requeued,
	}); err != nil {
		d.logger.Warn("daemon start notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check ntfy topic and network connectivity"),
		)
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the daemon refuses to start"),
		)
	}
	d.running.Store(false)
	d.logger.Info("burstline daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon. The database belongs to the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// LockPath returns the path to the daemon lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		LockFilePath: d.lockPath,
	}
}
