package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"burstline/internal/config"
	"burstline/internal/logging"
	"burstline/internal/notifications"
	"burstline/internal/queue"
	"burstline/internal/stage"
)

// minPollInterval keeps idle workers from spinning when the configured poll
// interval is zero.
const minPollInterval = 100 * time.Millisecond

// Manager coordinates lane workers over the job queue.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	logger        *slog.Logger
	notifier      notifications.Service
	pollInterval  time.Duration
	retryInterval time.Duration

	heartbeat *heartbeats
	handlers  map[queue.Kind]stage.Handler

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers map[string]int
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a workflow manager publishing through the configured
// notification service.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll < minPollInterval {
		poll = minPollInterval
	}
	retry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry < minPollInterval {
		retry = minPollInterval
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger,
		notifier:      notifier,
		pollInterval:  poll,
		retryInterval: retry,
		heartbeat: newHeartbeats(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		handlers: make(map[queue.Kind]stage.Handler),
		workers:  make(map[string]int),
	}
}

// ConfigureStages registers the handlers the workers dispatch to. Handlers
// for kinds already registered are replaced.
func (m *Manager) ConfigureStages(handlers map[queue.Kind]stage.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, handler := range handlers {
		if handler == nil {
			continue
		}
		m.handlers[kind] = handler
	}
}

func (m *Manager) handlerFor(kind queue.Kind) (stage.Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handler, ok := m.handlers[kind]
	return handler, ok
}

// laneKinds lists the registered kinds that run in lane.
func (m *Manager) laneKinds(lane string) []queue.Kind {
	kinds := make([]queue.Kind, 0, len(queue.AllKinds))
	for _, kind := range queue.AllKinds {
		if _, ok := m.handlers[kind]; ok && kind.Lane() == lane {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
