package workflow

import (
	"context"
	"maps"

	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     map[string]int
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[string]map[queue.Status]int
	StageHealth map[queue.Kind]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	workers := maps.Clone(m.workers)
	lastErr := m.lastErr
	lastJob := m.lastJob
	handlers := maps.Clone(m.handlers)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[queue.Kind]stage.Health, len(handlers))
	for kind, handler := range handlers {
		health[kind] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, Workers: workers, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
