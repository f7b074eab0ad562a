package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"burstline/internal/config"
)

const userAgent = "burstline/0.1.0"

// Event identifies what happened.
type Event string

const (
	EventJobFailed     Event = "job_failed"
	EventSessionMerged Event = "session_merged"
	EventSessionSplit  Event = "session_split"
	EventDaemonStarted Event = "daemon_started"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		jobFailures: cfg.Notifications.JobFailures,
		mutations:   cfg.Notifications.Mutations,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	jobFailures bool
	mutations   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventJobFailed:
		return n.jobFailures
	case EventSessionMerged, EventSessionSplit:
		return n.mutations
	}
	return true
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobFailed:
		return message{
			title: "burstline - Job Failed",
			body: fmt.Sprintf("%s job #%v for %s gave up after %v attempts: %s",
				payload.text("kind"), payload["job_id"], payload.text("target"), payload["attempts"], payload.text("error")),
			tags:     []string{"burstline", "job", "failed"},
			priority: "high",
		}, true
	case EventSessionMerged:
		return message{
			title: "burstline - Sessions Merged",
			body: fmt.Sprintf("Merged %s into %s (%v photos moved)",
				payload.text("source"), payload.text("target"), payload["moved"]),
			tags: []string{"burstline", "session", "merged"},
		}, true
	case EventSessionSplit:
		return message{
			title: "burstline - Session Split",
			body: fmt.Sprintf("Split %s: %v photos moved to %s",
				payload.text("source"), payload["moved"], payload.text("created")),
			tags: []string{"burstline", "session", "split"},
		}, true
	case EventDaemonStarted:
		return message{
			title:    "burstline - Daemon Started",
			body:     fmt.Sprintf("Processing %v lanes, %v jobs requeued", payload["lanes"], payload["requeued"]),
			tags:     []string{"burstline", "daemon"},
			priority: "low",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			builder.WriteString(strings.TrimSpace(err.Error()))
		} else if text := payload.text("error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "burstline - Error",
			body:     builder.String(),
			tags:     []string{"burstline", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "burstline - Test",
			body:     "Notification system test",
			tags:     []string{"burstline", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
