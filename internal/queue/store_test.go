package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"burstline/internal/config"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T, clock *fakeClock) *queue.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	_, store := testsupport.MustOpenQueue(t, cfg, queue.WithClock(clock.Now))
	return store
}

func TestEnqueueAssignsLaneAndRequestID(t *testing.T) {
	store := newStore(t, newFakeClock())
	ctx := services.WithRequestID(context.Background(), "req-42")

	job, err := store.Enqueue(ctx, queue.FaceTask{PhotoID: 7})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Lane != config.LaneFaceDetection || job.Kind != queue.KindFaces {
		t.Fatalf("unexpected routing %+v", job)
	}
	if job.Status != queue.StatusQueued || job.Attempts != 0 || job.MaxAttempts != 3 {
		t.Fatalf("unexpected initial state %+v", job)
	}
	if job.RequestID != "req-42" {
		t.Fatalf("expected context request id, got %q", job.RequestID)
	}

	other, err := store.Enqueue(context.Background(), queue.ExifTask{PhotoID: 7})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if other.RequestID == "" || other.RequestID == "req-42" {
		t.Fatalf("expected generated request id, got %q", other.RequestID)
	}
}

func TestEnqueueRejectsTaskWithoutTarget(t *testing.T) {
	store := newStore(t, newFakeClock())
	_, err := store.Enqueue(context.Background(), queue.AttachTask{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnqueueDeduplicatesQueuedJobs(t *testing.T) {
	store := newStore(t, newFakeClock())
	ctx := context.Background()

	first, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: 1})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: 1})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected duplicate to collapse, got %d and %d", first.ID, second.ID)
	}
	if _, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: 2}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	jobs, err := store.List(ctx, queue.Filter{Kind: queue.KindExif})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 exif jobs, got %d", len(jobs))
	}
}

func TestEnqueueMergesVariantLists(t *testing.T) {
	store := newStore(t, newFakeClock())
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.VariantsTask{PhotoID: 3, Variants: []string{"thumb"}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.Enqueue(ctx, queue.VariantsTask{PhotoID: 3, Variants: []string{"large", "thumb"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	var task queue.VariantsTask
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !slices.Equal(task.Variants, []string{"thumb", "large"}) {
		t.Fatalf("unexpected merged variants %v", task.Variants)
	}

	job, err = store.Enqueue(ctx, queue.VariantsTask{PhotoID: 3})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	reloaded, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	decoded, err := reloaded.Task()
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if got := decoded.(queue.VariantsTask).Variants; len(got) != 0 {
		t.Fatalf("expected empty list to mean all defaults, got %v", got)
	}
}

func TestNextForLaneHonorsOrderAndRunAt(t *testing.T) {
	clock := newFakeClock()
	store := newStore(t, clock)
	ctx := context.Background()

	delayed, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: 1}, queue.WithDelay(time.Minute))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clock.Advance(time.Second)
	ready, err := store.Enqueue(ctx, queue.PortraitTask{PhotoID: 2})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.Enqueue(ctx, queue.AttachTask{PhotoID: 3}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := store.NextForLane(ctx, config.LaneDefault)
	if err != nil {
		t.Fatalf("NextForLane: %v", err)
	}
	if job == nil || job.ID != ready.ID {
		t.Fatalf("expected ready job %d, got %+v", ready.ID, job)
	}
	if job.Status != queue.StatusRunning || job.Attempts != 1 || job.LastHeartbeat == nil {
		t.Fatalf("unexpected claimed state %+v", job)
	}

	if job, err = store.NextForLane(ctx, config.LaneDefault); err != nil || job != nil {
		t.Fatalf("expected nothing due, got %+v, %v", job, err)
	}

	clock.Advance(time.Minute)
	job, err = store.NextForLane(ctx, config.LaneDefault)
	if err != nil {
		t.Fatalf("NextForLane: %v", err)
	}
	if job == nil || job.ID != delayed.ID {
		t.Fatalf("expected delayed job once due, got %+v", job)
	}
}

func TestClaimIgnoresRunAtButNotStatus(t *testing.T) {
	store := newStore(t, newFakeClock())
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: 3}, queue.WithDelay(time.Hour))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if next, err := store.NextForLane(ctx, job.Lane); err != nil || next != nil {
		t.Fatalf("delayed job should not be due: %+v, %v", next, err)
	}

	claimed, err := store.Claim(ctx, job.ID)
	if err != nil || claimed == nil {
		t.Fatalf("Claim: %+v, %v", claimed, err)
	}
	if claimed.Status != queue.StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed state %+v", claimed)
	}
	again, err := store.Claim(ctx, job.ID)
	if err != nil || again != nil {
		t.Fatalf("expected running job to be unclaimable, got %+v, %v", again, err)
	}
}

func TestFailRequeuesWithBackoffUntilExhausted(t *testing.T) {
	clock := newFakeClock()
	store := newStore(t, clock)
	ctx := context.Background()

	enqueued, err := store.Enqueue(ctx, queue.FaceTask{PhotoID: 9})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	cause := errors.New("detector crashed")
	wantDelays := []time.Duration{time.Second, 2 * time.Second}

	for attempt := 1; attempt <= 3; attempt++ {
		job, err := store.NextForLane(ctx, config.LaneFaceDetection)
		if err != nil || job == nil {
			t.Fatalf("attempt %d: claim failed: %+v, %v", attempt, job, err)
		}
		outcome, err := store.Fail(ctx, job.ID, cause, true)
		if err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if outcome.Attempts != attempt {
			t.Fatalf("expected attempt %d, got %d", attempt, outcome.Attempts)
		}
		if attempt < 3 {
			if outcome.Exhausted() {
				t.Fatalf("attempt %d exhausted early", attempt)
			}
			if got := outcome.RetryAt.Sub(clock.Now()); got != wantDelays[attempt-1] {
				t.Fatalf("attempt %d: expected delay %v, got %v", attempt, wantDelays[attempt-1], got)
			}
			if next, _ := store.NextForLane(ctx, config.LaneFaceDetection); next != nil {
				t.Fatalf("job claimable before backoff elapsed")
			}
			clock.Advance(wantDelays[attempt-1])
			continue
		}
		if !outcome.Exhausted() {
			t.Fatalf("expected exhaustion after %d attempts, got %+v", attempt, outcome)
		}
	}

	job, err := store.Get(ctx, enqueued.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != queue.StatusFailed || job.LastError != "detector crashed" {
		t.Fatalf("unexpected final state %+v", job)
	}
}

func TestFailNonRetryableIsTerminal(t *testing.T) {
	store := newStore(t, newFakeClock())
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.AttachTask{PhotoID: 4}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.NextForLane(ctx, config.LaneAttachments)
	if err != nil || job == nil {
		t.Fatalf("claim: %+v, %v", job, err)
	}
	outcome, err := store.Fail(ctx, job.ID, errors.New("bad input"), false)
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !outcome.Exhausted() || outcome.Attempts != 1 {
		t.Fatalf("expected terminal failure on first attempt, got %+v", outcome)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	store := newStore(t, newFakeClock())
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: 5}, queue.WithAttempts(1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, _ := store.NextForLane(ctx, config.LaneDefault)
	if job == nil {
		t.Fatal("expected claim")
	}
	if _, err := store.Fail(ctx, job.ID, errors.New("boom"), true); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	n, err := store.RetryFailed(ctx, job.ID)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed = %d, %v", n, err)
	}
	reloaded, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Status != queue.StatusQueued || reloaded.Attempts != 0 || reloaded.LastError != "" {
		t.Fatalf("unexpected retried state %+v", reloaded)
	}
}

func TestResetRunningAndReclaimStale(t *testing.T) {
	clock := newFakeClock()
	store := newStore(t, clock)
	ctx := context.Background()

	for id := int64(1); id <= 2; id++ {
		if _, err := store.Enqueue(ctx, queue.ExifTask{PhotoID: id}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	stale, _ := store.NextForLane(ctx, config.LaneDefault)
	clock.Advance(time.Minute)
	fresh, _ := store.NextForLane(ctx, config.LaneDefault)
	if stale == nil || fresh == nil {
		t.Fatal("expected two claims")
	}

	n, err := store.ReclaimStale(ctx, clock.Now().Add(-30*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("ReclaimStale = %d, %v", n, err)
	}
	if job, _ := store.Get(ctx, stale.ID); job.Status != queue.StatusQueued {
		t.Fatalf("expected stale job requeued, got %s", job.Status)
	}
	if err := store.Heartbeat(ctx, fresh.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	n, err = store.ResetRunning(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetRunning = %d, %v", n, err)
	}
	if job, _ := store.Get(ctx, fresh.ID); job.Status != queue.StatusQueued || job.Attempts != 1 {
		t.Fatalf("unexpected reset state %+v", job)
	}
}

func TestStatsAndPurge(t *testing.T) {
	clock := newFakeClock()
	store := newStore(t, clock)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.AttachTask{PhotoID: 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.Enqueue(ctx, queue.FaceTask{PhotoID: 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, _ := store.NextForLane(ctx, config.LaneAttachments)
	if job == nil {
		t.Fatal("expected claim")
	}
	if err := store.Complete(ctx, job.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[config.LaneAttachments][queue.StatusSucceeded] != 1 || stats[config.LaneFaceDetection][queue.StatusQueued] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	clock.Advance(time.Hour)
	n, err := store.Purge(ctx, clock.Now())
	if err != nil || n != 1 {
		t.Fatalf("Purge = %d, %v", n, err)
	}
	if _, err := store.Get(ctx, job.ID); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected purged job gone, got %v", err)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	b := queue.Backoff{Initial: time.Second, Max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := b.Delay(i + 1); got != expected {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, expected)
		}
	}
}
