package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"burstline/internal/config"
	"burstline/internal/database"
	"burstline/internal/services"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// Store manages job persistence on the shared database.
type Store struct {
	db          *database.DB
	backoff     Backoff
	maxAttempts int
	now         func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithBackoff sets the retry backoff schedule.
func WithBackoff(b Backoff) Option {
	return func(s *Store) { s.backoff = b }
}

// WithMaxAttempts sets the default attempt budget for new jobs.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a job store on db.
func NewStore(db *database.DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		backoff:     Backoff{Initial: 15 * time.Second, Max: 10 * time.Minute},
		maxAttempts: 3,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreFromConfig applies the [retry] settings.
func NewStoreFromConfig(db *database.DB, cfg *config.Config, opts ...Option) *Store {
	base := []Option{
		WithMaxAttempts(cfg.Retry.MaxAttempts),
		WithBackoff(Backoff{
			Initial: time.Duration(cfg.Retry.InitialBackoffSeconds) * time.Second,
			Max:     time.Duration(cfg.Retry.MaxBackoffSeconds) * time.Second,
		}),
	}
	return NewStore(db, append(base, opts...)...)
}

func (s *Store) timestamp() string {
	return database.FormatTime(s.now())
}

// EnqueueOption customizes a single enqueue.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	delay       time.Duration
	requestID   string
	maxAttempts int
}

// WithDelay postpones the first attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = d }
}

// WithRequestID sets the correlation id stored with the job.
func WithRequestID(id string) EnqueueOption {
	return func(o *enqueueOptions) { o.requestID = strings.TrimSpace(id) }
}

// WithAttempts overrides the attempt budget for this job.
func WithAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxAttempts = n }
}

// Enqueue persists task for asynchronous execution. If a queued job with the
// same kind and target exists it is returned instead of inserting a new one.
// The correlation id comes from opts, then ctx, then a fresh UUID.
func (s *Store) Enqueue(ctx context.Context, task Task, opts ...EnqueueOption) (*Job, error) {
	if err := validateTask(task); err != nil {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", err.Error(), nil)
	}
	options := enqueueOptions{maxAttempts: s.maxAttempts}
	for _, opt := range opts {
		opt(&options)
	}
	if options.maxAttempts <= 0 {
		options.maxAttempts = s.maxAttempts
	}
	if options.requestID == "" {
		if rid, ok := services.RequestIDFromContext(ctx); ok {
			options.requestID = rid
		} else {
			options.requestID = uuid.NewString()
		}
	}

	kind := task.Kind()
	photoID, sessionID := task.Target()
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	var job *Job
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+jobColumns+` FROM jobs
			 WHERE kind = ? AND status = ? AND COALESCE(photo_id, 0) = ? AND COALESCE(session_id, 0) = ?
			 ORDER BY id LIMIT 1`,
			kind, StatusQueued, photoID, sessionID,
		)
		existing, err := scanJob(row)
		switch {
		case err == nil:
			job, err = s.absorbDuplicate(ctx, tx, existing, task)
			return err
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find queued duplicate: %w", err)
		}

		now := s.now()
		stamp := database.FormatTime(now)
		row = tx.QueryRowContext(ctx,
			`INSERT INTO jobs (kind, lane, photo_id, session_id, payload, status, attempts, max_attempts, run_at, request_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?) RETURNING `+jobColumns,
			kind,
			kind.Lane(),
			nullableID(photoID),
			nullableID(sessionID),
			string(payload),
			StatusQueued,
			options.maxAttempts,
			database.FormatTime(now.Add(options.delay)),
			options.requestID,
			stamp,
			stamp,
		)
		job, err = scanJob(row)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// absorbDuplicate folds a repeated enqueue into the queued job. Only variant
// lists carry state worth merging.
func (s *Store) absorbDuplicate(ctx context.Context, tx *database.Tx, existing *Job, task Task) (*Job, error) {
	incoming, ok := task.(VariantsTask)
	if !ok {
		return existing, nil
	}
	decoded, err := existing.Task()
	if err != nil {
		return nil, err
	}
	current := decoded.(VariantsTask)
	merged := VariantsTask{PhotoID: current.PhotoID, Variants: mergeVariants(current.Variants, incoming.Variants)}
	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged variants: %w", err)
	}
	if string(payload) == string(existing.Payload) {
		return existing, nil
	}
	if _, err := tx.ExecContext(ctx, "UPDATE jobs SET payload = ?, updated_at = ? WHERE id = ?", string(payload), s.timestamp(), existing.ID); err != nil {
		return nil, fmt.Errorf("merge variants payload: %w", err)
	}
	existing.Payload = payload
	return existing, nil
}

// NextForLane claims the oldest due job in lane, marking it running and
// counting the attempt. It returns nil when nothing is due.
func (s *Store) NextForLane(ctx context.Context, lane string) (*Job, error) {
	now := s.timestamp()
	var job *Job
	err := s.db.QueryRowRetry(ctx, func(row *sql.Row) error {
		claimed, err := scanJob(row)
		if err != nil {
			return err
		}
		job = claimed
		return nil
	},
		`UPDATE jobs SET status = ?, attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
		 WHERE id = (
		     SELECT id FROM jobs WHERE lane = ? AND status = ? AND run_at <= ? ORDER BY run_at, id LIMIT 1
		 ) AND status = ?
		 RETURNING `+jobColumns,
		StatusRunning, now, now,
		lane, StatusQueued, now,
		StatusQueued,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job in lane %s: %w", lane, err)
	}
	return job, nil
}

// Claim marks one specific queued job running regardless of its run_at, so
// the CLI can process a photo synchronously. It returns nil when the job is
// no longer queued.
func (s *Store) Claim(ctx context.Context, id int64) (*Job, error) {
	now := s.timestamp()
	var job *Job
	err := s.db.QueryRowRetry(ctx, func(row *sql.Row) error {
		claimed, err := scanJob(row)
		if err != nil {
			return err
		}
		job = claimed
		return nil
	},
		`UPDATE jobs SET status = ?, attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
		 WHERE id = ? AND status = ?
		 RETURNING `+jobColumns,
		StatusRunning, now, now, id, StatusQueued,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", id, err)
	}
	return job, nil
}

// Get returns the job with id.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}
	return job, nil
}

// Complete marks a job succeeded.
func (s *Store) Complete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, last_error = NULL, last_heartbeat = NULL, updated_at = ? WHERE id = ?",
		StatusSucceeded, s.timestamp(), id,
	); err != nil {
		return fmt.Errorf("complete job %d: %w", id, err)
	}
	return nil
}

// Fail records a failed attempt. Retryable failures with attempts left are
// requeued after the backoff delay; everything else becomes failed.
func (s *Store) Fail(ctx context.Context, id int64, cause error, retryable bool) (Outcome, error) {
	var outcome Outcome
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		job, err := scanJob(tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrJobNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load job %d: %w", id, err)
		}

		now := s.now()
		outcome = Outcome{Status: StatusFailed, Attempts: job.Attempts, MaxAttempts: job.MaxAttempts}
		runAt := job.RunAt
		if retryable && job.AttemptsLeft() {
			outcome.Status = StatusQueued
			outcome.RetryAt = now.Add(s.backoff.Delay(job.Attempts))
			runAt = outcome.RetryAt
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE jobs SET status = ?, run_at = ?, last_error = ?, last_heartbeat = NULL, updated_at = ? WHERE id = ?",
			outcome.Status, database.FormatTime(runAt), truncateError(cause), database.FormatTime(now), id,
		); err != nil {
			return fmt.Errorf("record failure for job %d: %w", id, err)
		}
		return nil
	})
	return outcome, err
}

// Heartbeat refreshes the liveness timestamp of a running job.
func (s *Store) Heartbeat(ctx context.Context, id int64) error {
	now := s.timestamp()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?",
		now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ResetRunning requeues every running job. Call it only while holding the
// daemon lock, before workers start.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, run_at = ?, last_heartbeat = NULL, updated_at = ? WHERE status = ?",
		StatusQueued, now, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale requeues running jobs whose heartbeat is older than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, run_at = ?, last_heartbeat = NULL, updated_at = ?
		 WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusQueued, now, now, StatusRunning, database.FormatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to queued with a fresh attempt budget.
// With no ids every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := s.timestamp()
	query := `UPDATE jobs SET status = ?, attempts = 0, run_at = ?, last_error = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusQueued, now, now, StatusFailed}
	if len(ids) > 0 {
		query += " AND id IN (" + makePlaceholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// Purge deletes succeeded jobs last updated before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE status = ? AND updated_at < ?",
		StatusSucceeded, database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

// List returns jobs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.Lane != "" {
		clauses = append(clauses, "lane = ?")
		args = append(args, filter.Lane)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.PhotoID > 0 {
		clauses = append(clauses, "photo_id = ?")
		args = append(args, filter.PhotoID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats counts jobs per lane and status.
func (s *Store) Stats(ctx context.Context) (map[string]map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT lane, status, COUNT(1) FROM jobs GROUP BY lane, status")
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]map[Status]int)
	for rows.Next() {
		var (
			lane   string
			status string
			count  int
		)
		if err := rows.Scan(&lane, &status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		if stats[lane] == nil {
			stats[lane] = make(map[Status]int)
		}
		stats[lane][Status(status)] = count
	}
	return stats, rows.Err()
}
