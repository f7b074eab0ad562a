package queue

import (
	"database/sql"
	"fmt"
	"strings"

	"burstline/internal/database"
)

const jobColumns = "id, kind, lane, photo_id, session_id, payload, status, attempts, max_attempts, run_at, last_error, last_heartbeat, request_id, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		kind         string
		status       string
		photoID      sql.NullInt64
		sessionID    sql.NullInt64
		payload      string
		runAtRaw     string
		lastError    sql.NullString
		heartbeatRaw sql.NullString
		requestID    sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&job.ID,
		&kind,
		&job.Lane,
		&photoID,
		&sessionID,
		&payload,
		&status,
		&job.Attempts,
		&job.MaxAttempts,
		&runAtRaw,
		&lastError,
		&heartbeatRaw,
		&requestID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Kind = Kind(kind)
	job.Status = Status(status)
	job.PhotoID = photoID.Int64
	job.SessionID = sessionID.Int64
	job.Payload = []byte(payload)
	job.LastError = lastError.String
	job.RequestID = requestID.String

	var err error
	if job.RunAt, err = database.ParseTime(runAtRaw); err != nil {
		return nil, fmt.Errorf("job %d run_at: %w", job.ID, err)
	}
	if job.LastHeartbeat, err = database.ScanTime(heartbeatRaw); err != nil {
		return nil, fmt.Errorf("job %d last_heartbeat: %w", job.ID, err)
	}
	if job.CreatedAt, err = database.ParseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("job %d created_at: %w", job.ID, err)
	}
	if job.UpdatedAt, err = database.ParseTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("job %d updated_at: %w", job.ID, err)
	}
	return &job, nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// truncateError keeps stored error text bounded.
func truncateError(err error) any {
	if err == nil {
		return nil
	}
	msg := err.Error()
	const limit = 2000
	if len(msg) > limit {
		msg = msg[:limit]
	}
	return msg
}
