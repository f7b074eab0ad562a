package queue

import (
	"encoding/json"
	"time"

	"burstline/internal/config"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{StatusQueued, StatusRunning, StatusSucceeded, StatusFailed}

// ParseStatus validates a user supplied status string.
func ParseStatus(value string) (Status, bool) {
	for _, status := range AllStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Kind names the stage a job runs.
type Kind string

const (
	KindAttach          Kind = "attach"
	KindVariants        Kind = "variants"
	KindExif            Kind = "exif"
	KindFaces           Kind = "faces"
	KindPortrait        Kind = "portrait"
	KindSessionAnalysis Kind = "session_analysis"
)

// AllKinds lists every job kind in pipeline order.
var AllKinds = []Kind{KindAttach, KindVariants, KindExif, KindFaces, KindPortrait, KindSessionAnalysis}

var kindLanes = map[Kind]string{
	KindAttach:          config.LaneAttachments,
	KindVariants:        config.LaneAttachments,
	KindExif:            config.LaneDefault,
	KindFaces:           config.LaneFaceDetection,
	KindPortrait:        config.LaneDefault,
	KindSessionAnalysis: config.LaneDefault,
}

// Lane returns the worker lane that executes this kind.
func (k Kind) Lane() string {
	if lane, ok := kindLanes[k]; ok {
		return lane
	}
	return config.LaneDefault
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindLanes[k]
	return ok
}

// Lanes returns the distinct lanes in a stable order.
func Lanes() []string {
	return []string{config.LaneAttachments, config.LaneFaceDetection, config.LaneDefault}
}

// Job is one persisted unit of work.
type Job struct {
	ID            int64
	Kind          Kind
	Lane          string
	PhotoID       int64
	SessionID     int64
	Payload       json.RawMessage
	Status        Status
	Attempts      int
	MaxAttempts   int
	RunAt         time.Time
	LastError     string
	LastHeartbeat *time.Time
	RequestID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Task decodes the job payload into its typed task.
func (j *Job) Task() (Task, error) {
	return DecodeTask(j.Kind, j.Payload)
}

// AttemptsLeft reports whether another attempt fits the budget.
func (j *Job) AttemptsLeft() bool {
	return j.Attempts < j.MaxAttempts
}

// Filter narrows List.
type Filter struct {
	Statuses []Status
	Lane     string
	Kind     Kind
	PhotoID  int64
	Limit    int
}

// Outcome describes where a failed attempt left the job.
type Outcome struct {
	Status      Status
	Attempts    int
	MaxAttempts int
	RetryAt     time.Time
}

// Exhausted reports whether the job reached its terminal failed state.
func (o Outcome) Exhausted() bool { return o.Status == StatusFailed }
