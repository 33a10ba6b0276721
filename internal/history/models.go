package history

import "time"

// Status is the lifecycle state of a recorded request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusRejected}
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// Entry is one recorded request.
type Entry struct {
	ID             string
	Peer           string
	Text           string
	SourceLanguage string
	TargetLanguage string
	Status         Status
	Output         string
	ErrorKind      string
	ErrorMessage   string
	Loaded         bool
	QueuedAt       time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// Duration returns the running time of a finished entry, or 0.
func (e Entry) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}
