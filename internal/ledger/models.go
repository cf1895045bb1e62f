package ledger

import (
	"time"

	"datamart/internal/fulfillment"
)

// Status is the drive state of a ledger record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every record status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled}
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	for _, status := range Statuses() {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether a drive in this status has stopped.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Record is the persisted fulfillment state of one transaction.
type Record struct {
	ID           int64
	Kind         fulfillment.Kind
	Ref          int64
	Status       Status
	Cursor       int
	PhaseCount   int
	PhaseName    string
	ErrorMessage string
	SessionID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Percent mirrors fulfillment.Progress.PercentComplete for a stored record.
func (r *Record) Percent() int {
	if r == nil {
		return 0
	}
	if r.PhaseCount <= 0 {
		return 100
	}
	cursor := min(max(r.Cursor, 0), r.PhaseCount)
	return 100 * cursor / r.PhaseCount
}

// HealthSummary aggregates record counts by status.
type HealthSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
}
