package domain

import (
	"strings"
	"time"
)

// RunEventKind describes one entry in a project's schedule run log.
type RunEventKind string

// RunEventKind values recorded by the schedule service.
const (
	RunEventCompute RunEventKind = "compute"
	RunEventCrash   RunEventKind = "crash"
	RunEventNoCrash RunEventKind = "no_crash"
	RunEventReset   RunEventKind = "reset"
	RunEventImport  RunEventKind = "import"
)

// IsValid reports whether k is a known event kind.
func (k RunEventKind) IsValid() bool {
	switch k {
	case RunEventCompute, RunEventCrash, RunEventNoCrash, RunEventReset, RunEventImport:
		return true
	default:
		return false
	}
}

// RunEvent is a snapshot of the project totals after one schedule operation.
type RunEvent struct {
	ID              int64
	ProjectID       string
	RunID           string
	Sequence        int
	Kind            RunEventKind
	ActivityID      string
	CostAdded       float64
	ProjectDuration float64
	TotalCost       float64
	Message         string
	OccurredAt      time.Time
}

// NewRunEvent validates and normalizes a run log entry.
func NewRunEvent(in RunEvent, now time.Time) (RunEvent, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.RunID = strings.TrimSpace(in.RunID)
	in.ActivityID = strings.TrimSpace(in.ActivityID)
	in.Message = strings.TrimSpace(in.Message)
	if in.ProjectID == "" || in.RunID == "" {
		return RunEvent{}, ErrInvalidID
	}
	if !in.Kind.IsValid() {
		return RunEvent{}, ErrInvalidEventKind
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = now
	}
	in.OccurredAt = in.OccurredAt.UTC()
	return in, nil
}
