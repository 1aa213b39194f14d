// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/critpath/internal/app"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrInvalidGraph reports an activity table that cannot be scheduled.
var ErrInvalidGraph = errors.New("invalid activity graph")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ProjectSummary is the transport view of one project.
type ProjectSummary struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   string     `json:"start_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// ScheduleState wraps one schedule view with a content hash that ignores computed_at.
type ScheduleState struct {
	StateHash string `json:"state_hash"`
	app.ScheduleView
}

// CrashRequest asks for up to Steps greedy crash steps on one project.
type CrashRequest struct {
	ProjectID string `json:"project_id"`
	Steps     int    `json:"steps"`
}

// CrashResult carries the per-step outcomes and the schedule after the last step.
type CrashResult struct {
	Steps    []app.CrashOutcome `json:"steps"`
	Stopped  bool               `json:"stopped"`
	Schedule ScheduleState      `json:"schedule"`
}

// ListRunEventsRequest captures run log query filters.
type ListRunEventsRequest struct {
	ProjectID string
	RunID     string
	Limit     int
}

// RunEvent is the transport view of one run log entry.
type RunEvent struct {
	ID              int64     `json:"id"`
	RunID           string    `json:"run_id"`
	Sequence        int       `json:"sequence"`
	Kind            string    `json:"kind"`
	ActivityID      string    `json:"activity_id,omitempty"`
	CostAdded       float64   `json:"cost_added"`
	ProjectDuration float64   `json:"project_duration"`
	TotalCost       float64   `json:"total_cost"`
	Message         string    `json:"message"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ScheduleService is the schedule surface shared by HTTP and MCP transports.
type ScheduleService interface {
	ListProjects(context.Context, bool) ([]ProjectSummary, error)
	GetSchedule(context.Context, string) (ScheduleState, error)
	Recompute(context.Context, string) (ScheduleState, error)
	Crash(context.Context, CrashRequest) (CrashResult, error)
	Reset(context.Context, string) (ScheduleState, error)
	ListRunEvents(context.Context, ListRunEventsRequest) ([]RunEvent, error)
	Report(context.Context, string) (string, error)
}
