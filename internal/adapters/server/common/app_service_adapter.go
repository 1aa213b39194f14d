package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service schedule APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListProjects lists projects, optionally including archived ones.
func (a *AppServiceAdapter) ListProjects(ctx context.Context, includeArchived bool) ([]ProjectSummary, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	projects, err := a.service.ListProjects(ctx, includeArchived)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, mapProject(p))
	}
	return out, nil
}

// GetSchedule returns the live schedule of one project.
func (a *AppServiceAdapter) GetSchedule(ctx context.Context, projectID string) (ScheduleState, error) {
	projectID, err := a.projectID(projectID)
	if err != nil {
		return ScheduleState{}, err
	}
	view, err := a.service.Schedule(ctx, projectID)
	if err != nil {
		return ScheduleState{}, mapAppError("get schedule", err)
	}
	return newScheduleState(view)
}

// Recompute discards the live run and schedules the stored table from normal durations.
func (a *AppServiceAdapter) Recompute(ctx context.Context, projectID string) (ScheduleState, error) {
	projectID, err := a.projectID(projectID)
	if err != nil {
		return ScheduleState{}, err
	}
	view, err := a.service.ComputeSchedule(ctx, projectID)
	if err != nil {
		return ScheduleState{}, mapAppError("compute schedule", err)
	}
	return newScheduleState(view)
}

// Crash runs up to in.Steps crash steps; zero means one.
func (a *AppServiceAdapter) Crash(ctx context.Context, in CrashRequest) (CrashResult, error) {
	projectID, err := a.projectID(in.ProjectID)
	if err != nil {
		return CrashResult{}, err
	}
	steps := in.Steps
	if steps == 0 {
		steps = 1
	}
	batch, err := a.service.CrashSteps(ctx, projectID, steps)
	if err != nil {
		return CrashResult{}, mapAppError("crash schedule", err)
	}
	state, err := newScheduleState(batch.Schedule)
	if err != nil {
		return CrashResult{}, err
	}
	return CrashResult{
		Steps:    batch.Steps,
		Stopped:  batch.Stopped(),
		Schedule: state,
	}, nil
}

// Reset restores every activity of the live run to normal duration.
func (a *AppServiceAdapter) Reset(ctx context.Context, projectID string) (ScheduleState, error) {
	projectID, err := a.projectID(projectID)
	if err != nil {
		return ScheduleState{}, err
	}
	view, err := a.service.ResetSchedule(ctx, projectID)
	if err != nil {
		return ScheduleState{}, mapAppError("reset schedule", err)
	}
	return newScheduleState(view)
}

// ListRunEvents lists run log entries, optionally narrowed to one run.
func (a *AppServiceAdapter) ListRunEvents(ctx context.Context, in ListRunEventsRequest) ([]RunEvent, error) {
	projectID, err := a.projectID(in.ProjectID)
	if err != nil {
		return nil, err
	}
	if in.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	events, err := a.service.ListRunEvents(ctx, projectID, in.Limit)
	if err != nil {
		return nil, mapAppError("list run events", err)
	}
	runID := strings.TrimSpace(in.RunID)
	out := make([]RunEvent, 0, len(events))
	for _, ev := range events {
		if runID != "" && ev.RunID != runID {
			continue
		}
		out = append(out, mapRunEvent(ev))
	}
	return out, nil
}

// Report renders the live run of one project as markdown.
func (a *AppServiceAdapter) Report(ctx context.Context, projectID string) (string, error) {
	projectID, err := a.projectID(projectID)
	if err != nil {
		return "", err
	}
	out, err := a.service.Report(ctx, projectID)
	if err != nil {
		return "", mapAppError("render report", err)
	}
	return out, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)
	}
	return nil
}

func (a *AppServiceAdapter) projectID(raw string) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("project_id is required: %w", ErrInvalidRequest)
	}
	return id, nil
}

// newScheduleState attaches a stable content hash to one schedule view.
func newScheduleState(view app.ScheduleView) (ScheduleState, error) {
	hash, err := computeScheduleHash(view)
	if err != nil {
		return ScheduleState{}, err
	}
	return ScheduleState{StateHash: hash, ScheduleView: view}, nil
}

// computeScheduleHash hashes the schedule content, excluding the computed_at timestamp.
func computeScheduleHash(view app.ScheduleView) (string, error) {
	view.ComputedAt = time.Time{}
	encoded, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("encode schedule hash payload: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func mapProject(p domain.Project) ProjectSummary {
	out := ProjectSummary{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
		ArchivedAt:  p.ArchivedAt,
	}
	if p.StartDate != nil {
		out.StartDate = p.StartDate.Format(domain.StartDateLayout)
	}
	return out
}

func mapRunEvent(ev domain.RunEvent) RunEvent {
	return RunEvent{
		ID:              ev.ID,
		RunID:           ev.RunID,
		Sequence:        ev.Sequence,
		Kind:            string(ev.Kind),
		ActivityID:      ev.ActivityID,
		CostAdded:       ev.CostAdded,
		ProjectDuration: ev.ProjectDuration,
		TotalCost:       ev.TotalCost,
		Message:         ev.Message,
		OccurredAt:      ev.OccurredAt.UTC(),
	}
}

// mapAppError maps app and domain errors onto transport error classes.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidGraph):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidGraph, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidStartDate),
		errors.Is(err, app.ErrInvalidStepCount),
		errors.Is(err, app.ErrInvalidImportData),
		errors.Is(err, app.ErrUnsupportedFormat):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
