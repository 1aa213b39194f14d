package common

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/evanschultz/critpath/internal/adapters/storage/sqlite"
	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/domain"
)

// newTestAdapter builds an adapter over a file-backed sqlite service.
func newTestAdapter(t *testing.T) (*AppServiceAdapter, *app.Service) {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "critpath.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time {
		return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{MaxCrashSteps: 20})
	return NewAppServiceAdapter(svc), svc
}

// TestComputeScheduleHashIgnoresComputedAt verifies the hash excludes compute timestamp jitter.
func TestComputeScheduleHashIgnoresComputedAt(t *testing.T) {
	view := app.ScheduleView{
		ProjectID:  "p1",
		RunID:      "r1",
		Summary:    app.SummaryView{CurrentDuration: 17, CriticalActivityIDs: []string{"A"}},
		ComputedAt: time.Date(2026, 2, 25, 2, 32, 58, 600610000, time.UTC),
	}
	hashA, err := computeScheduleHash(view)
	if err != nil {
		t.Fatalf("computeScheduleHash(first) error = %v", err)
	}
	view.ComputedAt = view.ComputedAt.Add(time.Second)
	hashB, err := computeScheduleHash(view)
	if err != nil {
		t.Fatalf("computeScheduleHash(second) error = %v", err)
	}
	if hashA != hashB {
		t.Fatalf("hash mismatch when only computed_at changed: %q != %q", hashA, hashB)
	}
	view.Summary.CurrentDuration = 16
	hashC, err := computeScheduleHash(view)
	if err != nil {
		t.Fatalf("computeScheduleHash(third) error = %v", err)
	}
	if hashC == hashA {
		t.Fatal("expected hash to change with the schedule content")
	}
}

// TestAppServiceAdapterScheduleFlow verifies the read, crash, reset and log surfaces.
func TestAppServiceAdapterScheduleFlow(t *testing.T) {
	adapter, svc := newTestAdapter(t)
	ctx := context.Background()
	project, err := svc.CreateSampleProject(ctx)
	if err != nil {
		t.Fatalf("CreateSampleProject() error = %v", err)
	}

	projects, err := adapter.ListProjects(ctx, false)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].Name != app.SampleProjectName {
		t.Fatalf("unexpected projects %#v", projects)
	}

	initial, err := adapter.GetSchedule(ctx, " "+project.ID+" ")
	if err != nil {
		t.Fatalf("GetSchedule() error = %v", err)
	}
	if initial.Summary.CurrentDuration != 17 || initial.StateHash == "" {
		t.Fatalf("unexpected initial schedule %#v", initial.Summary)
	}

	one, err := adapter.Crash(ctx, CrashRequest{ProjectID: project.ID})
	if err != nil {
		t.Fatalf("Crash() error = %v", err)
	}
	if len(one.Steps) != 1 || one.Steps[0].ActivityID != "B" || one.Stopped {
		t.Fatalf("unexpected single crash %#v", one.Steps)
	}
	if one.Schedule.StateHash == initial.StateHash {
		t.Fatal("expected state hash to change after a crash")
	}

	rest, err := adapter.Crash(ctx, CrashRequest{ProjectID: project.ID, Steps: 20})
	if err != nil {
		t.Fatalf("Crash(20) error = %v", err)
	}
	if !rest.Stopped || len(rest.Steps) != 6 || rest.Schedule.Summary.CurrentDuration != 11 {
		t.Fatalf("unexpected crash batch %d steps stopped=%t duration=%v", len(rest.Steps), rest.Stopped, rest.Schedule.Summary.CurrentDuration)
	}
	if got := rest.Steps[5].NoCrashPossible; got != "critical_fully_crashed" {
		t.Fatalf("unexpected no-crash reason %q", got)
	}

	reset, err := adapter.Reset(ctx, project.ID)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reset.StateHash != initial.StateHash {
		t.Fatal("expected reset schedule to hash like the initial schedule")
	}

	events, err := adapter.ListRunEvents(ctx, ListRunEventsRequest{ProjectID: project.ID, RunID: initial.RunID})
	if err != nil {
		t.Fatalf("ListRunEvents() error = %v", err)
	}
	if len(events) != 9 || events[0].Kind != "compute" || events[8].Kind != "reset" {
		t.Fatalf("unexpected events %#v", events)
	}
	other, err := adapter.ListRunEvents(ctx, ListRunEventsRequest{ProjectID: project.ID, RunID: "other"})
	if err != nil {
		t.Fatalf("ListRunEvents(other) error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected run filter to drop events, got %d", len(other))
	}

	fresh, err := adapter.Recompute(ctx, project.ID)
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if fresh.RunID == initial.RunID {
		t.Fatal("expected recompute to start a new run")
	}

	report, err := adapter.Report(ctx, project.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report == "" {
		t.Fatal("expected markdown report")
	}
}

// TestAppServiceAdapterErrorMapping verifies transport error classes.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	adapter, svc := newTestAdapter(t)
	ctx := context.Background()

	if _, err := adapter.GetSchedule(ctx, "  "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := adapter.GetSchedule(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	project, err := svc.CreateProject(ctx, app.CreateProjectInput{Name: "Broken"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if _, err := adapter.Crash(ctx, CrashRequest{ProjectID: project.ID, Steps: -2}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for step count, got %v", err)
	}
	if _, err := adapter.ListRunEvents(ctx, ListRunEventsRequest{ProjectID: project.ID, Limit: -1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for limit, got %v", err)
	}

	if err := svc.SaveActivities(ctx, project.ID, []domain.ActivityInput{
		{ID: "A", Name: "Design", Predecessors: []string{"Z"}, NormalDuration: "1"},
	}); err != nil {
		t.Fatalf("SaveActivities() error = %v", err)
	}
	if _, err := adapter.GetSchedule(ctx, project.ID); !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}

	var nilAdapter *AppServiceAdapter
	if _, err := nilAdapter.ListProjects(ctx, true); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest from nil adapter, got %v", err)
	}
}
