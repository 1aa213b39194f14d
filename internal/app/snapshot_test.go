package app

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateSampleProject(ctx)
	if err != nil {
		t.Fatalf("CreateSampleProject() error = %v", err)
	}
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.UpdateProject(ctx, UpdateProjectInput{ProjectID: project.ID, Name: project.Name, StartDate: &start}); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	snap, err := svc.ExportSnapshot(ctx, true)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || len(snap.Projects) != 1 || len(snap.Activities) != 5 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.Projects[0].StartDate != "2026-09-01" {
		t.Fatalf("unexpected start date %q", snap.Projects[0].StartDate)
	}

	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if !strings.Contains(string(encoded), `"project_id":"`+project.ID+`","position":0,"id":"A"`) {
		t.Fatalf("expected flattened activity rows, got %s", encoded)
	}
	var decoded Snapshot
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	target, _ := newTestService(t)
	if err := target.ImportSnapshot(ctx, decoded); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	rows, err := target.ListActivities(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if !reflect.DeepEqual(rows, SampleActivities()) {
		t.Fatalf("imported rows mismatch %#v", rows)
	}
	view, err := target.Schedule(ctx, project.ID)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if view.StartDate != "2026-09-01" || view.Summary.CurrentDuration != 17 {
		t.Fatalf("unexpected imported schedule %#v", view.Summary)
	}
}

func TestSnapshotValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{
			name: "bad version",
			snap: Snapshot{Version: "other"},
			want: "unsupported snapshot version",
		},
		{
			name: "missing project name",
			snap: Snapshot{Projects: []SnapshotProject{{ID: "p1", CreatedAt: now, UpdatedAt: now}}},
			want: "projects[0].name is required",
		},
		{
			name: "unknown project",
			snap: Snapshot{
				Projects:   []SnapshotProject{{ID: "p1", Name: "P", CreatedAt: now, UpdatedAt: now}},
				Activities: []SnapshotActivity{{ProjectID: "p2"}},
			},
			want: "unknown project_id",
		},
		{
			name: "duplicate position",
			snap: Snapshot{
				Projects:   []SnapshotProject{{ID: "p1", Name: "P", CreatedAt: now, UpdatedAt: now}},
				Activities: []SnapshotActivity{{ProjectID: "p1"}, {ProjectID: "p1"}},
			},
			want: "duplicates position",
		},
		{
			name: "bad start date",
			snap: Snapshot{Projects: []SnapshotProject{{ID: "p1", Name: "P", StartDate: "soon", CreatedAt: now, UpdatedAt: now}}},
			want: "start_date",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.snap.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() error = %v, want %q", err, tc.want)
			}
		})
	}
}
