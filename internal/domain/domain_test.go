package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewProjectAndSlug(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	p, err := NewProject("p1", "  Launch Plan v2!  ", " desc ", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if p.Slug != "launch-plan-v2" {
		t.Fatalf("unexpected slug %q", p.Slug)
	}
	if p.Name != "Launch Plan v2!" || p.Description != "desc" {
		t.Fatalf("unexpected project %#v", p)
	}
}

func TestNewProjectValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewProject("", "ok", "", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewProject("id", "   ", "", now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestProjectArchiveRestore(t *testing.T) {
	now := time.Now()
	p, err := NewProject("p1", "test", "", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	later := now.Add(time.Minute)
	p.Archive(later)
	if p.ArchivedAt == nil {
		t.Fatal("expected archived_at to be set")
	}
	p.Restore(later.Add(time.Minute))
	if p.ArchivedAt != nil {
		t.Fatal("expected archived_at to be nil")
	}
}

func TestProjectStartDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p, err := NewProject("p1", "dated", "", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	start, err := ParseStartDate("2026-04-10")
	if err != nil {
		t.Fatalf("ParseStartDate() error = %v", err)
	}
	p.SetStartDate(start, now)
	if p.StartDate == nil || p.StartDate.Format(StartDateLayout) != "2026-04-10" {
		t.Fatalf("unexpected start date %v", p.StartDate)
	}
	if got := AddDays(*p.StartDate, 12).Format(StartDateLayout); got != "2026-04-22" {
		t.Fatalf("AddDays() = %s, want 2026-04-22", got)
	}
	p.SetStartDate(nil, now)
	if p.StartDate != nil {
		t.Fatal("expected start date to be cleared")
	}

	if _, err := ParseStartDate("10/04/2026"); !errors.Is(err, ErrInvalidStartDate) {
		t.Fatalf("expected ErrInvalidStartDate, got %v", err)
	}
	if got, err := ParseStartDate("  "); err != nil || got != nil {
		t.Fatalf("expected nil start date for blank input, got %v %v", got, err)
	}
	if got := DefaultStartDate(now).Format(StartDateLayout); got != "2026-01-01" {
		t.Fatalf("DefaultStartDate() = %s", got)
	}
}

func TestNewRunEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	ev, err := NewRunEvent(RunEvent{ProjectID: " p1 ", RunID: "r1", Kind: RunEventCrash, ActivityID: " A "}, now)
	if err != nil {
		t.Fatalf("NewRunEvent() error = %v", err)
	}
	if ev.ProjectID != "p1" || ev.ActivityID != "A" || ev.OccurredAt.Location() != time.UTC {
		t.Fatalf("unexpected event %#v", ev)
	}
	if _, err := NewRunEvent(RunEvent{ProjectID: "p1", RunID: "r1", Kind: "bogus"}, now); err != ErrInvalidEventKind {
		t.Fatalf("expected ErrInvalidEventKind, got %v", err)
	}
	if _, err := NewRunEvent(RunEvent{ProjectID: "p1", Kind: RunEventReset}, now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
