package schedule

import (
	"errors"
	"testing"

	"github.com/evanschultz/critpath/internal/domain"
)

func TestBuildGraphLinksBothEnds(t *testing.T) {
	g, warnings, err := BuildGraph(sampleRows())
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %#v", warnings)
	}
	if g.Len() != 5 || len(g.Links()) != 5 {
		t.Fatalf("unexpected graph size activities=%d links=%d", g.Len(), len(g.Links()))
	}
	e, _ := g.IndexOf("E")
	preds := g.Predecessors(e)
	if len(preds) != 2 || g.Activity(preds[0].From).ID != "C" || g.Activity(preds[1].From).ID != "D" {
		t.Fatalf("unexpected predecessors of E %#v", preds)
	}
	a, _ := g.IndexOf("A")
	succ := g.Successors(a)
	if len(succ) != 2 || g.Activity(succ[0].To).ID != "B" || g.Activity(succ[1].To).ID != "D" {
		t.Fatalf("unexpected successors of A %#v", succ)
	}
}

func TestBuildGraphParsesRelationAndLag(t *testing.T) {
	rows := []domain.ActivityInput{
		row("p", "", 4, 0, 4, 0),
		row("S", "p[ss+2]", 3, 0, 3, 0),
	}
	g, _, err := BuildGraph(rows)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	links := g.Links()
	if len(links) != 1 || links[0].Type != domain.RelationSS || links[0].Lag != 2 {
		t.Fatalf("unexpected links %#v", links)
	}
}

func TestBuildGraphResolvesByName(t *testing.T) {
	rows := []domain.ActivityInput{
		row("A", "", 2, 0, 2, 0),
		row("B", "Design", 3, 0, 3, 0),
	}
	rows[0].Name = "Design"
	g, _, err := BuildGraph(rows)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	b, _ := g.IndexOf("B")
	if preds := g.Predecessors(b); len(preds) != 1 || preds[0].From != 0 {
		t.Fatalf("unexpected predecessors %#v", preds)
	}
}

func TestBuildGraphAmbiguousNamesKeepFirstMapping(t *testing.T) {
	rows := []domain.ActivityInput{
		row("A", "", 2, 0, 2, 0),
		row("Build", "", 3, 0, 3, 0),
		row("C", "", 1, 0, 1, 0),
		row("D", "Build, Test", 1, 0, 1, 0),
	}
	rows[0].Name = "Build"
	rows[1].Name = "Test"
	rows[2].Name = "Test"
	g, warnings, err := BuildGraph(rows)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	ambiguous := 0
	for _, w := range warnings {
		if w.Kind == WarningAmbiguousReference {
			ambiguous++
		}
	}
	if ambiguous != 2 {
		t.Fatalf("expected 2 ambiguity warnings, got %#v", warnings)
	}
	d, _ := g.IndexOf("D")
	preds := g.Predecessors(d)
	if len(preds) != 2 {
		t.Fatalf("unexpected predecessors %#v", preds)
	}
	if g.Activity(preds[0].From).ID != "Build" {
		t.Fatalf("id must win over name, got %q", g.Activity(preds[0].From).ID)
	}
	if g.Activity(preds[1].From).ID != "Build" {
		t.Fatalf("first-seen name must win, got %q", g.Activity(preds[1].From).ID)
	}
}

func TestBuildGraphErrors(t *testing.T) {
	tests := []struct {
		name string
		rows []domain.ActivityInput
		kind error
	}{
		{
			name: "unresolved",
			rows: []domain.ActivityInput{row("A", "Z", 1, 0, 1, 0)},
			kind: ErrUnresolvedReference,
		},
		{
			name: "self reference",
			rows: []domain.ActivityInput{row("A", "A[SS+1]", 1, 0, 1, 0)},
			kind: ErrSelfReference,
		},
		{
			name: "malformed lag",
			rows: []domain.ActivityInput{row("A", "", 1, 0, 1, 0), row("B", "A[FS+x]", 1, 0, 1, 0)},
			kind: ErrMalformedPredecessor,
		},
		{
			name: "malformed type",
			rows: []domain.ActivityInput{row("A", "", 1, 0, 1, 0), row("B", "A[QQ]", 1, 0, 1, 0)},
			kind: ErrMalformedPredecessor,
		},
		{
			name: "empty reference",
			rows: []domain.ActivityInput{row("A", "", 1, 0, 1, 0), row("B", "[FS]", 1, 0, 1, 0)},
			kind: ErrMalformedPredecessor,
		},
		{
			name: "duplicate id",
			rows: []domain.ActivityInput{row("A", "", 1, 0, 1, 0), row("A", "", 2, 0, 2, 0)},
			kind: ErrDuplicateID,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, _, err := BuildGraph(tc.rows)
			if g != nil {
				t.Fatal("expected no graph on error")
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if !errors.Is(err, domain.ErrInvalidGraph) {
				t.Fatalf("expected domain.ErrInvalidGraph, got %v", err)
			}
			var gerr *GraphError
			if !errors.As(err, &gerr) || gerr.ActivityID == "" {
				t.Fatalf("expected GraphError with activity id, got %#v", err)
			}
		})
	}
}

func TestBuildGraphReportsValidationWarnings(t *testing.T) {
	rows := []domain.ActivityInput{{ID: "A", NormalDuration: "x", NormalCost: "1", CrashDuration: "1", CrashCost: "1"}}
	g, warnings, err := BuildGraph(rows)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if !hasWarning(warnings, WarningInvalidActivity) {
		t.Fatalf("expected invalid activity warning, got %#v", warnings)
	}
	if g.Activity(0).Valid() {
		t.Fatal("expected validation issues on the activity")
	}
}

func TestBuildGraphAutoGeneratesIDs(t *testing.T) {
	rows := []domain.ActivityInput{
		row("", "", 2, 0, 2, 0),
		row("", "Act1", 3, 0, 3, 0),
	}
	g, _, err := BuildGraph(rows)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if g.Activity(1).ID != "Act2" || len(g.Predecessors(1)) != 1 {
		t.Fatalf("unexpected generated graph %#v", g.Activities())
	}
}
