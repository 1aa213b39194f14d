package schedule

import (
	"strconv"
	"testing"

	"github.com/evanschultz/critpath/internal/domain"
)

// row builds a raw activity input from typed values.
func row(id, preds string, normalDuration int, normalCost float64, crashDuration int, crashCost float64) domain.ActivityInput {
	return domain.ActivityInput{
		ID:             id,
		Predecessors:   domain.SplitPredecessors(preds),
		NormalDuration: strconv.Itoa(normalDuration),
		NormalCost:     strconv.FormatFloat(normalCost, 'f', -1, 64),
		CrashDuration:  strconv.Itoa(crashDuration),
		CrashCost:      strconv.FormatFloat(crashCost, 'f', -1, 64),
	}
}

func sampleRows() []domain.ActivityInput {
	return []domain.ActivityInput{
		row("A", "", 5, 500, 3, 900),
		row("B", "A", 7, 700, 5, 1000),
		row("C", "B", 3, 300, 2, 500),
		row("D", "A", 4, 200, 3, 300),
		row("E", "C, D", 2, 100, 1, 400),
	}
}

func mustRun(t *testing.T, rows []domain.ActivityInput) *Run {
	t.Helper()
	r, err := NewRun(rows, Options{})
	if err != nil {
		t.Fatalf("NewRun() error = %v", err)
	}
	return r
}

func stateByID(t *testing.T, r *Run, id string) ActivityState {
	t.Helper()
	for _, s := range r.Activities() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("activity %q not found", id)
	return ActivityState{}
}

func hasWarning(ws []Warning, kind WarningKind) bool {
	for _, w := range ws {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
