package schedule

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/evanschultz/critpath/internal/domain"
)

func TestComputeSampleProject(t *testing.T) {
	r := mustRun(t, sampleRows())
	want := map[string][4]float64{
		"A": {0, 5, 0, 5},
		"B": {5, 12, 5, 12},
		"C": {12, 15, 12, 15},
		"D": {5, 9, 11, 15},
		"E": {15, 17, 15, 17},
	}
	for id, times := range want {
		s := stateByID(t, r, id)
		got := [4]float64{s.ES, s.EF, s.LS, s.LF}
		if got != times {
			t.Fatalf("%s ES/EF/LS/LF = %v, want %v", id, got, times)
		}
	}
	summary := r.Summary()
	if summary.CurrentDuration != 17 || summary.InitialDuration != 17 {
		t.Fatalf("unexpected durations %#v", summary)
	}
	if summary.InitialCost != 1800 || summary.CurrentTotalCost != 1800 {
		t.Fatalf("unexpected costs %#v", summary)
	}
	if strings.Join(summary.CriticalActivityIDs, ",") != "A,B,C,E" {
		t.Fatalf("critical = %v, want A,B,C,E", summary.CriticalActivityIDs)
	}
	if d := stateByID(t, r, "D"); d.Slack != 6 || d.IsCritical {
		t.Fatalf("unexpected D state %#v", d)
	}
}

func TestComputeIndependentActivities(t *testing.T) {
	r := mustRun(t, []domain.ActivityInput{
		row("X", "", 3, 0, 3, 0),
		row("Y", "", 5, 0, 5, 0),
	})
	if got := r.Summary().CurrentDuration; got != 5 {
		t.Fatalf("makespan = %v, want 5", got)
	}
	x, y := stateByID(t, r, "X"), stateByID(t, r, "Y")
	if x.IsCritical || x.Slack != 2 {
		t.Fatalf("X must not be critical, got %#v", x)
	}
	if !y.IsCritical {
		t.Fatalf("Y must be critical, got %#v", y)
	}
}

func TestComputeChain(t *testing.T) {
	r := mustRun(t, []domain.ActivityInput{
		row("A", "", 5, 0, 5, 0),
		row("B", "A[FS+0]", 7, 0, 7, 0),
		row("C", "B", 3, 0, 3, 0),
	})
	want := map[string][2]float64{"A": {0, 5}, "B": {5, 12}, "C": {12, 15}}
	for id, times := range want {
		s := stateByID(t, r, id)
		if got := [2]float64{s.ES, s.EF}; got != times {
			t.Fatalf("%s ES/EF = %v, want %v", id, got, times)
		}
		if !s.IsCritical {
			t.Fatalf("%s must be critical", id)
		}
	}
	if got := r.Summary().CurrentDuration; got != 15 {
		t.Fatalf("makespan = %v, want 15", got)
	}
}

func TestComputeRelationTypes(t *testing.T) {
	tests := []struct {
		name      string
		pred      string
		predDur   int
		succDur   int
		wantES    float64
		wantPredL [2]float64
		makespan  float64
	}{
		{name: "SS", pred: "P[SS+2]", predDur: 4, succDur: 3, wantES: 2, wantPredL: [2]float64{0, 4}, makespan: 5},
		{name: "FF", pred: "P[FF+1]", predDur: 4, succDur: 2, wantES: 3, wantPredL: [2]float64{0, 4}, makespan: 5},
		{name: "SF", pred: "P[SF+5]", predDur: 4, succDur: 2, wantES: 3, wantPredL: [2]float64{0, 4}, makespan: 5},
		{name: "FS lead", pred: "P[FS-2]", predDur: 5, succDur: 3, wantES: 3, wantPredL: [2]float64{0, 5}, makespan: 6},
		{name: "SS long predecessor", pred: "P[SS+2]", predDur: 10, succDur: 3, wantES: 2, wantPredL: [2]float64{0, 10}, makespan: 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := mustRun(t, []domain.ActivityInput{
				row("P", "", tc.predDur, 0, tc.predDur, 0),
				row("S", tc.pred, tc.succDur, 0, tc.succDur, 0),
			})
			s := stateByID(t, r, "S")
			if s.ES != tc.wantES {
				t.Fatalf("S.ES = %v, want %v", s.ES, tc.wantES)
			}
			p := stateByID(t, r, "P")
			if got := [2]float64{p.LS, p.LF}; got != tc.wantPredL {
				t.Fatalf("P LS/LF = %v, want %v", got, tc.wantPredL)
			}
			if got := r.Summary().CurrentDuration; got != tc.makespan {
				t.Fatalf("makespan = %v, want %v", got, tc.makespan)
			}
		})
	}
}

func TestComputeIsOrderIndependent(t *testing.T) {
	rows := sampleRows()
	reversed := make([]domain.ActivityInput, len(rows))
	for i := range rows {
		reversed[len(rows)-1-i] = rows[i]
	}
	a := mustRun(t, rows)
	b := mustRun(t, reversed)
	for _, s := range a.Activities() {
		o := stateByID(t, b, s.ID)
		if s.ES != o.ES || s.EF != o.EF || s.LS != o.LS || s.LF != o.LF {
			t.Fatalf("%s differs by input order: %#v vs %#v", s.ID, s, o)
		}
	}
}

func TestComputeLongestPathOnRandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		n := 2 + rng.Intn(12)
		durations := make([]int, n)
		preds := make([][]int, n)
		for i := range n {
			durations[i] = 1 + rng.Intn(9)
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					preds[i] = append(preds[i], j)
				}
			}
		}

		finish := make([]int, n)
		longest := 0
		for i := range n {
			start := 0
			for _, j := range preds[i] {
				start = max(start, finish[j])
			}
			finish[i] = start + durations[i]
			longest = max(longest, finish[i])
		}

		// Feed rows in a shuffled order so the relaxation has to iterate.
		order := rng.Perm(n)
		rows := make([]domain.ActivityInput, 0, n)
		for _, i := range order {
			refs := make([]string, 0, len(preds[i]))
			for _, j := range preds[i] {
				refs = append(refs, "N"+strconv.Itoa(j))
			}
			rows = append(rows, row("N"+strconv.Itoa(i), strings.Join(refs, ","), durations[i], 0, durations[i], 0))
		}

		r := mustRun(t, rows)
		if got := r.Summary().CurrentDuration; got != float64(longest) {
			t.Fatalf("trial %d makespan = %v, want %d", trial, got, longest)
		}
		if !r.Last().Converged {
			t.Fatalf("trial %d did not converge", trial)
		}
		critical := 0
		for _, s := range r.Activities() {
			if s.EF != s.ES+float64(s.CurrentDuration) || s.LF != s.LS+float64(s.CurrentDuration) {
				t.Fatalf("trial %d broken time identity for %#v", trial, s)
			}
			if s.IsCritical {
				critical++
			}
		}
		if critical == 0 {
			t.Fatalf("trial %d has no critical activity", trial)
		}
	}
}

// typedLink is one generated precedence link of a random typed DAG.
type typedLink struct {
	from int
	typ  domain.RelationType
	lag  int
}

// topologicalTimes computes ES and LF in index order, which is topological for links
// that always point from a lower index.
func topologicalTimes(durations []int, preds [][]typedLink) ([]float64, []float64) {
	n := len(durations)
	es := make([]float64, n)
	ef := make([]float64, n)
	makespan := 0.0
	for i := range n {
		d := float64(durations[i])
		for _, l := range preds[i] {
			lag := float64(l.lag)
			var c float64
			switch l.typ {
			case domain.RelationSS:
				c = es[l.from] + lag
			case domain.RelationFF:
				c = ef[l.from] + lag - d
			case domain.RelationSF:
				c = es[l.from] + lag - d
			default:
				c = ef[l.from] + lag
			}
			es[i] = max(es[i], c)
		}
		ef[i] = es[i] + d
		makespan = max(makespan, ef[i])
	}

	lf := make([]float64, n)
	ls := make([]float64, n)
	for i := range n {
		lf[i] = makespan
	}
	for i := n - 1; i >= 0; i-- {
		ls[i] = lf[i] - float64(durations[i])
		for _, l := range preds[i] {
			p := l.from
			dp := float64(durations[p])
			lag := float64(l.lag)
			var c float64
			switch l.typ {
			case domain.RelationSS:
				c = ls[i] - lag + dp
			case domain.RelationFF:
				c = lf[i] - lag
			case domain.RelationSF:
				c = lf[i] - lag + dp
			default:
				c = ls[i] - lag
			}
			lf[p] = min(lf[p], c)
		}
	}
	return es, lf
}

func TestComputeMixedRelationsMatchTopologicalOrder(t *testing.T) {
	types := []domain.RelationType{domain.RelationFS, domain.RelationSS, domain.RelationFF, domain.RelationSF}
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(14)
		durations := make([]int, n)
		preds := make([][]typedLink, n)
		for i := range n {
			durations[i] = 1 + rng.Intn(9)
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					preds[i] = append(preds[i], typedLink{from: j, typ: types[rng.Intn(len(types))], lag: rng.Intn(9) - 4})
				}
			}
		}
		wantES, wantLF := topologicalTimes(durations, preds)

		order := rng.Perm(n)
		rows := make([]domain.ActivityInput, 0, n)
		for _, i := range order {
			refs := make([]string, 0, len(preds[i]))
			for _, l := range preds[i] {
				refs = append(refs, domain.PredecessorSpec{Reference: "N" + strconv.Itoa(l.from), Type: l.typ, Lag: l.lag}.String())
			}
			rows = append(rows, row("N"+strconv.Itoa(i), strings.Join(refs, ","), durations[i], 0, durations[i], 0))
		}

		r := mustRun(t, rows)
		if !r.Last().Converged {
			t.Fatalf("trial %d did not converge for rows %#v", trial, rows)
		}
		for i := range n {
			s := stateByID(t, r, "N"+strconv.Itoa(i))
			if s.ES != wantES[i] || s.LF != wantLF[i] {
				t.Fatalf("trial %d N%d ES/LF = %v/%v, want %v/%v (rows %#v)", trial, i, s.ES, s.LF, wantES[i], wantLF[i], rows)
			}
		}
	}
}

func TestComputeCycleTerminatesWithWarning(t *testing.T) {
	r := mustRun(t, []domain.ActivityInput{
		row("A", "B", 1, 0, 1, 0),
		row("B", "A", 1, 0, 1, 0),
	})
	last := r.Last()
	if last.Converged {
		t.Fatal("expected cyclic graph to hit the pass limit")
	}
	if last.ForwardPasses != 4 {
		t.Fatalf("forward passes = %d, want 4", last.ForwardPasses)
	}
	if !hasWarning(r.Warnings(), WarningConvergence) {
		t.Fatalf("expected convergence warning, got %#v", r.Warnings())
	}
}

func TestComputePassLimitFactorOption(t *testing.T) {
	r, err := NewRun([]domain.ActivityInput{
		row("A", "B", 1, 0, 1, 0),
		row("B", "A", 1, 0, 1, 0),
	}, Options{PassLimitFactor: 5})
	if err != nil {
		t.Fatalf("NewRun() error = %v", err)
	}
	if got := r.Last().ForwardPasses; got != 10 {
		t.Fatalf("forward passes = %d, want 10", got)
	}
}

func TestComputeEmptyGraph(t *testing.T) {
	r := mustRun(t, nil)
	summary := r.Summary()
	if summary.CurrentDuration != 0 || len(summary.CriticalActivityIDs) != 0 || !summary.Converged {
		t.Fatalf("unexpected empty summary %#v", summary)
	}
}

func TestResetReproducesNormalSchedule(t *testing.T) {
	r := mustRun(t, sampleRows())
	before := r.Activities()
	for range 3 {
		r.CrashStep()
	}
	if r.Summary().CurrentDuration == 17 {
		t.Fatal("expected crashing to shorten the project")
	}
	r.Reset()
	after := r.Activities()
	for i := range before {
		b, a := before[i], after[i]
		if b.ES != a.ES || b.EF != a.EF || b.LS != a.LS || b.LF != a.LF || b.Slack != a.Slack || a.CrashedTime != 0 {
			t.Fatalf("reset mismatch for %s: %#v vs %#v", b.ID, b, a)
		}
	}
	if got := r.Summary(); got.AccumulatedCrashCost != 0 || got.CurrentTotalCost != got.InitialCost {
		t.Fatalf("unexpected summary after reset %#v", got)
	}
}
