package schedule

import (
	"fmt"
	"sort"
	"strconv"
)

// NoCrashReason explains why a crash step found nothing to shorten.
type NoCrashReason string

// NoCrashReason values, in the priority order they are checked.
const (
	NoCrashAllFullyCrashed      NoCrashReason = "all_fully_crashed"
	NoCrashNoCritical           NoCrashReason = "no_critical_activities"
	NoCrashCriticalFullyCrashed NoCrashReason = "critical_fully_crashed"
	NoCrashNegativeCostExcluded NoCrashReason = "negative_cost_excluded"
	NoCrashNotCostEffective     NoCrashReason = "not_cost_effective"
)

// Message returns the user-facing explanation for the reason.
func (r NoCrashReason) Message() string {
	switch r {
	case NoCrashAllFullyCrashed:
		return "All activities are fully crashed."
	case NoCrashNoCritical:
		return "No critical activities identified while the project has positive duration; check the schedule."
	case NoCrashCriticalFullyCrashed:
		return "All critical activities are fully crashed."
	case NoCrashNegativeCostExcluded:
		return "Remaining critical activities have a negative crash cost and are excluded from automatic crashing."
	default:
		return "No further cost-effective crashing possible on the critical path."
	}
}

// StepResult is the outcome of one crash step. Exactly one of Crashed or NoCrash is set.
type StepResult struct {
	Crashed            bool
	ActivityID         string
	ActivityName       string
	UnitsCrashed       int
	CostAdded          float64
	NewProjectDuration float64
	NoCrash            NoCrashReason
	Message            string
	Warnings           []Warning
}

// CrashStep shortens the cheapest eligible critical activity by one unit and recomputes
// the schedule. Eligible means critical, above its crash floor and with a non-negative
// finite crash rate; ties go to the earlier activity in input order.
func (r *Run) CrashStep() StepResult {
	idx, ok := selectCrashCandidate(r.graph)
	if !ok {
		reason := classifyNoCrash(r.graph, r.makespan)
		return StepResult{
			NoCrash:            reason,
			Message:            reason.Message(),
			NewProjectDuration: r.makespan,
		}
	}

	a := r.graph.Activity(idx)
	a.CrashOneUnit()
	cost := a.CostPerUnitCrash
	r.accumulated += cost
	r.steps++
	comp := r.recompute()

	return StepResult{
		Crashed:            true,
		ActivityID:         a.ID,
		ActivityName:       a.Name,
		UnitsCrashed:       1,
		CostAdded:          cost,
		NewProjectDuration: r.makespan,
		Message: fmt.Sprintf("CRASHED: %s (ID: %s) by 1 unit. Cost added: %.2f. New project duration: %s.",
			a.Name, a.ID, cost, formatUnits(r.makespan)),
		Warnings: comp.Warnings,
	}
}

func selectCrashCandidate(g *Graph) (int, bool) {
	var eligible []int
	for i := range g.activities {
		a := &g.activities[i]
		if a.IsCritical && a.CanCrashFurther() && a.Crashable() && a.CostPerUnitCrash >= 0 {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return 0, false
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return g.activities[eligible[i]].CostPerUnitCrash < g.activities[eligible[j]].CostPerUnitCrash
	})
	return eligible[0], true
}

// classifyNoCrash picks the first reason that applies. It never mutates the graph.
func classifyNoCrash(g *Graph, makespan float64) NoCrashReason {
	allCrashed := true
	var critical []int
	for i := range g.activities {
		a := &g.activities[i]
		if a.CanCrashFurther() {
			allCrashed = false
		}
		if a.IsCritical {
			critical = append(critical, i)
		}
	}
	if allCrashed {
		return NoCrashAllFullyCrashed
	}
	if len(critical) == 0 {
		if makespan > 0 {
			return NoCrashNoCritical
		}
		return NoCrashNotCostEffective
	}

	criticalCrashed := true
	negativeOnly := true
	for _, i := range critical {
		a := &g.activities[i]
		if !a.CanCrashFurther() {
			continue
		}
		criticalCrashed = false
		if a.CostPerUnitCrash >= 0 {
			negativeOnly = false
		}
	}
	switch {
	case criticalCrashed:
		return NoCrashCriticalFullyCrashed
	case negativeOnly:
		return NoCrashNegativeCostExcluded
	default:
		return NoCrashNotCostEffective
	}
}

// formatUnits renders whole time units without a trailing fraction.
func formatUnits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
