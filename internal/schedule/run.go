package schedule

import (
	"math"

	"github.com/evanschultz/critpath/internal/domain"
)

// Options tunes the engine and analyzer for one run.
type Options struct {
	Epsilon         float64
	PassLimitFactor int
}

// Computation is the result of one engine plus analyzer invocation.
type Computation struct {
	Makespan       float64
	ForwardPasses  int
	BackwardPasses int
	Converged      bool
	MinSlack       float64
	CriticalIDs    []string
	Warnings       []Warning
}

// Summary is the project aggregate of a run.
type Summary struct {
	InitialDuration      float64
	InitialCost          float64
	CurrentDuration      float64
	CurrentTotalCost     float64
	AccumulatedCrashCost float64
	CriticalActivityIDs  []string
	MinSlack             float64
	CrashSteps           int
	Converged            bool
}

// ActivityState is the per-activity schedule output.
type ActivityState struct {
	ID               string
	Name             string
	Predecessors     []string
	NormalDuration   int
	CrashDuration    int
	CurrentDuration  int
	NormalCost       float64
	CrashCost        float64
	CostPerUnitCrash float64
	MaxCrashTime     int
	ES               float64
	EF               float64
	LS               float64
	LF               float64
	Slack            float64
	CrashedTime      int
	CanCrashFurther  bool
	IsCritical       bool
	Issues           []domain.ValidationIssue
}

// Run owns one activity graph, its accumulated crash cost and the latest computation.
type Run struct {
	graph           *Graph
	engine          Engine
	epsilon         float64
	buildWarnings   []Warning
	last            Computation
	makespan        float64
	initialDuration float64
	initialCost     float64
	accumulated     float64
	steps           int
}

// NewRun builds the graph from raw rows and computes the initial schedule.
func NewRun(inputs []domain.ActivityInput, opts Options) (*Run, error) {
	g, warnings, err := BuildGraph(inputs)
	if err != nil {
		return nil, err
	}
	r := &Run{
		graph:         g,
		engine:        Engine{PassLimitFactor: opts.PassLimitFactor},
		epsilon:       opts.Epsilon,
		buildWarnings: warnings,
	}
	if r.epsilon <= 0 {
		r.epsilon = DefaultEpsilon
	}
	for i := range g.activities {
		r.initialCost += g.activities[i].NormalCost
	}
	g.ResetToNormal()
	r.recompute()
	r.initialDuration = r.makespan
	return r, nil
}

// Graph exposes the underlying graph for read access.
func (r *Run) Graph() *Graph {
	return r.graph
}

// Recompute reruns the engine and analyzer on the current durations.
func (r *Run) Recompute() Computation {
	return r.recompute()
}

func (r *Run) recompute() Computation {
	pass := r.engine.Compute(r.graph)
	analysis := Analyze(r.graph, r.epsilon)

	comp := Computation{
		Makespan:       pass.Makespan,
		ForwardPasses:  pass.ForwardPasses,
		BackwardPasses: pass.BackwardPasses,
		Converged:      pass.Converged,
		MinSlack:       analysis.MinSlack,
		CriticalIDs:    make([]string, 0, len(analysis.Critical)),
		Warnings:       append(pass.Warnings, analysis.Warnings...),
	}
	for _, i := range analysis.Critical {
		comp.CriticalIDs = append(comp.CriticalIDs, r.graph.activities[i].ID)
	}
	r.makespan = pass.Makespan
	r.last = comp
	return comp
}

// Reset restores every activity to normal, clears the accumulated crash cost and
// recomputes the schedule.
func (r *Run) Reset() Computation {
	r.graph.ResetToNormal()
	r.accumulated = 0
	r.steps = 0
	return r.recompute()
}

// Last returns the most recent computation.
func (r *Run) Last() Computation {
	return r.last
}

// Warnings returns construction warnings followed by those of the last computation.
func (r *Run) Warnings() []Warning {
	out := make([]Warning, 0, len(r.buildWarnings)+len(r.last.Warnings))
	out = append(out, r.buildWarnings...)
	return append(out, r.last.Warnings...)
}

// Summary returns the project aggregate.
func (r *Run) Summary() Summary {
	return Summary{
		InitialDuration:      r.initialDuration,
		InitialCost:          r.initialCost,
		CurrentDuration:      r.makespan,
		CurrentTotalCost:     r.initialCost + r.accumulated,
		AccumulatedCrashCost: r.accumulated,
		CriticalActivityIDs:  append([]string(nil), r.last.CriticalIDs...),
		MinSlack:             r.last.MinSlack,
		CrashSteps:           r.steps,
		Converged:            r.last.Converged,
	}
}

// Activities returns the per-activity schedule in input order.
func (r *Run) Activities() []ActivityState {
	out := make([]ActivityState, 0, r.graph.Len())
	for i := range r.graph.activities {
		a := &r.graph.activities[i]
		preds := make([]string, 0, len(r.graph.incoming[i]))
		for _, link := range r.graph.Predecessors(i) {
			preds = append(preds, domain.PredecessorSpec{
				Reference: r.graph.activities[link.From].ID,
				Type:      link.Type,
				Lag:       link.Lag,
			}.String())
		}
		out = append(out, ActivityState{
			ID:               a.ID,
			Name:             a.Name,
			Predecessors:     preds,
			NormalDuration:   a.NormalDuration,
			CrashDuration:    a.CrashDuration,
			CurrentDuration:  a.CurrentDuration,
			NormalCost:       a.NormalCost,
			CrashCost:        a.CrashCost,
			CostPerUnitCrash: a.CostPerUnitCrash,
			MaxCrashTime:     a.MaxCrashTime,
			ES:               a.ES,
			EF:               a.EF,
			LS:               a.LS,
			LF:               a.LF,
			Slack:            a.Slack,
			CrashedTime:      a.CrashedTime,
			CanCrashFurther:  a.CanCrashFurther(),
			IsCritical:       a.IsCritical,
			Issues:           append([]domain.ValidationIssue(nil), a.Issues...),
		})
	}
	return out
}

// IsFinite reports whether v is usable as a number in encoded output.
func IsFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
