package schedule

import (
	"fmt"

	"github.com/evanschultz/critpath/internal/domain"
)

// DefaultPassLimitFactor bounds each relaxation at factor × activity count passes.
const DefaultPassLimitFactor = 2

// Engine runs the forward and backward relaxation passes.
type Engine struct {
	PassLimitFactor int
}

// PassResult reports one full forward plus backward computation.
type PassResult struct {
	Makespan       float64
	ForwardPasses  int
	BackwardPasses int
	Converged      bool
	Warnings       []Warning
}

func (e Engine) passLimit(n int) int {
	factor := e.PassLimitFactor
	if factor < 1 {
		factor = DefaultPassLimitFactor
	}
	return factor * n
}

// Compute sweeps the graph to a fixed point, forward then backward. Values reached when
// the pass limit trips are kept and a convergence warning is attached.
func (e Engine) Compute(g *Graph) PassResult {
	var res PassResult
	limit := e.passLimit(g.Len())

	passes, forwardOK := e.forward(g, limit)
	res.ForwardPasses = passes
	if !forwardOK {
		res.Warnings = append(res.Warnings, Warning{
			Kind: WarningConvergence,
			Message: fmt.Sprintf("forward pass did not converge after %d passes; dependencies may be cyclic or inconsistent",
				res.ForwardPasses),
		})
	}

	res.Makespan = Makespan(g)

	passes, backwardOK := e.backward(g, res.Makespan, limit)
	res.BackwardPasses = passes
	if !backwardOK {
		res.Warnings = append(res.Warnings, Warning{
			Kind: WarningConvergence,
			Message: fmt.Sprintf("backward pass did not converge after %d passes; dependencies may be cyclic or inconsistent",
				res.BackwardPasses),
		})
	}
	res.Converged = forwardOK && backwardOK
	return res
}

// forward raises ES until a pass changes nothing.
func (e Engine) forward(g *Graph, limit int) (int, bool) {
	for i := range g.activities {
		a := &g.activities[i]
		a.ES = 0
		a.EF = float64(a.CurrentDuration)
	}
	if g.Len() == 0 {
		return 0, true
	}

	for pass := 1; pass <= limit; pass++ {
		changed := false
		for i := range g.activities {
			a := &g.activities[i]
			candidate := 0.0
			for _, li := range g.incoming[i] {
				if c := earliestStart(g.links[li], &g.activities[g.links[li].From], a); c > candidate {
					candidate = c
				}
			}
			if candidate > a.ES {
				a.ES = candidate
				changed = true
			}
			a.EF = a.ES + float64(a.CurrentDuration)
		}
		if !changed {
			return pass, true
		}
	}
	return limit, false
}

// backward lowers LF, sweeping in reverse input order, until a pass changes nothing.
func (e Engine) backward(g *Graph, makespan float64, limit int) (int, bool) {
	for i := range g.activities {
		a := &g.activities[i]
		a.LF = makespan
		a.LS = makespan - float64(a.CurrentDuration)
	}
	if g.Len() == 0 {
		return 0, true
	}

	for pass := 1; pass <= limit; pass++ {
		changed := false
		for i := len(g.activities) - 1; i >= 0; i-- {
			a := &g.activities[i]
			candidate := a.LF
			for _, li := range g.outgoing[i] {
				if c := latestFinish(g.links[li], &g.activities[g.links[li].To], a); c < candidate {
					candidate = c
				}
			}
			if candidate < a.LF {
				a.LF = candidate
				changed = true
			}
			a.LS = a.LF - float64(a.CurrentDuration)
		}
		if !changed {
			return pass, true
		}
	}
	return limit, false
}

// earliestStart is the ES that link l demands of act.
func earliestStart(l Link, pred, act *domain.Activity) float64 {
	lag := float64(l.Lag)
	dur := float64(act.CurrentDuration)
	switch l.Type {
	case domain.RelationSS:
		return pred.ES + lag
	case domain.RelationFF:
		return pred.EF - dur + lag
	case domain.RelationSF:
		return pred.ES - dur + lag
	default:
		return pred.EF + lag
	}
}

// latestFinish is the LF that link l allows act, its predecessor end.
func latestFinish(l Link, succ, act *domain.Activity) float64 {
	lag := float64(l.Lag)
	dur := float64(act.CurrentDuration)
	switch l.Type {
	case domain.RelationSS:
		return succ.LS - lag + dur
	case domain.RelationFF:
		return succ.LF - lag
	case domain.RelationSF:
		return succ.LF - lag + dur
	default:
		return succ.LS - lag
	}
}

// Makespan returns the maximum EF, or 0 for an empty graph.
func Makespan(g *Graph) float64 {
	makespan := 0.0
	for i := range g.activities {
		if ef := g.activities[i].EF; ef > makespan {
			makespan = ef
		}
	}
	return makespan
}
