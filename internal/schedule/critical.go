package schedule

import (
	"fmt"
	"math"
)

// DefaultEpsilon is the slack tolerance for marking an activity critical.
const DefaultEpsilon = 0.001

// Analysis is the slack and critical set derived from a computed schedule.
type Analysis struct {
	MinSlack float64
	Critical []int
	Warnings []Warning
}

// Analyze sets Slack and IsCritical on every activity. Activities within epsilon of the
// minimum slack are critical, so parallel critical paths are all flagged.
func Analyze(g *Graph, epsilon float64) Analysis {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	var out Analysis
	if g.Len() == 0 {
		return out
	}

	out.MinSlack = math.Inf(1)
	for i := range g.activities {
		a := &g.activities[i]
		a.Slack = a.LS - a.ES
		if a.Slack < out.MinSlack {
			out.MinSlack = a.Slack
		}
	}

	for i := range g.activities {
		a := &g.activities[i]
		a.IsCritical = a.Slack-out.MinSlack < epsilon
		if a.IsCritical {
			out.Critical = append(out.Critical, i)
		}
		if a.Slack < -epsilon {
			out.Warnings = append(out.Warnings, Warning{
				Kind:       WarningNegativeSlack,
				ActivityID: a.ID,
				Message:    fmt.Sprintf("slack %s is negative; the schedule is infeasible", formatUnits(a.Slack)),
			})
		}
	}
	return out
}
