package app

import (
	"time"

	"github.com/evanschultz/critpath/internal/domain"
	"github.com/evanschultz/critpath/internal/schedule"
)

// IssueView is one activity validation issue.
type IssueView struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WarningView is one non-fatal schedule diagnostic.
type WarningView struct {
	Kind       string `json:"kind"`
	ActivityID string `json:"activity_id,omitempty"`
	Message    string `json:"message"`
}

// ActivityView is the per-activity schedule output.
type ActivityView struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Predecessors     []string    `json:"predecessors"`
	NormalDuration   int         `json:"normal_duration"`
	CrashDuration    int         `json:"crash_duration"`
	CurrentDuration  int         `json:"current_duration"`
	NormalCost       float64     `json:"normal_cost"`
	CrashCost        float64     `json:"crash_cost"`
	CostPerUnitCrash *float64    `json:"cost_per_unit_crash"`
	ES               float64     `json:"es"`
	EF               float64     `json:"ef"`
	LS               float64     `json:"ls"`
	LF               float64     `json:"lf"`
	Slack            float64     `json:"slack"`
	CrashedTime      int         `json:"crashed_time"`
	CanCrashFurther  bool        `json:"can_crash_further"`
	IsCritical       bool        `json:"is_critical"`
	StartDate        string      `json:"start_date,omitempty"`
	FinishDate       string      `json:"finish_date,omitempty"`
	Issues           []IssueView `json:"issues,omitempty"`
}

// SummaryView is the project aggregate.
type SummaryView struct {
	InitialDuration      float64  `json:"initial_duration"`
	InitialCost          float64  `json:"initial_cost"`
	CurrentDuration      float64  `json:"current_duration"`
	CurrentTotalCost     float64  `json:"current_total_cost"`
	AccumulatedCrashCost float64  `json:"accumulated_crash_cost"`
	CriticalActivityIDs  []string `json:"critical_activity_ids"`
	MinSlack             float64  `json:"min_slack"`
	CrashSteps           int      `json:"crash_steps"`
	Converged            bool     `json:"converged"`
}

// ScheduleView is everything presentation layers need for one project schedule.
type ScheduleView struct {
	ProjectID   string         `json:"project_id"`
	ProjectName string         `json:"project_name"`
	RunID       string         `json:"run_id"`
	StartDate   string         `json:"start_date"`
	Summary     SummaryView    `json:"summary"`
	Activities  []ActivityView `json:"activities"`
	Warnings    []WarningView  `json:"warnings,omitempty"`
	ComputedAt  time.Time      `json:"computed_at"`
}

// CrashOutcome is the result of one crash step.
type CrashOutcome struct {
	Crashed            bool    `json:"crashed"`
	ActivityID         string  `json:"activity_id,omitempty"`
	ActivityName       string  `json:"activity_name,omitempty"`
	UnitsCrashed       int     `json:"units_crashed,omitempty"`
	CostAdded          float64 `json:"cost_added"`
	NewProjectDuration float64 `json:"new_project_duration"`
	NoCrashPossible    string  `json:"no_crash_possible,omitempty"`
	Message            string  `json:"message"`
}

// CrashBatch is the result of a multi-step crash request.
type CrashBatch struct {
	Steps    []CrashOutcome `json:"steps"`
	Schedule ScheduleView   `json:"schedule"`
}

// Stopped reports whether the batch ended on a no-crash outcome.
func (b CrashBatch) Stopped() bool {
	return len(b.Steps) > 0 && !b.Steps[len(b.Steps)-1].Crashed
}

func crashOutcomeFromStep(res schedule.StepResult) CrashOutcome {
	return CrashOutcome{
		Crashed:            res.Crashed,
		ActivityID:         res.ActivityID,
		ActivityName:       res.ActivityName,
		UnitsCrashed:       res.UnitsCrashed,
		CostAdded:          res.CostAdded,
		NewProjectDuration: res.NewProjectDuration,
		NoCrashPossible:    string(res.NoCrash),
		Message:            res.Message,
	}
}

func warningViews(ws []schedule.Warning) []WarningView {
	if len(ws) == 0 {
		return nil
	}
	out := make([]WarningView, 0, len(ws))
	for _, w := range ws {
		out = append(out, WarningView{Kind: string(w.Kind), ActivityID: w.ActivityID, Message: w.Message})
	}
	return out
}

// buildScheduleView maps a run onto its presentation shape. Calendar dates are start
// plus whole ES/EF days.
func buildScheduleView(project domain.Project, runID string, run *schedule.Run, start time.Time, now time.Time) ScheduleView {
	summary := run.Summary()
	view := ScheduleView{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		RunID:       runID,
		StartDate:   start.Format(domain.StartDateLayout),
		Summary: SummaryView{
			InitialDuration:      summary.InitialDuration,
			InitialCost:          summary.InitialCost,
			CurrentDuration:      summary.CurrentDuration,
			CurrentTotalCost:     summary.CurrentTotalCost,
			AccumulatedCrashCost: summary.AccumulatedCrashCost,
			CriticalActivityIDs:  summary.CriticalActivityIDs,
			MinSlack:             summary.MinSlack,
			CrashSteps:           summary.CrashSteps,
			Converged:            summary.Converged,
		},
		Warnings:   warningViews(run.Warnings()),
		ComputedAt: now.UTC(),
	}
	if view.Summary.CriticalActivityIDs == nil {
		view.Summary.CriticalActivityIDs = []string{}
	}

	states := run.Activities()
	view.Activities = make([]ActivityView, 0, len(states))
	for _, s := range states {
		av := ActivityView{
			ID:              s.ID,
			Name:            s.Name,
			Predecessors:    s.Predecessors,
			NormalDuration:  s.NormalDuration,
			CrashDuration:   s.CrashDuration,
			CurrentDuration: s.CurrentDuration,
			NormalCost:      s.NormalCost,
			CrashCost:       s.CrashCost,
			ES:              s.ES,
			EF:              s.EF,
			LS:              s.LS,
			LF:              s.LF,
			Slack:           s.Slack,
			CrashedTime:     s.CrashedTime,
			CanCrashFurther: s.CanCrashFurther,
			IsCritical:      s.IsCritical,
		}
		if s.MaxCrashTime > 0 && schedule.IsFinite(s.CostPerUnitCrash) {
			cost := s.CostPerUnitCrash
			av.CostPerUnitCrash = &cost
		}
		if schedule.IsFinite(s.ES) && schedule.IsFinite(s.EF) {
			av.StartDate = domain.AddDays(start, s.ES).Format(domain.StartDateLayout)
			av.FinishDate = domain.AddDays(start, s.EF).Format(domain.StartDateLayout)
		}
		for _, issue := range s.Issues {
			av.Issues = append(av.Issues, IssueView{Field: issue.Field, Message: issue.Message})
		}
		view.Activities = append(view.Activities, av)
	}
	return view
}

// Activity returns the view for id, if present.
func (v ScheduleView) Activity(id string) (ActivityView, bool) {
	for _, a := range v.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return ActivityView{}, false
}
