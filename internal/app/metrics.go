package app

import (
	"github.com/evanschultz/critpath/internal/schedule"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScheduleComputations counts fresh runs by result (ok, graph_error).
	ScheduleComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "critpath_schedule_computations_total",
			Help: "Total number of schedule computations started from an activity table",
		},
		[]string{"result"},
	)

	// CrashSteps counts crash steps by outcome: crashed or the no-crash reason.
	CrashSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "critpath_crash_steps_total",
			Help: "Total number of crash steps requested",
		},
		[]string{"outcome"},
	)

	// ScheduleWarnings counts non-fatal schedule diagnostics by kind.
	ScheduleWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "critpath_schedule_warnings_total",
			Help: "Total number of schedule warnings reported",
		},
		[]string{"kind"},
	)

	// ProjectDuration tracks the current makespan per project.
	ProjectDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "critpath_project_duration",
			Help: "Current project duration in schedule units",
		},
		[]string{"project_id"},
	)

	// AccumulatedCrashCost tracks the crash cost spent per project.
	AccumulatedCrashCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "critpath_accumulated_crash_cost",
			Help: "Accumulated crash cost of the live run",
		},
		[]string{"project_id"},
	)
)

func init() {
	prometheus.MustRegister(ScheduleComputations)
	prometheus.MustRegister(CrashSteps)
	prometheus.MustRegister(ScheduleWarnings)
	prometheus.MustRegister(ProjectDuration)
	prometheus.MustRegister(AccumulatedCrashCost)
}

func observeComputation(result string) {
	ScheduleComputations.WithLabelValues(result).Inc()
}

func observeSummary(projectID string, summary schedule.Summary) {
	ProjectDuration.WithLabelValues(projectID).Set(summary.CurrentDuration)
	AccumulatedCrashCost.WithLabelValues(projectID).Set(summary.AccumulatedCrashCost)
}

func observeCrashStep(projectID string, res schedule.StepResult, summary schedule.Summary) {
	outcome := "crashed"
	if !res.Crashed {
		outcome = string(res.NoCrash)
	}
	CrashSteps.WithLabelValues(outcome).Inc()
	observeSummary(projectID, summary)
}

func observeWarnings(ws []schedule.Warning) {
	for _, w := range ws {
		ScheduleWarnings.WithLabelValues(string(w.Kind)).Inc()
	}
}
