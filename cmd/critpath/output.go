package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/domain"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	criticalStyle = cellStyle.Foreground(lipgloss.Color("204"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle    = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// writeSchedule prints the summary line, critical path and activity table of a schedule.
func writeSchedule(w io.Writer, view app.ScheduleView) {
	sum := view.Summary
	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (start %s)", view.ProjectName, view.StartDate)))
	_, _ = fmt.Fprintf(w, "duration %s (initial %s) • cost %s • crash cost %s • steps %d\n",
		formatNumber(sum.CurrentDuration),
		formatNumber(sum.InitialDuration),
		formatMoney(sum.CurrentTotalCost),
		formatMoney(sum.AccumulatedCrashCost),
		sum.CrashSteps,
	)
	critical := "none"
	if len(sum.CriticalActivityIDs) > 0 {
		critical = strings.Join(sum.CriticalActivityIDs, " → ")
	}
	_, _ = fmt.Fprintf(w, "critical path: %s\n", critical)

	rows := make([][]string, 0, len(view.Activities))
	for _, a := range view.Activities {
		crashRate := "-"
		if a.CostPerUnitCrash != nil {
			crashRate = formatMoney(*a.CostPerUnitCrash)
		}
		flag := ""
		if a.IsCritical {
			flag = "*"
		}
		rows = append(rows, []string{
			a.ID,
			a.Name,
			strings.Join(a.Predecessors, ","),
			fmt.Sprintf("%d/%d", a.CurrentDuration, a.NormalDuration),
			crashRate,
			formatNumber(a.ES),
			formatNumber(a.EF),
			formatNumber(a.LS),
			formatNumber(a.LF),
			formatNumber(a.Slack),
			strconv.Itoa(a.CrashedTime),
			flag,
			a.StartDate,
			a.FinishDate,
		})
	}
	activities := view.Activities
	t := newTable("ID", "Name", "Preds", "Dur", "Crash/u", "ES", "EF", "LS", "LF", "Slack", "Crashed", "Crit", "Start", "Finish").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(activities) && activities[row].IsCritical {
				return criticalStyle
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(w, t.Render())

	for _, warn := range view.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warn.Message)
	}
	for _, a := range view.Activities {
		for _, issue := range a.Issues {
			_, _ = fmt.Fprintf(w, "invalid %s.%s: %s\n", a.ID, issue.Field, issue.Message)
		}
	}
}

// writeCrashBatch prints one line per crash step followed by the resulting schedule.
func writeCrashBatch(w io.Writer, batch app.CrashBatch) {
	for i, step := range batch.Steps {
		_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, step.Message)
	}
	if batch.Stopped() {
		_, _ = fmt.Fprintf(w, "stopped: %s\n", batch.Steps[len(batch.Steps)-1].NoCrashPossible)
	}
	_, _ = fmt.Fprintln(w)
	writeSchedule(w, batch.Schedule)
}

func writeProjectTable(w io.Writer, projects []domain.Project) {
	if len(projects) == 0 {
		_, _ = fmt.Fprintln(w, "no projects")
		return
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		archived := ""
		if p.ArchivedAt != nil {
			archived = p.ArchivedAt.UTC().Format(domain.StartDateLayout)
		}
		rows = append(rows, []string{p.ID, p.Slug, p.Name, formatStartDate(p), archived})
	}
	t := newTable("ID", "Slug", "Name", "Start", "Archived").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(w, t.Render())
}

func writeProjectDetail(w io.Writer, project domain.Project, rows []domain.ActivityInput) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(project.Name))
	_, _ = fmt.Fprintf(w, "id: %s\nslug: %s\nstart: %s\n", project.ID, project.Slug, formatStartDate(project))
	if project.Description != "" {
		_, _ = fmt.Fprintf(w, "description: %s\n", project.Description)
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "no activities")
		return
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.ID, r.Name, strings.Join(r.Predecessors, ","),
			r.NormalDuration, r.NormalCost, r.CrashDuration, r.CrashCost,
		})
	}
	t := newTable("ID", "Name", "Preds", "Normal dur", "Normal cost", "Crash dur", "Crash cost").
		Rows(cells...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(w, t.Render())
}

func formatStartDate(p domain.Project) string {
	if p.StartDate == nil {
		return "-"
	}
	return p.StartDate.UTC().Format(domain.StartDateLayout)
}

// formatNumber prints integral values without decimals.
func formatNumber(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "-"
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
