package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/critpath/internal/domain"
)

// reportEventLimit bounds the run log read for one report.
const reportEventLimit = 1000

// Report renders the live run of a project as markdown.
func (s *Service) Report(ctx context.Context, projectID string) (string, error) {
	view, err := s.Schedule(ctx, projectID)
	if err != nil {
		return "", err
	}
	events, err := s.repo.ListRunEvents(ctx, view.ProjectID, reportEventLimit)
	if err != nil {
		return "", err
	}
	runEvents := make([]domain.RunEvent, 0, len(events))
	for _, ev := range events {
		if ev.RunID == view.RunID {
			runEvents = append(runEvents, ev)
		}
	}
	return RenderReport(view, runEvents, s.clock()), nil
}

// RenderReport formats a schedule and its run log as a markdown document.
func RenderReport(view ScheduleView, events []domain.RunEvent, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Crash Report: %s\n\n", view.ProjectName)
	fmt.Fprintf(&b, "Generated %s. Start date %s.\n\n", now.UTC().Format(time.RFC3339), view.StartDate)

	sum := view.Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Initial duration | %s |\n", formatUnits(sum.InitialDuration))
	fmt.Fprintf(&b, "| Current duration | %s |\n", formatUnits(sum.CurrentDuration))
	fmt.Fprintf(&b, "| Initial cost | %.2f |\n", sum.InitialCost)
	fmt.Fprintf(&b, "| Accumulated crash cost | %.2f |\n", sum.AccumulatedCrashCost)
	fmt.Fprintf(&b, "| Current total cost | %.2f |\n", sum.CurrentTotalCost)
	fmt.Fprintf(&b, "| Crash steps | %d |\n", sum.CrashSteps)
	critical := strings.Join(sum.CriticalActivityIDs, ", ")
	if critical == "" {
		critical = "none"
	}
	fmt.Fprintf(&b, "| Critical activities | %s |\n\n", critical)

	b.WriteString("## Activities\n\n")
	b.WriteString("| ID | Name | Duration | ES | EF | LS | LF | Slack | Crashed | Critical | Start | Finish |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, a := range view.Activities {
		crit := ""
		if a.IsCritical {
			crit = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s | %s | %s | %s | %d | %s | %s | %s |\n",
			escapeCell(a.ID), escapeCell(a.Name), a.CurrentDuration,
			formatUnits(a.ES), formatUnits(a.EF), formatUnits(a.LS), formatUnits(a.LF), formatUnits(a.Slack),
			a.CrashedTime, crit, a.StartDate, a.FinishDate)
	}

	if len(view.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range view.Warnings {
			if w.ActivityID != "" {
				fmt.Fprintf(&b, "- **%s** (%s): %s\n", w.Kind, w.ActivityID, w.Message)
				continue
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", w.Kind, w.Message)
		}
	}

	b.WriteString("\n## Run Log\n\n")
	if len(events) == 0 {
		b.WriteString("No events recorded.\n")
		return b.String()
	}
	for _, ev := range events {
		fmt.Fprintf(&b, "%d. `%s` %s\n", ev.Sequence, ev.Kind, ev.Message)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
