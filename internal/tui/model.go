package tui

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/domain"
)

// runLogLimit bounds the run log entries fetched for the log view.
const runLogLimit = 200

// Service represents service data used by this package.
type Service interface {
	ListProjects(context.Context, bool) ([]domain.Project, error)
	Schedule(context.Context, string) (app.ScheduleView, error)
	ComputeSchedule(context.Context, string) (app.ScheduleView, error)
	CrashStep(context.Context, string) (app.CrashOutcome, error)
	ResetSchedule(context.Context, string) (app.ScheduleView, error)
	ListRunEvents(context.Context, string, int) ([]domain.RunEvent, error)
	Report(context.Context, string) (string, error)
	CreateSampleProject(context.Context) (domain.Project, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeConfirmReset
	modeReport
	modeRunLog
)

// Model is the bubbletea model for the schedule screen.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	confirmReset bool
	showTimeline bool
	copyText     ClipboardWriter

	projects         []domain.Project
	selectedProject  int
	pendingProjectID string

	view        *app.ScheduleView
	scheduleErr error
	selectedRow int

	mode         inputMode
	report       string
	reportScroll int
	markdown     *markdownRenderer
	events       []domain.RunEvent
	logScroll    int
}

// loadedMsg carries message data through update handling.
type loadedMsg struct {
	projects    []domain.Project
	selected    int
	view        *app.ScheduleView
	scheduleErr error
	err         error
}

// actionMsg carries the result of one schedule action.
type actionMsg struct {
	err       error
	status    string
	view      *app.ScheduleView
	projectID string
	reload    bool
}

// reportMsg carries one rendered markdown report.
type reportMsg struct {
	markdown    string
	toClipboard bool
	err         error
}

// runLogMsg carries run log entries for the active run.
type runLogMsg struct {
	events []domain.RunEvent
	err    error
}

// copiedMsg reports the clipboard write result.
type copiedMsg struct {
	err error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:          svc,
		status:       "loading...",
		help:         h,
		keys:         newKeyMap(),
		confirmReset: true,
		showTimeline: true,
		copyText:     DefaultClipboardWriter(),
		markdown:     &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.projects = msg.projects
		m.selectedProject = msg.selected
		m.pendingProjectID = ""
		m.view = msg.view
		m.scheduleErr = msg.scheduleErr
		m.clampRow()
		if len(m.projects) == 0 {
			m.status = "no projects"
			return m, nil
		}
		if m.status == "" || strings.HasSuffix(m.status, "...") {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.view != nil {
			m.view = msg.view
			m.scheduleErr = nil
			m.clampRow()
		}
		if msg.projectID != "" {
			m.pendingProjectID = msg.projectID
		}
		if msg.reload {
			return m, m.loadData
		}
		return m, nil

	case reportMsg:
		if msg.err != nil {
			m.status = "report failed: " + msg.err.Error()
			return m, nil
		}
		m.report = msg.markdown
		if msg.toClipboard {
			return m, m.copyCmd(msg.markdown)
		}
		m.mode = modeReport
		m.reportScroll = 0
		m.status = "report"
		return m, nil

	case runLogMsg:
		if msg.err != nil {
			m.status = "run log unavailable: " + msg.err.Error()
			return m, nil
		}
		m.events = msg.events
		m.logScroll = 0
		m.mode = modeRunLog
		m.status = fmt.Sprintf("%d run log entries", len(msg.events))
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "report copied to clipboard"
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		return m, nil
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// loadData lists projects and reads the live schedule of the selected one.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	projects, err := m.svc.ListProjects(ctx, false)
	if err != nil {
		return loadedMsg{err: err}
	}
	out := loadedMsg{projects: projects}
	if len(projects) == 0 {
		return out
	}
	out.selected = m.projectIndexIn(projects)
	view, err := m.svc.Schedule(ctx, projects[out.selected].ID)
	if err != nil {
		out.scheduleErr = err
		return out
	}
	out.view = &view
	return out
}

// projectIndexIn resolves the pending or current project within a fresh project list.
func (m Model) projectIndexIn(projects []domain.Project) int {
	want := m.pendingProjectID
	if want == "" {
		if project, ok := m.currentProject(); ok {
			want = project.ID
		}
	}
	for idx, project := range projects {
		if project.ID == want {
			return idx
		}
	}
	return 0
}

// currentProject returns the selected project.
func (m Model) currentProject() (domain.Project, bool) {
	if len(m.projects) == 0 {
		return domain.Project{}, false
	}
	return m.projects[clamp(m.selectedProject, 0, len(m.projects)-1)], true
}

// handleNormalModeKey handles keys on the schedule screen.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		if m.help.ShowAll {
			m.status = "help"
		} else {
			m.status = "ready"
		}
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.help.ShowAll {
			m.help.ShowAll = false
			m.status = "ready"
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.sample):
		m.status = "creating sample project..."
		return m, m.sampleCmd()
	}

	project, ok := m.currentProject()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.moveUp):
		m.selectedRow--
		m.clampRow()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedRow++
		m.clampRow()
		return m, nil
	case key.Matches(msg, m.keys.nextProject):
		return m.switchProject(1)
	case key.Matches(msg, m.keys.prevProject):
		return m.switchProject(-1)
	case key.Matches(msg, m.keys.crash):
		m.status = "crashing..."
		return m, m.crashCmd(project.ID)
	case key.Matches(msg, m.keys.reset):
		if m.confirmReset {
			m.mode = modeConfirmReset
			m.status = "confirm reset"
			return m, nil
		}
		m.status = "resetting..."
		return m, m.resetCmd(project.ID)
	case key.Matches(msg, m.keys.recompute):
		m.status = "recomputing..."
		return m, m.recomputeCmd(project.ID)
	case key.Matches(msg, m.keys.report):
		return m, m.reportCmd(project.ID, false)
	case key.Matches(msg, m.keys.copyReport):
		return m, m.reportCmd(project.ID, true)
	case key.Matches(msg, m.keys.runLog):
		return m, m.runLogCmd(project.ID)
	default:
		return m, nil
	}
}

// handleModeKey handles keys inside the confirm, report and run log screens.
func (m Model) handleModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modeConfirmReset:
		switch msg.String() {
		case "y", "enter":
			m.mode = modeNone
			project, ok := m.currentProject()
			if !ok {
				return m, nil
			}
			m.status = "resetting..."
			return m, m.resetCmd(project.ID)
		case "n", "esc":
			m.mode = modeNone
			m.status = "cancelled"
			return m, nil
		default:
			return m, nil
		}

	case modeReport:
		switch {
		case key.Matches(msg, m.keys.back), msg.String() == "q":
			m.mode = modeNone
			m.status = "ready"
			return m, nil
		case key.Matches(msg, m.keys.moveDown):
			m.reportScroll++
			return m, nil
		case key.Matches(msg, m.keys.moveUp):
			m.reportScroll = max(0, m.reportScroll-1)
			return m, nil
		case key.Matches(msg, m.keys.copyReport):
			return m, m.copyCmd(m.report)
		default:
			return m, nil
		}

	case modeRunLog:
		switch {
		case key.Matches(msg, m.keys.back), msg.String() == "q":
			m.mode = modeNone
			m.status = "ready"
			return m, nil
		case key.Matches(msg, m.keys.moveDown):
			m.logScroll = clamp(m.logScroll+1, 0, max(0, len(m.events)-1))
			return m, nil
		case key.Matches(msg, m.keys.moveUp):
			m.logScroll = max(0, m.logScroll-1)
			return m, nil
		default:
			return m, nil
		}
	}
	return m, nil
}

// switchProject moves the project selection by delta and reloads.
func (m Model) switchProject(delta int) (tea.Model, tea.Cmd) {
	if len(m.projects) < 2 {
		return m, nil
	}
	m.selectedProject = wrapIndex(m.selectedProject, delta, len(m.projects))
	m.pendingProjectID = m.projects[m.selectedProject].ID
	m.selectedRow = 0
	m.view = nil
	m.scheduleErr = nil
	m.status = "loading " + m.projects[m.selectedProject].Name
	return m, m.loadData
}

func (m Model) crashCmd(projectID string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		outcome, err := m.svc.CrashStep(ctx, projectID)
		if err != nil {
			return actionMsg{err: err}
		}
		view, err := m.svc.Schedule(ctx, projectID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: outcome.Message, view: &view}
	}
}

func (m Model) resetCmd(projectID string) tea.Cmd {
	return func() tea.Msg {
		view, err := m.svc.ResetSchedule(context.Background(), projectID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "all activities reset to normal duration", view: &view}
	}
}

func (m Model) recomputeCmd(projectID string) tea.Cmd {
	return func() tea.Msg {
		view, err := m.svc.ComputeSchedule(context.Background(), projectID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "schedule recomputed", view: &view}
	}
}

func (m Model) sampleCmd() tea.Cmd {
	return func() tea.Msg {
		project, err := m.svc.CreateSampleProject(context.Background())
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "sample project created", projectID: project.ID, reload: true}
	}
}

func (m Model) reportCmd(projectID string, toClipboard bool) tea.Cmd {
	return func() tea.Msg {
		markdown, err := m.svc.Report(context.Background(), projectID)
		return reportMsg{markdown: markdown, toClipboard: toClipboard, err: err}
	}
}

func (m Model) runLogCmd(projectID string) tea.Cmd {
	runID := ""
	if m.view != nil {
		runID = m.view.RunID
	}
	return func() tea.Msg {
		events, err := m.svc.ListRunEvents(context.Background(), projectID, runLogLimit)
		if err != nil {
			return runLogMsg{err: err}
		}
		out := make([]domain.RunEvent, 0, len(events))
		for _, ev := range events {
			if runID == "" || ev.RunID == runID {
				out = append(out, ev)
			}
		}
		return runLogMsg{events: out}
	}
}

func (m Model) copyCmd(text string) tea.Cmd {
	write := m.copyText
	return func() tea.Msg {
		if strings.TrimSpace(text) == "" {
			return copiedMsg{err: fmt.Errorf("report is empty")}
		}
		return copiedMsg{err: write(text)}
	}
}

// clampRow keeps the activity cursor inside the loaded table.
func (m *Model) clampRow() {
	if m.view == nil || len(m.view.Activities) == 0 {
		m.selectedRow = 0
		return
	}
	m.selectedRow = clamp(m.selectedRow, 0, len(m.view.Activities)-1)
}

// render builds the full screen content.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress ctrl+r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	var body string
	header := titleStyle.Render("critpath")
	project, ok := m.currentProject()
	switch {
	case !ok:
		body = strings.Join([]string{
			"No projects yet.",
			"Press S to load the sample project,",
			"or run `critpath import --file activities.csv`.",
			"Press q to quit.",
		}, "\n")
	case m.mode == modeReport:
		header += "  " + project.Name + statusStyle.Render("  [report]")
		body = m.renderReport()
	case m.mode == modeRunLog:
		header += "  " + project.Name + statusStyle.Render("  [run log]")
		body = m.renderRunLog()
	default:
		header += "  " + project.Name
		body = m.renderProjectTabs() + "\n\n" + m.renderSchedule()
	}

	sections := []string{header, "", body}
	if m.mode == modeConfirmReset {
		confirm := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1).
			Render("Reset every activity to its normal duration? [y]es / [n]o")
		sections = append(sections, "", confirm)
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// renderProjectTabs renders one tab per project with the selection highlighted.
func (m Model) renderProjectTabs() string {
	active := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Underline(true)
	inactive := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tabs := make([]string, 0, len(m.projects))
	for idx, project := range m.projects {
		name := truncate(project.Name, 24)
		if idx == m.selectedProject {
			tabs = append(tabs, active.Render(name))
			continue
		}
		tabs = append(tabs, inactive.Render(name))
	}
	return strings.Join(tabs, "  │  ")
}

// renderSchedule renders the summary, the activity table and warnings.
func (m Model) renderSchedule() string {
	if m.scheduleErr != nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("cannot schedule: "+m.scheduleErr.Error()) +
			"\n\nFix the activity table and press r to recompute."
	}
	if m.view == nil {
		return "loading schedule..."
	}
	view := m.view
	sum := view.Summary

	summaryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	criticalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("62"))
	subStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warningStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	lines := []string{
		summaryStyle.Render(fmt.Sprintf(
			"duration %s (initial %s)  •  cost %s (initial %s)  •  crash cost %s  •  steps %d",
			formatNumber(sum.CurrentDuration), formatNumber(sum.InitialDuration),
			formatMoney(sum.CurrentTotalCost), formatMoney(sum.InitialCost),
			formatMoney(sum.AccumulatedCrashCost), sum.CrashSteps,
		)),
		subStyle.Render("critical path: " + strings.Join(sum.CriticalActivityIDs, " → ")),
		"",
	}

	timeline := m.showTimeline && view.StartDate != ""
	lines = append(lines, subStyle.Render(tableRow(timeline, "", "ID", "Activity", "Dur", "ES", "EF", "LS", "LF", "Slack", "Crash", "Start", "Finish")))
	for idx, act := range view.Activities {
		marker := " "
		if act.IsCritical {
			marker = "*"
		}
		row := tableRow(timeline,
			marker,
			act.ID,
			act.Name,
			strconv.Itoa(act.CurrentDuration),
			formatNumber(act.ES),
			formatNumber(act.EF),
			formatNumber(act.LS),
			formatNumber(act.LF),
			formatNumber(act.Slack),
			fmt.Sprintf("%d/%d", act.CrashedTime, act.NormalDuration-act.CrashDuration),
			act.StartDate,
			act.FinishDate,
		)
		switch {
		case idx == m.selectedRow:
			row = selectedStyle.Render(row)
		case act.IsCritical:
			row = criticalStyle.Render(row)
		}
		lines = append(lines, row)
	}

	if m.selectedRow < len(view.Activities) {
		act := view.Activities[m.selectedRow]
		preds := "none"
		if len(act.Predecessors) > 0 {
			preds = strings.Join(act.Predecessors, ", ")
		}
		perUnit := "n/a"
		if act.CostPerUnitCrash != nil {
			perUnit = formatMoney(*act.CostPerUnitCrash)
		}
		lines = append(lines, "", subStyle.Render(fmt.Sprintf(
			"%s  •  predecessors %s  •  normal %d @ %s  •  crash %d @ %s  •  cost/unit %s",
			act.Name, preds, act.NormalDuration, formatMoney(act.NormalCost),
			act.CrashDuration, formatMoney(act.CrashCost), perUnit,
		)))
		for _, issue := range act.Issues {
			lines = append(lines, warningStyle.Render("! "+issue.Field+": "+issue.Message))
		}
	}

	for _, w := range view.Warnings {
		lines = append(lines, warningStyle.Render("! "+w.Message))
	}
	return strings.Join(lines, "\n")
}

// renderReport renders the markdown report through glamour, windowed by the scroll offset.
func (m Model) renderReport() string {
	rendered := m.markdown.render(m.report, max(24, m.width-4))
	lines := strings.Split(rendered, "\n")
	start := clamp(m.reportScroll, 0, max(0, len(lines)-1))
	return strings.Join(lines[start:], "\n")
}

// renderRunLog renders run log entries oldest first.
func (m Model) renderRunLog() string {
	if len(m.events) == 0 {
		return "No run log entries."
	}
	subStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events[clamp(m.logScroll, 0, len(m.events)-1):] {
		lines = append(lines, fmt.Sprintf("%3d. %-8s %s %s",
			ev.Sequence, string(ev.Kind), ev.Message,
			subStyle.Render(fmt.Sprintf("(duration %s, total %s)", formatNumber(ev.ProjectDuration), formatMoney(ev.TotalCost))),
		))
	}
	return strings.Join(lines, "\n")
}

// tableRow lays out one fixed-width schedule row; the timeline columns are optional.
func tableRow(timeline bool, cells ...string) string {
	widths := []int{1, 6, 24, 4, 6, 6, 6, 6, 6, 6, 10, 10}
	if !timeline {
		cells = cells[:10]
	}
	parts := make([]string, 0, len(cells))
	for idx, cell := range cells {
		w := widths[idx]
		cell = truncate(cell, w)
		if idx >= 3 && idx <= 9 {
			parts = append(parts, fmt.Sprintf("%*s", w, cell))
			continue
		}
		parts = append(parts, fmt.Sprintf("%-*s", w, cell))
	}
	return strings.Join(parts, " ")
}

// formatNumber prints whole values without decimals.
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

// wrapIndex wraps an index into [0,total).
func wrapIndex(current int, delta int, total int) int {
	if total <= 0 {
		return 0
	}
	next := current + delta
	for next < 0 {
		next += total
	}
	for next >= total {
		next -= total
	}
	return next
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or trims content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
