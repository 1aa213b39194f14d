package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/critpath/internal/domain"
	"github.com/evanschultz/critpath/internal/schedule"
)

// DefaultMaxCrashSteps caps a single multi-step crash request.
const DefaultMaxCrashSteps = 100

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	CriticalEpsilon  float64
	PassLimitFactor  int
	MaxCrashSteps    int
	DefaultStartDate *time.Time
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Option customizes a Service.
type Option func(*Service)

// WithLogger routes service events to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service coordinates persistence and the schedule engine. Each project has at most one
// live run; operations on the same project are serialized.
type Service struct {
	repo   Repository
	idGen  IDGenerator
	clock  Clock
	cfg    ServiceConfig
	logger Logger

	mu   sync.Mutex
	runs map[string]*projectRun
}

// projectRun holds the live run for one project. mu serializes every engine call.
type projectRun struct {
	mu       sync.Mutex
	runID    string
	run      *schedule.Run
	sequence int
}

// discard drops the live run so the next call starts from normal durations. Caller holds mu.
func (pr *projectRun) discard() {
	pr.run = nil
	pr.runID = ""
	pr.sequence = 0
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig, opts ...Option) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.CriticalEpsilon <= 0 {
		cfg.CriticalEpsilon = schedule.DefaultEpsilon
	}
	if cfg.PassLimitFactor < 1 {
		cfg.PassLimitFactor = schedule.DefaultPassLimitFactor
	}
	if cfg.MaxCrashSteps < 1 {
		cfg.MaxCrashSteps = DefaultMaxCrashSteps
	}

	s := &Service{
		repo:   repo,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: nopLogger{},
		runs:   map[string]*projectRun{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	Name        string
	Description string
	StartDate   *time.Time
}

// UpdateProjectInput holds input values for update project operations.
type UpdateProjectInput struct {
	ProjectID   string
	Name        string
	Description string
	StartDate   *time.Time
}

// CreateProject creates a project with an empty activity table.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	now := s.clock()
	project, err := domain.NewProject(s.idGen(), in.Name, in.Description, now)
	if err != nil {
		return domain.Project{}, err
	}
	if in.StartDate != nil {
		project.SetStartDate(in.StartDate, now)
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	s.logger.Info("project created", "project_id", project.ID, "name", project.Name)
	return project, nil
}

// UpdateProject updates name, description and start date.
func (s *Service) UpdateProject(ctx context.Context, in UpdateProjectInput) (domain.Project, error) {
	project, err := s.repo.GetProject(ctx, in.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	now := s.clock()
	if err := project.UpdateDetails(in.Name, in.Description, now); err != nil {
		return domain.Project{}, err
	}
	project.SetStartDate(in.StartDate, now)
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ArchiveProject archives a project and drops its live run.
func (s *Service) ArchiveProject(ctx context.Context, projectID string) (domain.Project, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	// Steps already in flight finish before the run is discarded.
	pr := s.projectRun(project.ID)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	project.Archive(s.clock())
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	pr.discard()
	return project, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return s.repo.GetProject(ctx, strings.TrimSpace(projectID))
}

// ListProjects lists projects.
func (s *Service) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx, includeArchived)
}

// ListActivities returns the raw activity table of a project in input order.
func (s *Service) ListActivities(ctx context.Context, projectID string) ([]domain.ActivityInput, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, projectID)
}

// SaveActivities replaces the activity table and discards the live run.
func (s *Service) SaveActivities(ctx context.Context, projectID string, rows []domain.ActivityInput) error {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	pr := s.projectRun(projectID)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	rows = normalizeRows(rows)
	if err := s.repo.ReplaceActivities(ctx, projectID, rows); err != nil {
		return fmt.Errorf("replace activities: %w", err)
	}
	pr.discard()
	s.logger.Info("activities saved", "project_id", projectID, "count", len(rows))
	return nil
}

// ComputeSchedule starts a fresh run from the persisted activity table.
func (s *Service) ComputeSchedule(ctx context.Context, projectID string) (ScheduleView, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return ScheduleView{}, err
	}
	pr := s.projectRun(project.ID)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if err := s.startRun(ctx, project, pr); err != nil {
		return ScheduleView{}, err
	}
	return s.viewLocked(project, pr), nil
}

// Schedule returns the live schedule, computing it first when no run exists.
func (s *Service) Schedule(ctx context.Context, projectID string) (ScheduleView, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return ScheduleView{}, err
	}
	pr := s.projectRun(project.ID)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.run == nil {
		if err := s.startRun(ctx, project, pr); err != nil {
			return ScheduleView{}, err
		}
	}
	return s.viewLocked(project, pr), nil
}

// CrashStep performs exactly one crash step on the live run.
func (s *Service) CrashStep(ctx context.Context, projectID string) (CrashOutcome, error) {
	batch, err := s.CrashSteps(ctx, projectID, 1)
	if err != nil {
		return CrashOutcome{}, err
	}
	return batch.Steps[0], nil
}

// CrashSteps drives up to n one-unit crash steps and stops early on a no-crash outcome
// or context cancellation.
func (s *Service) CrashSteps(ctx context.Context, projectID string, n int) (CrashBatch, error) {
	if n < 1 || n > s.cfg.MaxCrashSteps {
		return CrashBatch{}, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidStepCount, n, s.cfg.MaxCrashSteps)
	}
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return CrashBatch{}, err
	}
	pr := s.projectRun(project.ID)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.run == nil {
		if err := s.startRun(ctx, project, pr); err != nil {
			return CrashBatch{}, err
		}
	}

	var batch CrashBatch
	for range n {
		if err := ctx.Err(); err != nil {
			if len(batch.Steps) == 0 {
				return CrashBatch{}, err
			}
			break
		}
		res := pr.run.CrashStep()
		outcome := crashOutcomeFromStep(res)
		batch.Steps = append(batch.Steps, outcome)
		observeCrashStep(project.ID, res, pr.run.Summary())
		observeWarnings(res.Warnings)

		if err := s.recordStep(ctx, project, pr, res); err != nil {
			return CrashBatch{}, err
		}
		if !res.Crashed {
			s.logger.Info("no crash possible", "project_id", project.ID, "reason", string(res.NoCrash))
			break
		}
		s.logger.Debug("activity crashed",
			"project_id", project.ID,
			"activity_id", res.ActivityID,
			"cost_added", res.CostAdded,
			"project_duration", res.NewProjectDuration,
		)
		s.logWarnings(project.ID, res.Warnings)
	}
	batch.Schedule = s.viewLocked(project, pr)
	return batch, nil
}

// ResetSchedule returns every activity to normal and clears the accumulated crash cost.
func (s *Service) ResetSchedule(ctx context.Context, projectID string) (ScheduleView, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return ScheduleView{}, err
	}
	pr := s.projectRun(project.ID)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.run == nil {
		if err := s.startRun(ctx, project, pr); err != nil {
			return ScheduleView{}, err
		}
		return s.viewLocked(project, pr), nil
	}

	pr.run.Reset()
	summary := pr.run.Summary()
	observeSummary(project.ID, summary)
	if err := s.appendEvent(ctx, project, pr, domain.RunEvent{
		Kind:            domain.RunEventReset,
		ProjectDuration: summary.CurrentDuration,
		TotalCost:       summary.CurrentTotalCost,
		Message: fmt.Sprintf("Schedule reset to normal durations. Project duration: %s. Total cost: %.2f.",
			formatUnits(summary.CurrentDuration), summary.CurrentTotalCost),
	}); err != nil {
		return ScheduleView{}, err
	}
	s.logger.Info("schedule reset", "project_id", project.ID, "run_id", pr.runID)
	return s.viewLocked(project, pr), nil
}

// ListRunEvents lists the most recent run log entries of a project, oldest first.
func (s *Service) ListRunEvents(ctx context.Context, projectID string, limit int) ([]domain.RunEvent, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListRunEvents(ctx, projectID, limit)
}

// projectRun returns the run holder for a project, creating it on first use.
func (s *Service) projectRun(projectID string) *projectRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.runs[projectID]
	if !ok {
		pr = &projectRun{}
		s.runs[projectID] = pr
	}
	return pr
}

// startRun builds a new run from persisted rows. Caller holds pr.mu.
func (s *Service) startRun(ctx context.Context, project domain.Project, pr *projectRun) error {
	rows, err := s.repo.ListActivities(ctx, project.ID)
	if err != nil {
		return err
	}
	run, err := schedule.NewRun(rows, schedule.Options{
		Epsilon:         s.cfg.CriticalEpsilon,
		PassLimitFactor: s.cfg.PassLimitFactor,
	})
	if err != nil {
		observeComputation("graph_error")
		var gerr *schedule.GraphError
		if errors.As(err, &gerr) {
			s.logger.Warn("activity graph rejected", "project_id", project.ID, "kind", gerr.Kind.Error(), "row", gerr.Row+1, "token", gerr.Token)
		}
		return fmt.Errorf("build schedule for project %s: %w", project.ID, err)
	}
	observeComputation("ok")

	pr.run = run
	pr.runID = s.idGen()
	pr.sequence = 0

	summary := run.Summary()
	observeSummary(project.ID, summary)
	observeWarnings(run.Warnings())
	s.logWarnings(project.ID, run.Warnings())
	s.logger.Info("schedule computed",
		"project_id", project.ID,
		"run_id", pr.runID,
		"activities", len(rows),
		"duration", summary.CurrentDuration,
		"critical", strings.Join(summary.CriticalActivityIDs, ","),
	)
	return s.appendEvent(ctx, project, pr, domain.RunEvent{
		Kind:            domain.RunEventCompute,
		ProjectDuration: summary.CurrentDuration,
		TotalCost:       summary.CurrentTotalCost,
		Message: fmt.Sprintf("Initial schedule computed. Project duration: %s. Total cost: %.2f.",
			formatUnits(summary.CurrentDuration), summary.CurrentTotalCost),
	})
}

func (s *Service) recordStep(ctx context.Context, project domain.Project, pr *projectRun, res schedule.StepResult) error {
	summary := pr.run.Summary()
	ev := domain.RunEvent{
		Kind:            domain.RunEventNoCrash,
		ProjectDuration: summary.CurrentDuration,
		TotalCost:       summary.CurrentTotalCost,
		Message:         res.Message,
	}
	if res.Crashed {
		ev.Kind = domain.RunEventCrash
		ev.ActivityID = res.ActivityID
		ev.CostAdded = res.CostAdded
	}
	return s.appendEvent(ctx, project, pr, ev)
}

func (s *Service) appendEvent(ctx context.Context, project domain.Project, pr *projectRun, ev domain.RunEvent) error {
	pr.sequence++
	ev.ProjectID = project.ID
	ev.RunID = pr.runID
	ev.Sequence = pr.sequence
	ev, err := domain.NewRunEvent(ev, s.clock())
	if err != nil {
		return err
	}
	if err := s.repo.CreateRunEvent(ctx, ev); err != nil {
		return fmt.Errorf("record run event: %w", err)
	}
	return nil
}

func (s *Service) viewLocked(project domain.Project, pr *projectRun) ScheduleView {
	return buildScheduleView(project, pr.runID, pr.run, s.startDate(project), s.clock())
}

// startDate resolves the calendar anchor: project, then config, then January 1.
func (s *Service) startDate(project domain.Project) time.Time {
	switch {
	case project.StartDate != nil:
		return *project.StartDate
	case s.cfg.DefaultStartDate != nil:
		return *s.cfg.DefaultStartDate
	default:
		return domain.DefaultStartDate(s.clock())
	}
}

func (s *Service) logWarnings(projectID string, ws []schedule.Warning) {
	for _, w := range ws {
		s.logger.Warn("schedule warning", "project_id", projectID, "kind", string(w.Kind), "activity_id", w.ActivityID, "message", w.Message)
	}
}

// normalizeRows trims identity fields and drops rows that carry no data at all.
func normalizeRows(rows []domain.ActivityInput) []domain.ActivityInput {
	out := make([]domain.ActivityInput, 0, len(rows))
	for _, r := range rows {
		r.ID = strings.TrimSpace(r.ID)
		r.Name = strings.TrimSpace(r.Name)
		r.Predecessors = domain.SplitPredecessors(strings.Join(r.Predecessors, ","))
		r.NormalDuration = strings.TrimSpace(r.NormalDuration)
		r.NormalCost = strings.TrimSpace(r.NormalCost)
		r.CrashDuration = strings.TrimSpace(r.CrashDuration)
		r.CrashCost = strings.TrimSpace(r.CrashCost)
		if r.ID == "" && r.Name == "" && len(r.Predecessors) == 0 &&
			r.NormalDuration == "" && r.NormalCost == "" && r.CrashDuration == "" && r.CrashCost == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func formatUnits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
