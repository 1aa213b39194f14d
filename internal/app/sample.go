package app

import (
	"context"
	"fmt"
	"io"

	"github.com/evanschultz/critpath/internal/domain"
)

// SampleProjectName names the demo project created by CreateSampleProject.
const SampleProjectName = "Sample Product Launch"

// SampleActivities returns the five-activity demo network.
func SampleActivities() []domain.ActivityInput {
	return []domain.ActivityInput{
		{ID: "A", Name: "Design", NormalDuration: "5", NormalCost: "500", CrashDuration: "3", CrashCost: "900"},
		{ID: "B", Name: "Build Prototype", Predecessors: []string{"A"}, NormalDuration: "7", NormalCost: "700", CrashDuration: "5", CrashCost: "1000"},
		{ID: "C", Name: "Test Prototype", Predecessors: []string{"B"}, NormalDuration: "3", NormalCost: "300", CrashDuration: "2", CrashCost: "500"},
		{ID: "D", Name: "Write Documentation", Predecessors: []string{"A"}, NormalDuration: "4", NormalCost: "200", CrashDuration: "3", CrashCost: "300"},
		{ID: "E", Name: "Release", Predecessors: []string{"C", "D"}, NormalDuration: "2", NormalCost: "100", CrashDuration: "1", CrashCost: "400"},
	}
}

// CreateSampleProject creates a project preloaded with the demo network.
func (s *Service) CreateSampleProject(ctx context.Context) (domain.Project, error) {
	project, err := s.CreateProject(ctx, CreateProjectInput{
		Name:        SampleProjectName,
		Description: "Demo network: design, build, test, document and release.",
	})
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.SaveActivities(ctx, project.ID, SampleActivities()); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ImportActivities replaces a project's activity table from an encoded stream.
func (s *Service) ImportActivities(ctx context.Context, projectID string, r io.Reader, format TransferFormat) (int, error) {
	rows, err := DecodeActivities(r, format)
	if err != nil {
		return 0, err
	}
	if err := s.SaveActivities(ctx, projectID, rows); err != nil {
		return 0, err
	}
	ev, err := domain.NewRunEvent(domain.RunEvent{
		ProjectID: projectID,
		RunID:     s.idGen(),
		Sequence:  1,
		Kind:      domain.RunEventImport,
		Message:   fmt.Sprintf("Imported %d activities (%s).", len(rows), format),
	}, s.clock())
	if err != nil {
		return 0, err
	}
	if err := s.repo.CreateRunEvent(ctx, ev); err != nil {
		return 0, fmt.Errorf("record run event: %w", err)
	}
	return len(rows), nil
}

// ExportActivities writes a project's activity table in the requested format.
func (s *Service) ExportActivities(ctx context.Context, projectID string, w io.Writer, format TransferFormat) error {
	rows, err := s.ListActivities(ctx, projectID)
	if err != nil {
		return err
	}
	return EncodeActivities(w, format, rows)
}
