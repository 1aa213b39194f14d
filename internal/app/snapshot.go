package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/critpath/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "critpath.snapshot.v1"

// Snapshot is a portable copy of every project and its activity table.
type Snapshot struct {
	Version    string             `json:"version"`
	ExportedAt time.Time          `json:"exported_at"`
	Projects   []SnapshotProject  `json:"projects"`
	Activities []SnapshotActivity `json:"activities"`
}

// SnapshotProject represents snapshot project data used by this package.
type SnapshotProject struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   string     `json:"start_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// SnapshotActivity is one activity row tagged with its project and position.
type SnapshotActivity struct {
	ProjectID string `json:"project_id"`
	Position  int    `json:"position"`
	ActivityRecord
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context, includeArchived bool) (Snapshot, error) {
	projects, err := s.repo.ListProjects(ctx, includeArchived)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Projects:   make([]SnapshotProject, 0, len(projects)),
		Activities: make([]SnapshotActivity, 0),
	}
	for _, project := range projects {
		snap.Projects = append(snap.Projects, snapshotProjectFromDomain(project))

		rows, listErr := s.repo.ListActivities(ctx, project.ID)
		if listErr != nil {
			return Snapshot{}, listErr
		}
		for i, row := range rows {
			snap.Activities = append(snap.Activities, SnapshotActivity{
				ProjectID:      project.ID,
				Position:       i,
				ActivityRecord: RecordFromInput(row),
			})
		}
	}

	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts every project and replaces the activity table of each.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	rowsByProject := map[string][]domain.ActivityInput{}
	for _, a := range snap.Activities {
		rowsByProject[a.ProjectID] = append(rowsByProject[a.ProjectID], a.Input())
	}

	for _, sp := range snap.Projects {
		project, err := sp.toDomain()
		if err != nil {
			return err
		}
		if err := s.upsertProject(ctx, project); err != nil {
			return err
		}
		if err := s.SaveActivities(ctx, project.ID, rowsByProject[project.ID]); err != nil {
			return err
		}
	}
	s.logger.Info("snapshot imported", "projects", len(snap.Projects), "activities", len(snap.Activities))
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}

	projectIDs := map[string]struct{}{}
	for i, p := range s.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("projects[%d].id is required", i)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("projects[%d].name is required", i)
		}
		if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
			return fmt.Errorf("projects[%d] timestamps are required", i)
		}
		if _, err := domain.ParseStartDate(p.StartDate); err != nil {
			return fmt.Errorf("projects[%d].start_date: %w", i, err)
		}
		if _, exists := projectIDs[p.ID]; exists {
			return fmt.Errorf("duplicate project id: %q", p.ID)
		}
		projectIDs[p.ID] = struct{}{}
	}

	type slot struct {
		project  string
		position int
	}
	positions := map[slot]struct{}{}
	for i, a := range s.Activities {
		if _, ok := projectIDs[a.ProjectID]; !ok {
			return fmt.Errorf("activities[%d] references unknown project_id %q", i, a.ProjectID)
		}
		if a.Position < 0 {
			return fmt.Errorf("activities[%d].position must be >= 0", i)
		}
		key := slot{project: a.ProjectID, position: a.Position}
		if _, exists := positions[key]; exists {
			return fmt.Errorf("activities[%d] duplicates position %d in project %q", i, a.Position, a.ProjectID)
		}
		positions[key] = struct{}{}
	}
	return nil
}

// upsertProject handles upsert project.
func (s *Service) upsertProject(ctx context.Context, p domain.Project) error {
	if _, err := s.repo.GetProject(ctx, p.ID); err == nil {
		return s.repo.UpdateProject(ctx, p)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateProject(ctx, p)
}

func (s *Snapshot) sort() {
	sort.Slice(s.Projects, func(i, j int) bool {
		return s.Projects[i].ID < s.Projects[j].ID
	})
	sort.SliceStable(s.Activities, func(i, j int) bool {
		a := s.Activities[i]
		b := s.Activities[j]
		if a.ProjectID == b.ProjectID {
			return a.Position < b.Position
		}
		return a.ProjectID < b.ProjectID
	})
}

func snapshotProjectFromDomain(p domain.Project) SnapshotProject {
	out := SnapshotProject{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
		ArchivedAt:  copyTimePtr(p.ArchivedAt),
	}
	if p.StartDate != nil {
		out.StartDate = p.StartDate.Format(domain.StartDateLayout)
	}
	return out
}

func (p SnapshotProject) toDomain() (domain.Project, error) {
	start, err := domain.ParseStartDate(p.StartDate)
	if err != nil {
		return domain.Project{}, err
	}
	slug := strings.TrimSpace(p.Slug)
	if slug == "" {
		slug = fallbackSlug(p.Name)
	}
	return domain.Project{
		ID:          strings.TrimSpace(p.ID),
		Slug:        slug,
		Name:        strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
		StartDate:   start,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
		ArchivedAt:  copyTimePtr(p.ArchivedAt),
	}, nil
}

func fallbackSlug(name string) string {
	p, err := domain.NewProject("slug", name, "", time.Time{})
	if err != nil {
		return ""
	}
	return p.Slug
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	ts := in.UTC()
	return &ts
}
