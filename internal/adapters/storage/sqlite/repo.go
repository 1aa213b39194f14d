package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/critpath/internal/app"
	"github.com/evanschultz/critpath/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// defaultEventLimit caps run log reads when callers pass no limit.
const defaultEventLimit = 100

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		// Raw cell text is stored so invalid rows survive a reload with their issues intact.
		`CREATE TABLE IF NOT EXISTS activities (
			project_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			predecessors_json TEXT NOT NULL DEFAULT '[]',
			normal_duration TEXT NOT NULL DEFAULT '',
			normal_cost TEXT NOT NULL DEFAULT '',
			crash_duration TEXT NOT NULL DEFAULT '',
			crash_cost TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(project_id, position),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			kind TEXT NOT NULL,
			activity_id TEXT NOT NULL DEFAULT '',
			cost_added REAL NOT NULL DEFAULT 0,
			project_duration REAL NOT NULL DEFAULT 0,
			total_cost REAL NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_project_id ON run_events(project_id, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_run_sequence ON run_events(run_id, sequence);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE projects ADD COLUMN start_date TEXT`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add projects.start_date: %w", err)
	}
	return nil
}

// CreateProject creates project.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, slug, name, description, start_date, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Slug, p.Name, p.Description, nullableDate(p.StartDate), ts(p.CreatedAt), ts(p.UpdatedAt), nullableTS(p.ArchivedAt))
	return err
}

// UpdateProject updates state for the requested operation.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET slug = ?, name = ?, description = ?, start_date = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`, p.Slug, p.Name, p.Description, nullableDate(p.StartDate), ts(p.UpdatedAt), nullableTS(p.ArchivedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProject returns project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, start_date, created_at, updated_at, archived_at
		FROM projects
		WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists projects.
func (r *Repository) ListProjects(ctx context.Context, includeArchived bool) ([]domain.Project, error) {
	query := `
		SELECT id, slug, name, description, start_date, created_at, updated_at, archived_at
		FROM projects
	`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceActivities swaps a project's whole activity table in one transaction.
func (r *Repository) ReplaceActivities(ctx context.Context, projectID string, rows []domain.ActivityInput) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, projectID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = app.ErrNotFound
		}
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM activities WHERE project_id = ?`, projectID); err != nil {
		return err
	}
	for i, row := range rows {
		preds := row.Predecessors
		if preds == nil {
			preds = []string{}
		}
		predsJSON, marshalErr := json.Marshal(preds)
		if marshalErr != nil {
			err = fmt.Errorf("encode activity predecessors: %w", marshalErr)
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO activities(project_id, position, id, name, predecessors_json, normal_duration, normal_cost, crash_duration, crash_cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, projectID, i, row.ID, row.Name, string(predsJSON), row.NormalDuration, row.NormalCost, row.CrashDuration, row.CrashCost)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// ListActivities returns a project's activity rows in table order.
func (r *Repository) ListActivities(ctx context.Context, projectID string) ([]domain.ActivityInput, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, predecessors_json, normal_duration, normal_cost, crash_duration, crash_cost
		FROM activities
		WHERE project_id = ?
		ORDER BY position ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActivityInput{}
	for rows.Next() {
		var (
			in        domain.ActivityInput
			predsJSON string
		)
		if err := rows.Scan(&in.ID, &in.Name, &predsJSON, &in.NormalDuration, &in.NormalCost, &in.CrashDuration, &in.CrashCost); err != nil {
			return nil, err
		}
		if strings.TrimSpace(predsJSON) == "" {
			predsJSON = "[]"
		}
		if err := json.Unmarshal([]byte(predsJSON), &in.Predecessors); err != nil {
			return nil, fmt.Errorf("decode activities.predecessors_json: %w", err)
		}
		if len(in.Predecessors) == 0 {
			in.Predecessors = nil
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// CreateRunEvent appends one run log entry.
func (r *Repository) CreateRunEvent(ctx context.Context, ev domain.RunEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_events(project_id, run_id, sequence, kind, activity_id, cost_added, project_duration, total_cost, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ProjectID, ev.RunID, ev.Sequence, string(ev.Kind), ev.ActivityID, ev.CostAdded, ev.ProjectDuration, ev.TotalCost, ev.Message, ts(normalizeEventTS(ev.OccurredAt)))
	return err
}

// ListRunEvents returns the latest limit events of a project, oldest first.
func (r *Repository) ListRunEvents(ctx context.Context, projectID string, limit int) ([]domain.RunEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, run_id, sequence, kind, activity_id, cost_added, project_duration, total_cost, message, created_at
		FROM run_events
		WHERE project_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RunEvent, 0)
	for rows.Next() {
		var (
			ev         domain.RunEvent
			kindRaw    string
			createdRaw string
		)
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.RunID, &ev.Sequence, &kindRaw, &ev.ActivityID, &ev.CostAdded, &ev.ProjectDuration, &ev.TotalCost, &ev.Message, &createdRaw); err != nil {
			return nil, err
		}
		ev.Kind = domain.RunEventKind(kindRaw)
		ev.OccurredAt = parseTS(createdRaw)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// normalizeEventTS normalizes event timestamps to UTC and fills zero values.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanProject handles scan project.
func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		startRaw   sql.NullString
		createdRaw string
		updatedRaw string
		archived   sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &startRaw, &createdRaw, &updatedRaw, &archived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	if startRaw.Valid {
		start, err := domain.ParseStartDate(startRaw.String)
		if err != nil {
			return domain.Project{}, fmt.Errorf("decode projects.start_date: %w", err)
		}
		p.StartDate = start
	}
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	p.ArchivedAt = parseNullTS(archived)
	return p, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(domain.StartDateLayout)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// isDuplicateColumnErr reports whether the expected condition is satisfied.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
