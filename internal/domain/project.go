package domain

import (
	"strings"
	"time"
)

// StartDateLayout is the calendar format used for project start dates.
const StartDateLayout = "2006-01-02"

// Project groups one activity network and its crash history.
type Project struct {
	ID          string
	Slug        string
	Name        string
	Description string
	StartDate   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  *time.Time
}

// NewProject constructs a new value for this package.
func NewProject(id, name, description string, now time.Time) (Project, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Project{}, ErrInvalidID
	}
	if name == "" {
		return Project{}, ErrInvalidName
	}

	return Project{
		ID:          id,
		Slug:        normalizeSlug(name),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Rename renames the project and refreshes its slug.
func (p *Project) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	p.Name = name
	p.Slug = normalizeSlug(name)
	p.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails updates name and description together.
func (p *Project) UpdateDetails(name, description string, now time.Time) error {
	if err := p.Rename(name, now); err != nil {
		return err
	}
	p.Description = strings.TrimSpace(description)
	return nil
}

// SetStartDate sets or clears the calendar anchor used for timeline dates.
func (p *Project) SetStartDate(start *time.Time, now time.Time) {
	if start == nil {
		p.StartDate = nil
	} else {
		day := truncateDay(*start)
		p.StartDate = &day
	}
	p.UpdatedAt = now.UTC()
}

// Archive archives the project.
func (p *Project) Archive(now time.Time) {
	ts := now.UTC()
	p.ArchivedAt = &ts
	p.UpdatedAt = ts
}

// Restore restores an archived project.
func (p *Project) Restore(now time.Time) {
	p.ArchivedAt = nil
	p.UpdatedAt = now.UTC()
}

// ParseStartDate parses an optional YYYY-MM-DD value. Blank input yields nil.
func ParseStartDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.ParseInLocation(StartDateLayout, raw, time.UTC)
	if err != nil {
		return nil, ErrInvalidStartDate
	}
	return &ts, nil
}

// DefaultStartDate returns January 1 of the year containing now.
func DefaultStartDate(now time.Time) time.Time {
	return time.Date(now.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// AddDays maps a relative schedule time onto the calendar.
func AddDays(start time.Time, days float64) time.Time {
	return truncateDay(start).AddDate(0, 0, int(days))
}

func truncateDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// normalizeSlug normalizes slug.
func normalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
