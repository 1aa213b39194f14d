package app

import (
	"context"

	"github.com/evanschultz/critpath/internal/domain"
)

// Repository persists projects, their activity tables and run logs.
type Repository interface {
	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context, bool) ([]domain.Project, error)

	ReplaceActivities(context.Context, string, []domain.ActivityInput) error
	ListActivities(context.Context, string) ([]domain.ActivityInput, error)

	CreateRunEvent(context.Context, domain.RunEvent) error
	ListRunEvents(context.Context, string, int) ([]domain.RunEvent, error)
}

// Logger receives structured service events as key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
