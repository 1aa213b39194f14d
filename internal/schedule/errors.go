package schedule

import (
	"errors"
	"fmt"

	"github.com/evanschultz/critpath/internal/domain"
)

var (
	ErrUnresolvedReference  = errors.New("unresolved predecessor reference")
	ErrSelfReference        = errors.New("self-referential predecessor")
	ErrMalformedPredecessor = errors.New("malformed predecessor")
	ErrDuplicateID          = errors.New("duplicate activity id")
)

// GraphError reports why a graph could not be built, with the offending row and token.
type GraphError struct {
	Kind       error
	Row        int
	ActivityID string
	Token      string
	Msg        string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	where := fmt.Sprintf("row %d (%s)", e.Row+1, e.ActivityID)
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", where, e.Kind.Error())
	}
	return fmt.Sprintf("%s: %s: %s", where, e.Kind.Error(), e.Msg)
}

// Unwrap exposes both the specific kind and domain.ErrInvalidGraph.
func (e *GraphError) Unwrap() []error {
	return []error{e.Kind, domain.ErrInvalidGraph}
}

func graphErrorf(kind error, row int, activityID, token, format string, args ...any) error {
	return &GraphError{
		Kind:       kind,
		Row:        row,
		ActivityID: activityID,
		Token:      token,
		Msg:        fmt.Sprintf(format, args...),
	}
}

// WarningKind classifies a non-fatal schedule diagnostic.
type WarningKind string

// WarningKind values.
const (
	WarningConvergence        WarningKind = "convergence"
	WarningNegativeSlack      WarningKind = "negative_slack"
	WarningAmbiguousReference WarningKind = "ambiguous_reference"
	WarningInvalidActivity    WarningKind = "invalid_activity"
)

// Warning is a recoverable diagnostic reported next to otherwise usable output.
type Warning struct {
	Kind       WarningKind
	ActivityID string
	Message    string
}

func (w Warning) String() string {
	if w.ActivityID == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.ActivityID, w.Message)
}
