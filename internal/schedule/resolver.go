package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/critpath/internal/domain"
)

// referenceTable maps activity ids and names to arena indices. It is populated once,
// ids first and then names, both in input order; the first mapping for a key wins.
type referenceTable struct {
	keys map[string]int
}

// BuildGraph constructs activities from raw rows and links them by their predecessor
// tokens. Validation issues and name collisions are returned as warnings; any
// GraphError aborts construction and no graph is returned.
func BuildGraph(inputs []domain.ActivityInput) (*Graph, []Warning, error) {
	activities := make([]domain.Activity, len(inputs))
	var warnings []Warning
	for i, in := range inputs {
		activities[i] = domain.NewActivity(in, i)
		if err := activities[i].ValidationError(); err != nil {
			warnings = append(warnings, Warning{
				Kind:       WarningInvalidActivity,
				ActivityID: activities[i].ID,
				Message:    err.Error(),
			})
		}
	}

	refs, refWarnings, err := newReferenceTable(activities)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, refWarnings...)

	g := newGraph(activities)
	for i, in := range inputs {
		act := &activities[i]
		for _, token := range domain.SplitPredecessors(strings.Join(in.Predecessors, ",")) {
			link, err := refs.resolve(i, act.ID, token)
			if err != nil {
				return nil, nil, err
			}
			g.addLink(link)
		}
	}
	return g, warnings, nil
}

func newReferenceTable(activities []domain.Activity) (referenceTable, []Warning, error) {
	refs := referenceTable{keys: make(map[string]int, len(activities)*2)}
	for i, a := range activities {
		if first, ok := refs.keys[a.ID]; ok {
			return referenceTable{}, nil, graphErrorf(ErrDuplicateID, i, a.ID, "",
				"id already used by row %d", first+1)
		}
		refs.keys[a.ID] = i
	}

	var warnings []Warning
	for i, a := range activities {
		first, ok := refs.keys[a.Name]
		if !ok {
			refs.keys[a.Name] = i
			continue
		}
		if first == i {
			continue
		}
		warnings = append(warnings, Warning{
			Kind:       WarningAmbiguousReference,
			ActivityID: a.ID,
			Message: fmt.Sprintf("name %q also refers to %s; references to it resolve to %s",
				a.Name, activities[first].ID, activities[first].ID),
		})
	}
	return refs, warnings, nil
}

func (r referenceTable) resolve(row int, activityID, token string) (Link, error) {
	spec, err := domain.ParsePredecessorSpec(token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPredecessor) {
			return Link{}, graphErrorf(ErrMalformedPredecessor, row, activityID, token, "%v", err)
		}
		return Link{}, err
	}
	from, ok := r.keys[spec.Reference]
	if !ok {
		return Link{}, graphErrorf(ErrUnresolvedReference, row, activityID, token,
			"no activity with id or name %q", spec.Reference)
	}
	if from == row {
		return Link{}, graphErrorf(ErrSelfReference, row, activityID, token,
			"activity cannot depend on itself")
	}
	return Link{From: from, To: row, Type: spec.Type, Lag: spec.Lag}, nil
}
