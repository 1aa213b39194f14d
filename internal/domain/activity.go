package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Activity field names used in validation issues.
const (
	FieldNormalDuration = "normal_duration"
	FieldNormalCost     = "normal_cost"
	FieldCrashDuration  = "crash_duration"
	FieldCrashCost      = "crash_cost"
)

// ActivityInput holds one raw activity row as entered or imported.
type ActivityInput struct {
	ID             string
	Name           string
	Predecessors   []string
	NormalDuration string
	NormalCost     string
	CrashDuration  string
	CrashCost      string
}

// ValidationIssue describes one invalid activity field.
type ValidationIssue struct {
	Field   string
	Message string
}

// ValidationError enumerates the invalid fields of one activity.
type ValidationError struct {
	ActivityID string
	Issues     []ValidationIssue
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return fmt.Sprintf("activity %s: %s", e.ActivityID, strings.Join(parts, "; "))
}

// Unwrap lets callers match ErrInvalidActivity.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidActivity
}

// Activity is one schedulable unit of work and its crash economics.
type Activity struct {
	ID       string
	Name     string
	Position int

	NormalDuration int
	NormalCost     float64
	CrashDuration  int
	CrashCost      float64

	// MaxCrashTime and CostPerUnitCrash are derived from the duration and cost bounds.
	MaxCrashTime     int
	CostPerUnitCrash float64

	CurrentDuration int
	CrashedTime     int
	ES              float64
	EF              float64
	LS              float64
	LF              float64
	Slack           float64
	IsCritical      bool

	Issues []ValidationIssue
}

// NewActivity builds an activity from a raw row at the given zero-based input position.
// Invalid fields are recorded as issues; the activity is always returned.
func NewActivity(in ActivityInput, position int) Activity {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = fmt.Sprintf("Act%d", position+1)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Activity " + id
	}

	a := Activity{ID: id, Name: name, Position: position}

	normal, normalOK := parsePositiveInt(in.NormalDuration)
	if !normalOK {
		a.addIssue(FieldNormalDuration, "must be a positive integer")
	}
	a.NormalDuration = max(normal, 0)

	crash, crashOK := parsePositiveInt(in.CrashDuration)
	switch {
	case !crashOK:
		a.addIssue(FieldCrashDuration, "must be a positive integer")
		crash = a.NormalDuration
	case normalOK && crash > a.NormalDuration:
		a.addIssue(FieldCrashDuration, fmt.Sprintf("crash duration %d exceeds normal duration %d", crash, a.NormalDuration))
		crash = a.NormalDuration
	case !normalOK:
		crash = a.NormalDuration
	}
	a.CrashDuration = crash

	var ok bool
	if a.NormalCost, ok = parseNonNegativeFloat(in.NormalCost); !ok {
		a.addIssue(FieldNormalCost, "must be a non-negative number")
	}
	if a.CrashCost, ok = parseNonNegativeFloat(in.CrashCost); !ok {
		a.addIssue(FieldCrashCost, "must be a non-negative number")
	}

	a.recomputeEconomics()
	a.ResetToNormal()
	return a
}

// recomputeEconomics derives MaxCrashTime and CostPerUnitCrash from the bounds.
func (a *Activity) recomputeEconomics() {
	a.MaxCrashTime = max(a.NormalDuration-a.CrashDuration, 0)
	if a.MaxCrashTime > 0 {
		a.CostPerUnitCrash = (a.CrashCost - a.NormalCost) / float64(a.MaxCrashTime)
		return
	}
	a.CostPerUnitCrash = math.Inf(1)
}

func (a *Activity) addIssue(field, message string) {
	a.Issues = append(a.Issues, ValidationIssue{Field: field, Message: message})
}

// Valid reports whether every field passed validation.
func (a Activity) Valid() bool {
	return len(a.Issues) == 0
}

// ValidationError returns the accumulated field issues, or nil.
func (a Activity) ValidationError() error {
	if a.Valid() {
		return nil
	}
	return &ValidationError{ActivityID: a.ID, Issues: append([]ValidationIssue(nil), a.Issues...)}
}

// Crashable reports whether the activity has a finite crash rate at all.
func (a Activity) Crashable() bool {
	return a.MaxCrashTime > 0 && !math.IsInf(a.CostPerUnitCrash, 0) && !math.IsNaN(a.CostPerUnitCrash)
}

// CanCrashFurther reports whether the current duration is still above the crash floor.
func (a Activity) CanCrashFurther() bool {
	return a.CurrentDuration > a.CrashDuration
}

// CrashOneUnit shortens the activity by one unit. It returns false at the crash floor.
func (a *Activity) CrashOneUnit() bool {
	if !a.CanCrashFurther() {
		return false
	}
	a.CurrentDuration--
	a.CrashedTime++
	return true
}

// ResetToNormal restores pristine schedule state without touching identity or economics.
func (a *Activity) ResetToNormal() {
	a.CurrentDuration = a.NormalDuration
	a.CrashedTime = 0
	a.ES = 0
	a.EF = 0
	a.LS = math.Inf(1)
	a.LF = math.Inf(1)
	a.Slack = 0
	a.IsCritical = false
}

func parsePositiveInt(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		// Integral floats such as "5.0" are accepted.
		v = int(f)
		return v, v > 0 && f == math.Trunc(f)
	}
	return v, v > 0
}

func parseNonNegativeFloat(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, v >= 0
}
