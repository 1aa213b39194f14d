package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RelationType names the precedence relation between two activities.
type RelationType string

// Relation types, finish-to-start being the default.
const (
	RelationFS RelationType = "FS"
	RelationSS RelationType = "SS"
	RelationFF RelationType = "FF"
	RelationSF RelationType = "SF"
)

var validRelations = []RelationType{RelationFS, RelationSS, RelationFF, RelationSF}

// IsValid reports whether r is one of the four supported relation types.
func (r RelationType) IsValid() bool {
	for _, v := range validRelations {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRelationType parses a case-insensitive relation type. Blank input means FS.
func ParseRelationType(raw string) (RelationType, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return RelationFS, nil
	}
	r := RelationType(raw)
	if !r.IsValid() {
		return "", ErrInvalidRelation
	}
	return r, nil
}

// PredecessorSpec is one parsed predecessor token such as "A[SS+2]".
type PredecessorSpec struct {
	Reference string
	Type      RelationType
	Lag       int
}

// String renders the spec in its canonical token form.
func (p PredecessorSpec) String() string {
	typ := p.Type
	if typ == "" {
		typ = RelationFS
	}
	if typ == RelationFS && p.Lag == 0 {
		return p.Reference
	}
	if p.Lag == 0 {
		return fmt.Sprintf("%s[%s]", p.Reference, typ)
	}
	return fmt.Sprintf("%s[%s%+d]", p.Reference, typ, p.Lag)
}

// ParsePredecessorSpec parses "<reference>[<TYPE><signed-lag>]". The bracket group is
// optional and defaults to FS with zero lag.
func ParsePredecessorSpec(raw string) (PredecessorSpec, error) {
	token := strings.TrimSpace(raw)
	ref := token
	spec := PredecessorSpec{Type: RelationFS}

	if strings.HasSuffix(token, "]") {
		open := strings.LastIndex(token, "[")
		if open < 0 {
			return PredecessorSpec{}, fmt.Errorf("predecessor %q: unbalanced bracket: %w", raw, ErrInvalidPredecessor)
		}
		ref = token[:open]
		typ, lag, err := parseRelationSuffix(token[open+1 : len(token)-1])
		if err != nil {
			return PredecessorSpec{}, fmt.Errorf("predecessor %q: %v: %w", raw, err, ErrInvalidPredecessor)
		}
		spec.Type = typ
		spec.Lag = lag
	}
	ref = strings.TrimSpace(ref)
	if strings.ContainsAny(ref, "[]") {
		return PredecessorSpec{}, fmt.Errorf("predecessor %q: unexpected bracket: %w", raw, ErrInvalidPredecessor)
	}
	if ref == "" {
		return PredecessorSpec{}, fmt.Errorf("predecessor %q: empty reference: %w", raw, ErrInvalidPredecessor)
	}
	spec.Reference = ref
	return spec, nil
}

// parseRelationSuffix parses the inside of a bracket group, e.g. "SS+2" or "ff -1".
func parseRelationSuffix(inner string) (RelationType, int, error) {
	inner = strings.TrimSpace(inner)
	if len(inner) < 2 {
		return "", 0, fmt.Errorf("relation type %q", inner)
	}
	typ, err := ParseRelationType(inner[:2])
	if err != nil {
		return "", 0, fmt.Errorf("relation type %q", inner[:2])
	}
	rest := strings.TrimSpace(inner[2:])
	if rest == "" {
		return typ, 0, nil
	}
	lag, err := strconv.Atoi(rest)
	if err != nil {
		return "", 0, fmt.Errorf("lag %q", rest)
	}
	return typ, lag, nil
}

// SplitPredecessors splits a comma separated predecessor list, dropping blanks.
func SplitPredecessors(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// JoinPredecessors renders predecessor tokens back into the comma separated form.
func JoinPredecessors(tokens []string) string {
	return strings.Join(SplitPredecessors(strings.Join(tokens, ",")), ", ")
}
