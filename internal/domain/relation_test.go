package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePredecessorSpec(t *testing.T) {
	tests := []struct {
		raw  string
		want PredecessorSpec
	}{
		{raw: "A", want: PredecessorSpec{Reference: "A", Type: RelationFS}},
		{raw: "  Design  ", want: PredecessorSpec{Reference: "Design", Type: RelationFS}},
		{raw: "A[SS+2]", want: PredecessorSpec{Reference: "A", Type: RelationSS, Lag: 2}},
		{raw: "A[ff-1]", want: PredecessorSpec{Reference: "A", Type: RelationFF, Lag: -1}},
		{raw: "Write Docs [SF 3]", want: PredecessorSpec{Reference: "Write Docs", Type: RelationSF, Lag: 3}},
		{raw: "B[FS]", want: PredecessorSpec{Reference: "B", Type: RelationFS}},
	}
	for _, tc := range tests {
		got, err := ParsePredecessorSpec(tc.raw)
		if err != nil {
			t.Fatalf("ParsePredecessorSpec(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePredecessorSpec(%q) = %#v, want %#v", tc.raw, got, tc.want)
		}
	}
}

func TestParsePredecessorSpecErrors(t *testing.T) {
	for _, raw := range []string{"", "  ", "[SS+2]", "A[XX+2]", "A[SS+x]", "A]", "A[SS", "A[S]"} {
		if _, err := ParsePredecessorSpec(raw); !errors.Is(err, ErrInvalidPredecessor) {
			t.Fatalf("ParsePredecessorSpec(%q) expected ErrInvalidPredecessor, got %v", raw, err)
		}
	}
}

func TestPredecessorSpecString(t *testing.T) {
	cases := map[string]PredecessorSpec{
		"A":         {Reference: "A", Type: RelationFS},
		"A[SS+2]":   {Reference: "A", Type: RelationSS, Lag: 2},
		"A[FS-3]":   {Reference: "A", Type: RelationFS, Lag: -3},
		"A[FF]":     {Reference: "A", Type: RelationFF},
		"Bob[SF+1]": {Reference: "Bob", Type: RelationSF, Lag: 1},
	}
	for want, spec := range cases {
		if got := spec.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}

func TestSplitAndJoinPredecessors(t *testing.T) {
	got := SplitPredecessors(" A, B[SS+2] ,, C ")
	want := []string{"A", "B[SS+2]", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitPredecessors() = %#v, want %#v", got, want)
	}
	if joined := JoinPredecessors(got); joined != "A, B[SS+2], C" {
		t.Fatalf("JoinPredecessors() = %q", joined)
	}
	if got := SplitPredecessors(""); len(got) != 0 {
		t.Fatalf("expected no tokens, got %#v", got)
	}
}

func TestParseRelationType(t *testing.T) {
	if r, err := ParseRelationType(" ss "); err != nil || r != RelationSS {
		t.Fatalf("ParseRelationType() = %q, %v", r, err)
	}
	if r, err := ParseRelationType(""); err != nil || r != RelationFS {
		t.Fatalf("ParseRelationType(blank) = %q, %v", r, err)
	}
	if _, err := ParseRelationType("XY"); err != ErrInvalidRelation {
		t.Fatalf("expected ErrInvalidRelation, got %v", err)
	}
}
