package app

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/evanschultz/critpath/internal/domain"
)

func TestEncodeActivitiesCSV(t *testing.T) {
	rows := []domain.ActivityInput{
		{ID: "A", Name: `Design, "v2"`, NormalDuration: "5", NormalCost: "500", CrashDuration: "3", CrashCost: "900"},
		{ID: "B", Name: "Build", Predecessors: []string{"A", "C[SS+2]"}, NormalDuration: "7", NormalCost: "700", CrashDuration: "5", CrashCost: "1000"},
	}
	var buf bytes.Buffer
	if err := EncodeActivities(&buf, FormatCSV, rows); err != nil {
		t.Fatalf("EncodeActivities() error = %v", err)
	}
	want := "ID,Activity Name,Predecessor IDs,Normal Duration,Normal Cost,Crash Duration,Crash Cost\n" +
		"A,\"Design, \"\"v2\"\"\",,5,500,3,900\n" +
		"B,Build,\"A, C[SS+2]\",7,700,5,1000\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}

	got, err := DecodeActivities(strings.NewReader(buf.String()), FormatCSV)
	if err != nil {
		t.Fatalf("DecodeActivities() error = %v", err)
	}
	if !reflect.DeepEqual(got, rows) {
		t.Fatalf("csv round trip mismatch:\n got %#v\nwant %#v", got, rows)
	}
}

func TestDecodeActivitiesCSVFlexibleHeader(t *testing.T) {
	input := "activity name,id,normal duration\n\nDesign,A,5\n,,\n"
	got, err := DecodeActivities(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("DecodeActivities() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "A" || got[0].Name != "Design" || got[0].NormalDuration != "5" || got[0].CrashCost != "" {
		t.Fatalf("unexpected rows %#v", got)
	}

	if _, err := DecodeActivities(strings.NewReader("foo,bar\n1,2\n"), FormatCSV); !errors.Is(err, ErrInvalidImportData) {
		t.Fatalf("expected ErrInvalidImportData, got %v", err)
	}
	if _, err := DecodeActivities(strings.NewReader(""), FormatCSV); !errors.Is(err, ErrInvalidImportData) {
		t.Fatalf("expected ErrInvalidImportData for empty input, got %v", err)
	}
}

func TestActivitiesJSONAcceptsNumbersAndStrings(t *testing.T) {
	input := `[
		{"id":"A","name":"Design","predecessors":"","normal_duration":5,"normal_cost":"500","crash_duration":3,"crash_cost":900.5},
		{"id":"B","name":"Build","predecessors":"A, A[FF-1]","normal_duration":"7","normal_cost":null,"crash_duration":"x","crash_cost":1}
	]`
	got, err := DecodeActivities(strings.NewReader(input), FormatJSON)
	if err != nil {
		t.Fatalf("DecodeActivities() error = %v", err)
	}
	if got[0].NormalDuration != "5" || got[0].CrashCost != "900.5" || got[1].NormalCost != "" || got[1].CrashDuration != "x" {
		t.Fatalf("unexpected rows %#v", got)
	}
	if !reflect.DeepEqual(got[1].Predecessors, []string{"A", "A[FF-1]"}) {
		t.Fatalf("unexpected predecessors %#v", got[1].Predecessors)
	}

	var buf bytes.Buffer
	if err := EncodeActivities(&buf, FormatJSON, got); err != nil {
		t.Fatalf("EncodeActivities() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"normal_duration": 5`) || !strings.Contains(buf.String(), `"crash_duration": "x"`) {
		t.Fatalf("unexpected json %s", buf.String())
	}
}

func TestParseTransferFormat(t *testing.T) {
	if f, err := ParseTransferFormat(" CSV "); err != nil || f != FormatCSV {
		t.Fatalf("ParseTransferFormat() = %q, %v", f, err)
	}
	if f, err := ParseTransferFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("ParseTransferFormat(blank) = %q, %v", f, err)
	}
	if _, err := ParseTransferFormat("xlsx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImportAndExportActivities(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	project, err := svc.CreateProject(ctx, CreateProjectInput{Name: "Imported"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	var src bytes.Buffer
	if err := EncodeActivities(&src, FormatCSV, SampleActivities()); err != nil {
		t.Fatalf("EncodeActivities() error = %v", err)
	}
	n, err := svc.ImportActivities(ctx, project.ID, &src, FormatCSV)
	if err != nil {
		t.Fatalf("ImportActivities() error = %v", err)
	}
	if n != 5 || len(repo.events) != 1 || repo.events[0].Kind != domain.RunEventImport {
		t.Fatalf("unexpected import result n=%d events=%#v", n, repo.events)
	}

	var out bytes.Buffer
	if err := svc.ExportActivities(ctx, project.ID, &out, FormatJSON); err != nil {
		t.Fatalf("ExportActivities() error = %v", err)
	}
	back, err := DecodeActivities(&out, FormatJSON)
	if err != nil {
		t.Fatalf("DecodeActivities() error = %v", err)
	}
	if !reflect.DeepEqual(back, SampleActivities()) {
		t.Fatalf("export mismatch:\n got %#v\nwant %#v", back, SampleActivities())
	}
}
