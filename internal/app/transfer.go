package app

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/evanschultz/critpath/internal/domain"
)

// TransferFormat names an activity table encoding.
type TransferFormat string

// Supported activity table encodings.
const (
	FormatJSON TransferFormat = "json"
	FormatCSV  TransferFormat = "csv"
)

// ParseTransferFormat parses a format name, defaulting to JSON.
func ParseTransferFormat(raw string) (TransferFormat, error) {
	switch TransferFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// CSVHeader is the column layout of exported activity tables.
var CSVHeader = []string{
	"ID",
	"Activity Name",
	"Predecessor IDs",
	"Normal Duration",
	"Normal Cost",
	"Crash Duration",
	"Crash Cost",
}

// ActivityRecord is the JSON shape of one activity row. Numeric fields accept either
// JSON numbers or strings so hand-edited files round-trip.
type ActivityRecord struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Predecessors   string     `json:"predecessors"`
	NormalDuration flexNumber `json:"normal_duration"`
	NormalCost     flexNumber `json:"normal_cost"`
	CrashDuration  flexNumber `json:"crash_duration"`
	CrashCost      flexNumber `json:"crash_cost"`
}

// flexNumber keeps the raw text of a numeric field.
type flexNumber string

// MarshalJSON writes numbers as JSON numbers and anything else as a string.
func (f flexNumber) MarshalJSON() ([]byte, error) {
	raw := strings.TrimSpace(string(f))
	if _, err := strconv.ParseFloat(raw, 64); err == nil && json.Valid([]byte(raw)) {
		return []byte(raw), nil
	}
	return json.Marshal(string(f))
}

// UnmarshalJSON accepts a JSON number, string or null.
func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexNumber(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("numeric field: %w", err)
		}
		*f = flexNumber(n.String())
		return nil
	}
}

// RecordFromInput converts a raw row to its JSON record.
func RecordFromInput(in domain.ActivityInput) ActivityRecord {
	return ActivityRecord{
		ID:             in.ID,
		Name:           in.Name,
		Predecessors:   domain.JoinPredecessors(in.Predecessors),
		NormalDuration: flexNumber(in.NormalDuration),
		NormalCost:     flexNumber(in.NormalCost),
		CrashDuration:  flexNumber(in.CrashDuration),
		CrashCost:      flexNumber(in.CrashCost),
	}
}

// Input converts the record back to a raw row.
func (r ActivityRecord) Input() domain.ActivityInput {
	return domain.ActivityInput{
		ID:             strings.TrimSpace(r.ID),
		Name:           strings.TrimSpace(r.Name),
		Predecessors:   domain.SplitPredecessors(r.Predecessors),
		NormalDuration: strings.TrimSpace(string(r.NormalDuration)),
		NormalCost:     strings.TrimSpace(string(r.NormalCost)),
		CrashDuration:  strings.TrimSpace(string(r.CrashDuration)),
		CrashCost:      strings.TrimSpace(string(r.CrashCost)),
	}
}

// EncodeActivities writes rows in the requested format.
func EncodeActivities(w io.Writer, format TransferFormat, rows []domain.ActivityInput) error {
	switch format {
	case FormatCSV:
		return encodeActivitiesCSV(w, rows)
	case FormatJSON, "":
		records := make([]ActivityRecord, 0, len(rows))
		for _, row := range rows {
			records = append(records, RecordFromInput(row))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode activities json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DecodeActivities reads rows in the requested format.
func DecodeActivities(r io.Reader, format TransferFormat) ([]domain.ActivityInput, error) {
	switch format {
	case FormatCSV:
		return decodeActivitiesCSV(r)
	case FormatJSON, "":
		var records []ActivityRecord
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("%w: decode activities json: %v", ErrInvalidImportData, err)
		}
		rows := make([]domain.ActivityInput, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.Input())
		}
		return normalizeRows(rows), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func encodeActivitiesCSV(w io.Writer, rows []domain.ActivityInput) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.Name,
			domain.JoinPredecessors(row.Predecessors),
			row.NormalDuration,
			row.NormalCost,
			row.CrashDuration,
			row.CrashCost,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// decodeActivitiesCSV matches header names case-insensitively; missing columns read as
// blank and blank lines are skipped.
func decodeActivitiesCSV(r io.Reader) ([]domain.ActivityInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", ErrInvalidImportData)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", ErrInvalidImportData, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := columns[name]; !ok {
			columns[name] = i
		}
	}
	if _, ok := columns["id"]; !ok {
		if _, ok := columns["activity name"]; !ok {
			return nil, fmt.Errorf("%w: csv header needs an ID or Activity Name column", ErrInvalidImportData)
		}
	}

	var rows []domain.ActivityInput
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv line %d: %v", ErrInvalidImportData, line, err)
		}
		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, domain.ActivityInput{
			ID:             field("id"),
			Name:           field("activity name"),
			Predecessors:   domain.SplitPredecessors(field("predecessor ids")),
			NormalDuration: field("normal duration"),
			NormalCost:     field("normal cost"),
			CrashDuration:  field("crash duration"),
			CrashCost:      field("crash cost"),
		})
	}
	return normalizeRows(rows), nil
}
