// Package csvutil renders request and study-id exports and pre-scans
// study-id imports. Exports are flattened projections of display
// fields, one row per entity; imports are validated fully before any
// write happens.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/models"
)

// RequestExportHeader matches the original export column order.
var RequestExportHeader = []string{"ID", "User", "Participant IDs", "Status", "Created", "Due Date", "Returned"}

// WriteRequests writes one CSV row per request, header first.
// Participant ids are joined into a single cell; absent dates render
// empty.
func WriteRequests(w io.Writer, requests []models.FileRequest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequestExportHeader); err != nil {
		return err
	}
	for _, req := range requests {
		row := []string{
			req.ID.Hex(),
			req.UserName,
			strings.Join(req.ParticipantIDs, ", "),
			req.Status,
			formatTime(&req.CreatedAt),
			formatTime(req.DueDate),
			formatTime(req.ReturnedAt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// StudyIDExportHeader matches the study-id template columns.
var StudyIDExportHeader = []string{"participantId", "description", "status", "category", "notes"}

// WriteStudyIDs writes one CSV row per study id, header first.
func WriteStudyIDs(w io.Writer, ids []models.StudyID) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StudyIDExportHeader); err != nil {
		return err
	}
	for _, sid := range ids {
		row := []string{sid.ParticipantID, sid.Description, sid.Status, sid.Category, sid.Notes}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStudyIDTemplate writes the import template: the header plus two
// sample rows showing the expected shape.
func WriteStudyIDTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		StudyIDExportHeader,
		{"STUDY-001", "Sample participant description", "active", "main-study", "Any additional notes about this participant"},
		{"STUDY-002", "Another sample participant", "active", "control-group", "Control group participant"},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// StudyIDRow is a normalized row produced by PreScanStudyIDCSV. The
// participant id is upper-cased to match storage.
type StudyIDRow struct {
	ParticipantID string
	Description   string
	Status        string
	Category      string
	Notes         string
}

// RowError describes one rejected import line.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// PreScanStudyIDCSV reads all rows from r, skips a header if present,
// and validates each row. It never writes to a DB; callers insert the
// valid rows and report the rejected lines back. Duplicate ids within
// the file are reported here; duplicates against the collection are
// the store's concern.
func PreScanStudyIDCSV(r io.Reader) ([]StudyIDRow, []RowError) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		rows []StudyIDRow
		errs []RowError
		seen = map[string]bool{}
		line = 0
	)

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if len(rec) == 0 {
			continue
		}

		// Header detection on the first row only.
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "participantid") {
			continue
		}

		row := normalizeRow(rec)
		if row.ParticipantID == "" && row.Description == "" && row.Notes == "" {
			continue // blank line
		}
		if row.ParticipantID == "" {
			errs = append(errs, RowError{Line: line, Reason: "missing participant id"})
			continue
		}
		if seen[row.ParticipantID] {
			errs = append(errs, RowError{Line: line, Reason: "duplicate participant id " + row.ParticipantID})
			continue
		}
		seen[row.ParticipantID] = true
		rows = append(rows, row)
	}

	return rows, errs
}

func normalizeRow(rec []string) StudyIDRow {
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	return StudyIDRow{
		ParticipantID: strings.ToUpper(field(0)),
		Description:   field(1),
		Status:        field(2),
		Category:      field(3),
		Notes:         field(4),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
