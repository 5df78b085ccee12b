package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
	"github.com/loadwise/loadwise/modules/loads/domain/value_objects/apptime"
	"github.com/loadwise/loadwise/pkg/grid"
)

// firstDataRow is the spreadsheet row number of the first data row; row 1 is
// the header. Issue rows are reported in spreadsheet numbering.
const firstDataRow = 2

// RowValidator runs the per-row checks over a snapshot. Checks are
// independent: a row can collect several issues and no check short-circuits
// another.
type RowValidator struct {
	loc *time.Location
}

// NewRowValidator creates a validator that interprets zone-less timestamps in
// loc. A nil loc means the process zone.
func NewRowValidator(loc *time.Location) *RowValidator {
	return &RowValidator{loc: loc}
}

// Validate checks every data row and the sheet-level status vocabulary. Rows
// whose timestamps needed the fallback zone are recorded into zc.
func (v *RowValidator) Validate(snap *grid.Snapshot, m *load.Mapping, zc *ZoneContext) issue.List {
	var issues issue.List
	seenIDs := make(map[string]struct{})

	for i := range snap.Rows {
		row := i + firstDataRow
		v.checkRequired(snap, m, i, row, &issues)
		v.checkDuplicateID(snap, m, i, row, seenIDs, &issues)
		for _, f := range load.TimestampFields() {
			v.checkTimestamp(snap, m, f, i, row, zc, &issues)
		}
	}
	v.checkStatusVocabulary(snap, m, &issues)
	return issues
}

// checkRequired reports a required field whose every source cell is blank. A
// field fed by split columns counts as empty only when both halves are.
func (v *RowValidator) checkRequired(snap *grid.Snapshot, m *load.Mapping, i, row int, issues *issue.List) {
	for _, f := range load.RequiredFields() {
		cells, header := sourceCells(snap, m, f, i)
		if len(cells) == 0 {
			continue
		}
		empty := true
		for _, c := range cells {
			if !c.IsEmpty() {
				empty = false
				break
			}
		}
		if empty {
			issues.Add(issue.New(
				issue.EmptyRequiredCell,
				issue.SeverityError,
				fmt.Sprintf("required field %q is empty", f),
			).WithRows(row).WithColumn(header))
		}
	}
}

// sourceCells lists every cell the field draws from at the given row, with
// the header used for issue attribution. A field-named column is the sole
// source when present.
func sourceCells(snap *grid.Snapshot, m *load.Mapping, f load.Field, i int) ([]grid.Cell, string) {
	if f.IsTimestamp() {
		if lit, ok := m.LiteralColumnFor(f); ok {
			return []grid.Cell{snap.Cell(i, lit)}, m.Header(lit)
		}
		if sc, ok := m.SplitFor(f); ok {
			cells := []grid.Cell{snap.Cell(i, sc.DateCol), snap.Cell(i, sc.TimeCol)}
			header := string(f)
			if col, mapped := m.ColumnFor(f); mapped {
				cells = append(cells, snap.Cell(i, col))
				header = m.Header(col)
			}
			return cells, header
		}
	}
	col, ok := m.ColumnFor(f)
	if !ok {
		return nil, ""
	}
	return []grid.Cell{snap.Cell(i, col)}, m.Header(col)
}

// checkDuplicateID reports the second and later occurrences of a load id.
// The first occurrence is never flagged.
func (v *RowValidator) checkDuplicateID(snap *grid.Snapshot, m *load.Mapping, i, row int, seen map[string]struct{}, issues *issue.List) {
	col, ok := m.ColumnFor(load.FieldLoadID)
	if !ok {
		return
	}
	id := strings.TrimSpace(snap.Cell(i, col).Text())
	if id == "" {
		return
	}
	if _, dup := seen[id]; dup {
		issues.Add(issue.New(
			issue.DuplicateID,
			issue.SeverityError,
			fmt.Sprintf("duplicate loadId %q", id),
		).WithRows(row).WithColumn(m.Header(col)))
		return
	}
	seen[id] = struct{}{}
}

// checkTimestamp applies either the split rule or the direct-value checks.
// The split rule governs whenever a date/time column pair exists and no
// field-named column does, regardless of any synonym-mapped column.
func (v *RowValidator) checkTimestamp(snap *grid.Snapshot, m *load.Mapping, f load.Field, i, row int, zc *ZoneContext, issues *issue.List) {
	_, hasLit := m.LiteralColumnFor(f)
	if sc, ok := m.SplitFor(f); ok && !hasLit {
		v.checkSplit(snap, m, f, sc, i, row, issues)
		return
	}
	col, ok := directColumn(m, f)
	if !ok {
		return
	}
	cell := snap.Cell(i, col)
	if cell.IsEmpty() {
		return
	}
	header := m.Header(col)
	iso, assumed, ok := apptime.NormalizeISO(cell, v.loc)
	if !ok {
		issues.Add(issue.New(
			issue.BadDateFormat,
			issue.SeverityError,
			fmt.Sprintf("value %q is not a recognized date/time", cellText(cell)),
		).WithRows(row).WithColumn(header))
		return
	}
	if assumed {
		issues.Add(issue.New(
			issue.TimezoneMissing,
			issue.SeverityError,
			fmt.Sprintf("timestamp %q has no explicit timezone", cellText(cell)),
		).WithRows(row).WithColumn(header))
		zc.Mark(row)
	}
	if !isCanonicalCell(cell) {
		issues.Add(issue.New(
			issue.NonISOOutput,
			issue.SeverityWarn,
			fmt.Sprintf("value %q is not canonical ISO-8601 UTC", cellText(cell)),
		).WithRows(row).WithColumn(header).WithSuggestion(iso))
	}
}

func (v *RowValidator) checkSplit(snap *grid.Snapshot, m *load.Mapping, f load.Field, sc load.SplitColumns, i, row int, issues *issue.List) {
	dateCell := snap.Cell(i, sc.DateCol)
	timeCell := snap.Cell(i, sc.TimeCol)
	if dateCell.IsEmpty() && timeCell.IsEmpty() {
		return
	}
	dateOK := apptime.DateExtractable(dateCell)
	timeOK := apptime.TimeExtractable(timeCell)
	if dateOK == timeOK {
		// Both halves resolve and combination is the builder's job, or
		// neither does and the required-field check already speaks.
		return
	}
	half, header := "time", m.Header(sc.TimeCol)
	if !dateOK {
		half, header = "date", m.Header(sc.DateCol)
	}
	issues.Add(issue.New(
		issue.BadDateFormat,
		issue.SeverityError,
		fmt.Sprintf("split %s half of %q is missing or invalid", half, f),
	).WithRows(row).WithColumn(header))
}

// checkStatusVocabulary emits one sheet-level warning when the status column
// carries more than one distinct literal.
func (v *RowValidator) checkStatusVocabulary(snap *grid.Snapshot, m *load.Mapping, issues *issue.List) {
	col, ok := m.ColumnFor(load.FieldStatus)
	if !ok {
		return
	}
	seen := make(map[string]struct{})
	var distinct []string
	for i := range snap.Rows {
		s := strings.TrimSpace(snap.Cell(i, col).Text())
		if s == "" {
			continue
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			distinct = append(distinct, s)
		}
	}
	if len(distinct) > 1 {
		issues.Add(issue.New(
			issue.StatusVocab,
			issue.SeverityWarn,
			fmt.Sprintf("status column has %d distinct spellings: %s", len(distinct), strings.Join(distinct, ", ")),
		).WithColumn(m.Header(col)))
	}
}

// directColumn returns the field's single-value source: the field-named
// column when present, otherwise the mapped one.
func directColumn(m *load.Mapping, f load.Field) (int, bool) {
	if col, ok := m.LiteralColumnFor(f); ok {
		return col, true
	}
	return m.ColumnFor(f)
}

func isCanonicalCell(c grid.Cell) bool {
	return c.Kind() == grid.KindText && apptime.IsCanonical(strings.TrimSpace(c.Text()))
}

func cellText(c grid.Cell) string {
	return strings.TrimSpace(c.Text())
}
