package grid

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSheetNotFound is returned when the sheet identifier resolves to nothing.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrTooFewRows is returned for sheets without a header row and at least
	// one data row.
	ErrTooFewRows = errors.New("sheet must have a header row and at least one data row")
	// ErrCellOutOfRange is returned for writes outside the sheet's data region.
	ErrCellOutOfRange = errors.New("cell out of range")
)

// Kind discriminates the value stored in a Cell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindTemporal
)

// Cell is a single spreadsheet cell value: empty, text, a number or a native
// date/time produced by the host spreadsheet environment.
type Cell struct {
	kind Kind
	text string
	num  float64
	when time.Time
}

func Empty() Cell {
	return Cell{kind: KindEmpty}
}

func Text(s string) Cell {
	return Cell{kind: KindText, text: s}
}

func Number(n float64) Cell {
	return Cell{kind: KindNumber, num: n}
}

func Temporal(t time.Time) Cell {
	return Cell{kind: KindTemporal, when: t}
}

func (c Cell) Kind() Kind {
	return c.kind
}

// IsEmpty reports whether the cell is empty or whitespace-only text.
func (c Cell) IsEmpty() bool {
	return c.kind == KindEmpty || (c.kind == KindText && strings.TrimSpace(c.text) == "")
}

// Text returns the textual form of the cell. For text cells this is the raw
// string as entered; other kinds render a plain display form.
func (c Cell) Text() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindTemporal:
		return c.when.Format(time.RFC3339)
	default:
		return ""
	}
}

func (c Cell) Number() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

func (c Cell) Time() (time.Time, bool) {
	if c.kind != KindTemporal {
		return time.Time{}, false
	}
	return c.when, true
}

// Snapshot is a bounded in-memory view of one sheet: the header row plus the
// data rows below it. Data row i corresponds to spreadsheet row i+2.
type Snapshot struct {
	Headers []string
	Rows    [][]Cell
}

func NewSnapshot(headers []string, rows [][]Cell) *Snapshot {
	return &Snapshot{Headers: headers, Rows: rows}
}

// Cell returns the cell at the given data row and column, or an empty cell
// when the row is ragged.
func (s *Snapshot) Cell(row, col int) Cell {
	if row < 0 || row >= len(s.Rows) || col < 0 {
		return Empty()
	}
	cells := s.Rows[row]
	if col >= len(cells) {
		return Empty()
	}
	return cells[col]
}

// Source reads bounded sheet snapshots.
type Source interface {
	// Snapshot loads up to maxRows data rows of the sheet. maxRows <= 0 means
	// no bound. Sheets without a header row and at least one data row return
	// ErrTooFewRows.
	Snapshot(ctx context.Context, sheetID string, maxRows int) (*Snapshot, error)
}

// Worksheet is the mutable view handed to Store.Update callbacks. Row and
// column indices address the data region, excluding the header row.
type Worksheet interface {
	Headers() []string
	RowCount() int
	Cell(row, col int) Cell
	SetCell(row, col int, text string) error
	// AppendHeader adds a column at the end of the header row and returns its
	// zero-based index.
	AppendHeader(name string) (int, error)
}

// Store is a Source whose sheets can be mutated in place.
type Store interface {
	Source
	// Update opens the sheet for writing, invokes fn and persists the changes
	// iff fn returns nil.
	Update(ctx context.Context, sheetID string, fn func(ws Worksheet) error) error
}
