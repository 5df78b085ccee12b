package xlsx

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/loadwise/loadwise/pkg/grid"
)

// Store reads and writes .xlsx workbooks under a base directory. The sheet
// identifier is the workbook file name; analysis always targets the first
// worksheet.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(sheetID string) (string, error) {
	if sheetID == "" || strings.ContainsAny(sheetID, `/\`) || strings.Contains(sheetID, "..") {
		return "", errors.Errorf("invalid sheet id %q", sheetID)
	}
	if filepath.Ext(sheetID) == "" {
		sheetID += ".xlsx"
	}
	return filepath.Join(s.dir, sheetID), nil
}

func (s *Store) Snapshot(_ context.Context, sheetID string, maxRows int) (*grid.Snapshot, error) {
	path, err := s.path(sheetID)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(grid.ErrSheetNotFound, "open workbook %s: %v", sheetID, err)
	}
	defer func() { _ = f.Close() }()

	sheet, formatted, err := readShape(f)
	if err != nil {
		return nil, err
	}
	headers := formatted[0]

	dataRows := formatted[1:]
	if maxRows > 0 && len(dataRows) > maxRows {
		dataRows = dataRows[:maxRows]
	}
	rows := make([][]grid.Cell, len(dataRows))
	for i := range dataRows {
		cells := make([]grid.Cell, len(headers))
		for j := range headers {
			cells[j] = cellAt(f, sheet, i, j, dataRows[i])
		}
		rows[i] = cells
	}
	return grid.NewSnapshot(append([]string(nil), headers...), rows), nil
}

func (s *Store) Update(_ context.Context, sheetID string, fn func(ws grid.Worksheet) error) error {
	path, err := s.path(sheetID)
	if err != nil {
		return err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return errors.Wrapf(grid.ErrSheetNotFound, "open workbook %s: %v", sheetID, err)
	}
	defer func() { _ = f.Close() }()

	sheet, formatted, err := readShape(f)
	if err != nil {
		return err
	}
	ws := &worksheet{
		f:       f,
		sheet:   sheet,
		headers: append([]string(nil), formatted[0]...),
		rows:    formatted[1:],
	}
	if err := fn(ws); err != nil {
		return err
	}
	return errors.Wrapf(f.Save(), "save workbook %s", sheetID)
}

// readShape loads the first worksheet's formatted rows and enforces the
// header-plus-data minimum.
func readShape(f *excelize.File) (string, [][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, grid.ErrTooFewRows
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", nil, errors.Wrap(err, "read worksheet rows")
	}
	if len(rows) < 2 || len(rows[0]) == 0 {
		return "", nil, grid.ErrTooFewRows
	}
	return sheet, rows, nil
}

// cellAt builds a typed cell from the worksheet. row is zero-based within the
// data region; formattedRow is the matching formatted row, possibly ragged.
func cellAt(f *excelize.File, sheet string, row, col int, formattedRow []string) grid.Cell {
	formatted := ""
	if col < len(formattedRow) {
		formatted = formattedRow[col]
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+2)
	if err != nil {
		return grid.Empty()
	}
	raw, _ := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	if raw == "" && formatted == "" {
		return grid.Empty()
	}
	cellType, _ := f.GetCellType(sheet, axis)
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		if formatted != "" {
			return grid.Text(formatted)
		}
		return grid.Text(raw)
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return grid.Temporal(t)
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return grid.Number(n)
		}
		return grid.Text(formatted)
	case excelize.CellTypeBool, excelize.CellTypeError:
		return grid.Text(formatted)
	default:
		// Plain numbers carry no explicit type attribute in the sheet XML.
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return grid.Number(n)
		}
		if formatted != "" {
			return grid.Text(formatted)
		}
		return grid.Text(raw)
	}
}

type worksheet struct {
	f       *excelize.File
	sheet   string
	headers []string
	rows    [][]string
}

func (w *worksheet) Headers() []string {
	return w.headers
}

func (w *worksheet) RowCount() int {
	return len(w.rows)
}

func (w *worksheet) Cell(row, col int) grid.Cell {
	if row < 0 || row >= len(w.rows) || col < 0 || col >= len(w.headers) {
		return grid.Empty()
	}
	return cellAt(w.f, w.sheet, row, col, w.rows[row])
}

func (w *worksheet) SetCell(row, col int, text string) error {
	if row < 0 || row >= len(w.rows) || col < 0 || col >= len(w.headers) {
		return grid.ErrCellOutOfRange
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+2)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStr(w.sheet, axis, text); err != nil {
		return err
	}
	for len(w.rows[row]) <= col {
		w.rows[row] = append(w.rows[row], "")
	}
	w.rows[row][col] = text
	return nil
}

func (w *worksheet) AppendHeader(name string) (int, error) {
	col := len(w.headers)
	axis, err := excelize.CoordinatesToCellName(col+1, 1)
	if err != nil {
		return 0, err
	}
	if err := w.f.SetCellStr(w.sheet, axis, name); err != nil {
		return 0, err
	}
	w.headers = append(w.headers, name)
	return col, nil
}
