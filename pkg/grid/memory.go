package grid

import (
	"context"
	"sync"
)

// MemoryStore keeps sheets in memory. It backs tests and ad-hoc analyses of
// grids that never touch disk.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string]*memorySheet
}

type memorySheet struct {
	headers []string
	rows    [][]Cell
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string]*memorySheet)}
}

// Put replaces the sheet stored under id.
func (m *MemoryStore) Put(id string, headers []string, rows [][]Cell) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([][]Cell, len(rows))
	for i, row := range rows {
		copied[i] = append([]Cell(nil), row...)
	}
	m.sheets[id] = &memorySheet{
		headers: append([]string(nil), headers...),
		rows:    copied,
	}
}

// PutStrings stores a sheet of plain text cells, converting empty strings to
// empty cells.
func (m *MemoryStore) PutStrings(id string, headers []string, rows [][]string) {
	converted := make([][]Cell, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			if v == "" {
				cells[j] = Empty()
			} else {
				cells[j] = Text(v)
			}
		}
		converted[i] = cells
	}
	m.Put(id, headers, converted)
}

func (m *MemoryStore) Snapshot(_ context.Context, sheetID string, maxRows int) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return nil, ErrSheetNotFound
	}
	if len(sheet.headers) == 0 || len(sheet.rows) == 0 {
		return nil, ErrTooFewRows
	}
	rows := sheet.rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	copied := make([][]Cell, len(rows))
	for i, row := range rows {
		copied[i] = append([]Cell(nil), row...)
	}
	return NewSnapshot(append([]string(nil), sheet.headers...), copied), nil
}

func (m *MemoryStore) Update(_ context.Context, sheetID string, fn func(ws Worksheet) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[sheetID]
	if !ok {
		return ErrSheetNotFound
	}
	ws := &memoryWorksheet{sheet: &memorySheet{
		headers: append([]string(nil), sheet.headers...),
		rows:    make([][]Cell, len(sheet.rows)),
	}}
	for i, row := range sheet.rows {
		ws.sheet.rows[i] = append([]Cell(nil), row...)
	}
	if err := fn(ws); err != nil {
		return err
	}
	m.sheets[sheetID] = ws.sheet
	return nil
}

type memoryWorksheet struct {
	sheet *memorySheet
}

func (w *memoryWorksheet) Headers() []string {
	return w.sheet.headers
}

func (w *memoryWorksheet) RowCount() int {
	return len(w.sheet.rows)
}

func (w *memoryWorksheet) Cell(row, col int) Cell {
	if row < 0 || row >= len(w.sheet.rows) || col < 0 {
		return Empty()
	}
	cells := w.sheet.rows[row]
	if col >= len(cells) {
		return Empty()
	}
	return cells[col]
}

func (w *memoryWorksheet) SetCell(row, col int, text string) error {
	if row < 0 || row >= len(w.sheet.rows) || col < 0 || col >= len(w.sheet.headers) {
		return ErrCellOutOfRange
	}
	cells := w.sheet.rows[row]
	for len(cells) <= col {
		cells = append(cells, Empty())
	}
	cells[col] = Text(text)
	w.sheet.rows[row] = cells
	return nil
}

func (w *memoryWorksheet) AppendHeader(name string) (int, error) {
	w.sheet.headers = append(w.sheet.headers, name)
	return len(w.sheet.headers) - 1, nil
}
