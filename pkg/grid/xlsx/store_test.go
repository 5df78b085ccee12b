package xlsx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/loadwise/loadwise/pkg/grid"
	"github.com/loadwise/loadwise/pkg/grid/xlsx"
)

// writeWorkbook saves a single-sheet workbook where the first row is the
// header and the remaining rows are data. Ragged rows are allowed.
func writeWorkbook(t *testing.T, dir, name string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetList()[0]
	for i, row := range rows {
		for j, value := range row {
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, axis, value))
		}
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, name)))
}

func TestStore_Snapshot_TypedCells(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeWorkbook(t, dir, "board.xlsx", [][]any{
		{"Load ID", "Rate", "Pickup Date"},
		{"L-1001", 1250.5, "2024-03-05 14:00"},
		{"L-1002"},
	})

	store := xlsx.NewStore(dir)
	snap, err := store.Snapshot(context.Background(), "board", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Load ID", "Rate", "Pickup Date"}, snap.Headers)
	require.Len(t, snap.Rows, 2)

	assert.Equal(t, grid.KindText, snap.Cell(0, 0).Kind())
	assert.Equal(t, "L-1001", snap.Cell(0, 0).Text())

	rate, ok := snap.Cell(0, 1).Number()
	require.True(t, ok)
	assert.InDelta(t, 1250.5, rate, 0.0001)

	assert.Equal(t, "2024-03-05 14:00", snap.Cell(0, 2).Text())

	// Ragged second row reads back as empty cells, not an error.
	assert.True(t, snap.Cell(1, 1).IsEmpty())
	assert.True(t, snap.Cell(1, 2).IsEmpty())
}

func TestStore_Snapshot_MaxRowsBound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeWorkbook(t, dir, "board.xlsx", [][]any{
		{"Load ID"},
		{"L-1"},
		{"L-2"},
		{"L-3"},
	})

	store := xlsx.NewStore(dir)
	snap, err := store.Snapshot(context.Background(), "board", 2)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "L-2", snap.Cell(1, 0).Text())
}

func TestStore_Snapshot_HeaderOnlyWorkbook(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeWorkbook(t, dir, "empty.xlsx", [][]any{
		{"Load ID", "Rate"},
	})

	store := xlsx.NewStore(dir)
	_, err := store.Snapshot(context.Background(), "empty", 0)
	require.ErrorIs(t, err, grid.ErrTooFewRows)
}

func TestStore_Snapshot_MissingWorkbook(t *testing.T) {
	t.Parallel()

	store := xlsx.NewStore(t.TempDir())
	_, err := store.Snapshot(context.Background(), "nope", 0)
	require.ErrorIs(t, err, grid.ErrSheetNotFound)
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	store := xlsx.NewStore(t.TempDir())
	for _, id := range []string{"", "../escape", "a/b", `a\b`, ".."} {
		_, err := store.Snapshot(context.Background(), id, 0)
		require.Error(t, err, "sheet id %q must be rejected", id)
		require.NotErrorIs(t, err, grid.ErrSheetNotFound)
	}
}

func TestStore_Update_PersistsChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeWorkbook(t, dir, "board.xlsx", [][]any{
		{"Load ID", "Rate"},
		{"L-1001", "1,250.00"},
	})

	store := xlsx.NewStore(dir)
	err := store.Update(context.Background(), "board", func(ws grid.Worksheet) error {
		require.Equal(t, []string{"Load ID", "Rate"}, ws.Headers())
		require.Equal(t, 1, ws.RowCount())

		if err := ws.SetCell(0, 1, "1250.00"); err != nil {
			return err
		}
		col, err := ws.AppendHeader("Pickup Timezone")
		if err != nil {
			return err
		}
		return ws.SetCell(0, col, "-06:00")
	})
	require.NoError(t, err)

	snap, err := store.Snapshot(context.Background(), "board", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Load ID", "Rate", "Pickup Timezone"}, snap.Headers)
	assert.Equal(t, "1250.00", snap.Cell(0, 1).Text())
	assert.Equal(t, "-06:00", snap.Cell(0, 2).Text())
}

func TestStore_Update_CallbackErrorDiscardsChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeWorkbook(t, dir, "board.xlsx", [][]any{
		{"Load ID"},
		{"L-1001"},
	})

	store := xlsx.NewStore(dir)
	bounds := store.Update(context.Background(), "board", func(ws grid.Worksheet) error {
		return ws.SetCell(5, 0, "out of range")
	})
	require.ErrorIs(t, bounds, grid.ErrCellOutOfRange)

	snap, err := store.Snapshot(context.Background(), "board", 0)
	require.NoError(t, err)
	assert.Equal(t, "L-1001", snap.Cell(0, 0).Text())
}
