package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/grid"
)

var splitHeaders = []string{
	"VRID", "From", "PU Date", "PU Time", "To", "DEL", "Status",
	"Driver", "Unit", "Customer",
}

func splitRows() [][]string {
	return [][]string{
		{"L-1", "12 Dock St", "8/29/2025", "2:30 PM", "500 Pier Ave", "2025-08-30T02:00:00Z", "In Transit", "J. Soto", "T-204", "Acme"},
		{"L-2", "88 Yard Rd", "soon", "2:30 PM", "74 Gate Blvd", "8/30/2025 2:00", "In Transit", "M. Reyes", "T-110", "Acme"},
	}
}

func newAutoFix(store grid.Store) *services.AutoFixService {
	return services.NewAutoFixService(services.AutoFixServiceConfig{
		Store:    store,
		Analysis: services.AnalysisConfig{Zone: time.UTC, ZoneName: "UTC"},
	})
}

func headerIndex(t *testing.T, headers []string, name string) int {
	t.Helper()
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	t.Fatalf("header %q not found in %v", name, headers)
	return -1
}

func TestAutoFixService_Plan(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", splitHeaders, splitRows())
	plan, err := newAutoFix(store).Plan(context.Background(), "board")
	require.NoError(t, err)

	require.Len(t, plan.MissingColumns, 1)
	assert.Equal(t, load.FieldFromAppointment, plan.MissingColumns[0].Field)
	assert.Equal(t, string(load.FieldFromAppointment), plan.MissingColumns[0].Header)

	require.Len(t, plan.DateFixes, 2)
	from, to := plan.DateFixes[0], plan.DateFixes[1]
	assert.Equal(t, load.FieldFromAppointment, from.Field)
	assert.True(t, from.CreateColumn)
	assert.Equal(t, 1, from.FixableRows, "only the row with both halves parseable")
	assert.Equal(t, 2, from.TotalRows)

	// The synonym-mapped DEL column is left alone; fixes target a column
	// named after the field.
	assert.Equal(t, load.FieldToAppointment, to.Field)
	assert.Equal(t, string(load.FieldToAppointment), to.TargetHeader)
	assert.True(t, to.CreateColumn)
	assert.Equal(t, 1, to.FixableRows, "only the canonical direct value is safe")
	assert.NotEmpty(t, plan.Summary)

	// Planning never writes.
	snap, err := store.Snapshot(context.Background(), "board", 0)
	require.NoError(t, err)
	assert.Equal(t, splitHeaders, snap.Headers)
}

func TestAutoFixService_Apply_CreatesColumnsAndNormalizes(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", splitHeaders, splitRows())
	report, err := newAutoFix(store).Apply(context.Background(), "board", services.ApplyOptions{
		CreateMissingColumns: true,
		NormalizeDates:       true,
		TimezoneOffset:       "-06:00",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, report.CreatedColumns, []string{
		string(load.FieldFromAppointment), string(load.FieldToAppointment),
	})
	assert.Equal(t, 2, report.UpdatedCells)

	snap, err := store.Snapshot(context.Background(), "board", 0)
	require.NoError(t, err)
	fromCol := headerIndex(t, snap.Headers, string(load.FieldFromAppointment))
	toCol := headerIndex(t, snap.Headers, string(load.FieldToAppointment))

	// Split halves combined through the forced -06:00 offset.
	assert.Equal(t, "2025-08-29T20:30:00Z", snap.Cell(0, fromCol).Text())
	// The unparsable date half leaves the row unfixed.
	assert.True(t, snap.Cell(1, fromCol).IsEmpty())
	// The canonical direct value lands in the dedicated column; the
	// ambiguous one on row two is not guessed at.
	assert.Equal(t, "2025-08-30T02:00:00Z", snap.Cell(0, toCol).Text())
	assert.True(t, snap.Cell(1, toCol).IsEmpty())
	// Original columns are untouched.
	assert.Equal(t, "8/29/2025", snap.Cell(0, headerIndex(t, snap.Headers, "PU Date")).Text())
	assert.Equal(t, "8/30/2025 2:00", snap.Cell(1, headerIndex(t, snap.Headers, "DEL")).Text())
}

func TestAutoFixService_Apply_Idempotent(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", splitHeaders, splitRows())
	fix := newAutoFix(store)
	opts := services.ApplyOptions{CreateMissingColumns: true, NormalizeDates: true, TimezoneOffset: "-06:00"}

	_, err := fix.Apply(context.Background(), "board", opts)
	require.NoError(t, err)
	again, err := fix.Apply(context.Background(), "board", opts)
	require.NoError(t, err)

	assert.Empty(t, again.CreatedColumns)
	assert.Zero(t, again.UpdatedCells)
}

func TestAutoFixService_Apply_SkipsEpochArtifacts(t *testing.T) {
	t.Parallel()

	headers := []string{"loadId", "fromAppointmentDateTimeUTC"}
	store := grid.NewMemoryStore()
	store.Put("board", headers, [][]grid.Cell{
		{grid.Text("L-1"), grid.Number(0.5)},
		{grid.Text("L-2"), grid.Number(45898.604166667)},
	})

	report, err := newAutoFix(store).Apply(context.Background(), "board", services.ApplyOptions{NormalizeDates: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.UpdatedCells)

	snap, err := store.Snapshot(context.Background(), "board", 0)
	require.NoError(t, err)
	// A bare time fraction never carried a date and is left alone.
	n, isNumber := snap.Cell(0, 1).Number()
	require.True(t, isNumber)
	assert.Equal(t, 0.5, n)
	// A full serial is safe to rewrite.
	assert.Contains(t, snap.Cell(1, 1).Text(), "T14:30:00Z")
}

func TestAutoFixService_Apply_RejectsBadOffset(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", splitHeaders, splitRows())
	_, err := newAutoFix(store).Apply(context.Background(), "board", services.ApplyOptions{
		NormalizeDates: true,
		TimezoneOffset: "central",
	})
	require.Error(t, err)
}

func TestAutoFixService_Plan_UnknownSheet(t *testing.T) {
	t.Parallel()

	_, err := newAutoFix(grid.NewMemoryStore()).Plan(context.Background(), "nope")
	require.Error(t, err)
}
