package loads_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/loadwise/loadwise/modules"
	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/configuration"
	"github.com/loadwise/loadwise/pkg/itf"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "loadwise-sheets-*")
	if err != nil {
		panic(err)
	}
	if err := os.Setenv("SHEETS_DIR", dir); err != nil {
		panic(err)
	}
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func canDialPostgres(tb testing.TB) bool {
	tb.Helper()

	cfg := configuration.Use()
	host := strings.TrimSpace(cfg.Database.Host)
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(cfg.Database.Port)
	if port == "" {
		port = "5432"
	}
	addr := net.JoinHostPort(host, port)

	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// writeSheet drops a workbook into the configured sheets directory so the
// module-wired store can open it by id.
func writeSheet(tb testing.TB, sheetID string, rows [][]any) {
	tb.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetList()[0]
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(tb, err)
			require.NoError(tb, f.SetCellValue(sheet, cell, v))
		}
	}
	dir := configuration.Use().Analysis.SheetsDir
	require.NoError(tb, f.SaveAs(filepath.Join(dir, sheetID+".xlsx")))
}

func TestModule_AnalyzeThroughRegisteredServices(t *testing.T) {
	if !canDialPostgres(t) {
		t.Skip("postgres is not reachable; skipping module integration test")
	}

	userID := uuid.New()
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		WithUserID(userID).
		Build(t)

	writeSheet(t, "module-board", [][]any{
		{"VRID", "Origin Address", "PU", "Destination Address", "DEL",
			"Load Status", "Driver Name", "Phone", "Unit", "Broker Name"},
		{"L-1001", "12 Dock St, Memphis TN", "2025-08-29T14:00:00Z",
			"500 Pier Ave, Dallas TX", "2025-08-30T02:00:00Z", "In Transit",
			"J. Soto", "901-555-0114", "T-204", "Acme Logistics"},
	})

	svc := itf.GetService[services.AnalysisService](env)
	require.NotNil(t, svc)

	res, err := svc.Analyze(env.Ctx, services.AnalyzeInput{
		SheetID:  "module-board",
		TenantID: env.TenantID,
		UserID:   env.UserID,
	})
	require.NoError(t, err)
	require.True(t, res.OK, "unexpected issues: %+v", res.Issues)
	require.Len(t, res.Loads, 1)
	assert.Equal(t, "L-1001", res.Loads[0].LoadID())
	assert.Equal(t, "2025-08-29T14:00:00Z", res.Loads[0].FromAppointment())
	assert.Equal(t, string(load.FieldLoadID), res.Mapping["VRID"])

	runs := itf.GetService[services.RunService](env)
	recent, err := runs.Recent(env.Ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].OK())
	assert.Equal(t, "module-board", recent[0].SheetID())
	assert.Equal(t, env.TenantID, recent[0].TenantID())
	assert.Equal(t, userID, recent[0].UserID())
	assert.Equal(t, 1, recent[0].AnalyzedRows())
}

func TestModule_RemapRoundTripChangesBuiltRecords(t *testing.T) {
	if !canDialPostgres(t) {
		t.Skip("postgres is not reachable; skipping module integration test")
	}

	userID := uuid.New()
	env := itf.NewTestContext().
		WithModules(modules.BuiltInModules...).
		WithUserID(userID).
		Build(t)

	writeSheet(t, "remap-board", [][]any{
		{"VRID", "Origin Address", "PU", "Destination Address", "DEL",
			"Load Status", "Driver Name", "Phone", "Unit", "Broker Name"},
		{"L-2001", "12 Dock St, Memphis TN", "2025-08-29T14:00:00Z",
			"500 Pier Ave, Dallas TX", "2025-08-30T02:00:00Z", "En Route",
			"J. Soto", "901-555-0114", "T-204", "Acme Logistics"},
	})

	remaps := itf.GetService[services.RemapService](env)
	_, err := remaps.Save(env.Ctx, env.TenantID, userID, load.FieldStatus,
		map[string]string{"En Route": "In Transit"})
	require.NoError(t, err)

	svc := itf.GetService[services.AnalysisService](env)
	res, err := svc.Analyze(env.Ctx, services.AnalyzeInput{
		SheetID:  "remap-board",
		TenantID: env.TenantID,
		UserID:   userID,
	})
	require.NoError(t, err)
	require.Len(t, res.Loads, 1)
	assert.Equal(t, "In Transit", res.Loads[0].Status())

	// Deleting the table restores pass-through of the literal value.
	require.NoError(t, remaps.Delete(env.Ctx, env.TenantID, userID, load.FieldStatus))
	res, err = svc.Analyze(env.Ctx, services.AnalyzeInput{
		SheetID:  "remap-board",
		TenantID: env.TenantID,
		UserID:   userID,
	})
	require.NoError(t, err)
	require.Len(t, res.Loads, 1)
	assert.Equal(t, "En Route", res.Loads[0].Status())
}
