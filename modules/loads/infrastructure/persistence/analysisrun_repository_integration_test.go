package persistence_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/infrastructure/persistence"
	"github.com/loadwise/loadwise/pkg/composables"
	"github.com/loadwise/loadwise/pkg/configuration"
	"github.com/loadwise/loadwise/pkg/itf"
)

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

func readGooseUpSQL(tb testing.TB, path string) string {
	tb.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(tb, err)

	s := string(raw)
	if idx := strings.Index(s, "-- +goose Down"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

func setupRunDB(tb testing.TB, tenantID uuid.UUID) context.Context {
	tb.Helper()

	if !canDialPostgres(tb) {
		tb.Skip("postgres is not reachable; skipping run log integration test")
	}

	ctx := context.Background()
	dbName := tb.Name()
	itf.CreateDB(dbName)
	pool := itf.NewPool(itf.DbOpts(dbName))
	tb.Cleanup(pool.Close)

	sql := readGooseUpSQL(tb, filepath.Join("schema", "00001_loads.sql"))
	_, err := pool.Exec(ctx, sql)
	require.NoError(tb, err)

	ctx = composables.WithPool(ctx, pool)
	return composables.WithTenantID(ctx, tenantID)
}

func TestAnalysisRunRepository_SaveAndList(t *testing.T) {
	tenantID := uuid.New()
	ctx := setupRunDB(t, tenantID)
	repo := persistence.NewAnalysisRunRepository()

	userID := uuid.New()
	first := analysisrun.New(tenantID, userID, "board",
		analysisrun.WithOutcome(false, 12, 3, 2),
		analysisrun.WithCreatedAt(time.Now().UTC().Add(-time.Minute)),
	)
	second := analysisrun.New(tenantID, userID, "board",
		analysisrun.WithOutcome(true, 12, 0, 0),
	)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	require.Equal(t, second.ID(), runs[0].ID())
	require.True(t, runs[0].OK())
	require.Equal(t, first.ID(), runs[1].ID())
	require.False(t, runs[1].OK())
	require.Equal(t, 12, runs[1].AnalyzedRows())
	require.Equal(t, 3, runs[1].IssueCount())
	require.Equal(t, 2, runs[1].ErrorCount())
	require.Equal(t, "board", runs[1].SheetID())
	require.Equal(t, tenantID, runs[1].TenantID())
	require.Equal(t, userID, runs[1].UserID())
}

func TestAnalysisRunRepository_ListScopesToTenant(t *testing.T) {
	tenantID := uuid.New()
	ctx := setupRunDB(t, tenantID)
	repo := persistence.NewAnalysisRunRepository()

	require.NoError(t, repo.Save(ctx, analysisrun.New(tenantID, uuid.New(), "mine",
		analysisrun.WithOutcome(true, 4, 0, 0),
	)))

	otherCtx := composables.WithTenantID(ctx, uuid.New())
	require.NoError(t, repo.Save(otherCtx, analysisrun.New(uuid.Nil, uuid.New(), "theirs",
		analysisrun.WithOutcome(true, 1, 0, 0),
	)))

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "mine", runs[0].SheetID())
}

func TestAnalysisRunRepository_ListHonorsLimit(t *testing.T) {
	tenantID := uuid.New()
	ctx := setupRunDB(t, tenantID)
	repo := persistence.NewAnalysisRunRepository()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, analysisrun.New(tenantID, uuid.Nil, "board",
			analysisrun.WithOutcome(true, i, 0, 0),
			analysisrun.WithCreatedAt(base.Add(time.Duration(i)*time.Minute)),
		)))
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, 4, runs[0].AnalyzedRows())
	require.Equal(t, 3, runs[1].AnalyzedRows())
}
