package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/modules/loads/services"
	"github.com/loadwise/loadwise/pkg/eventbus"
	"github.com/loadwise/loadwise/pkg/grid"
	"github.com/loadwise/loadwise/pkg/logging"
)

var okHeaders = []string{
	"VRID", "Origin Address", "PU", "Destination Address", "DEL",
	"Load Status", "Driver Name", "Phone", "Unit", "Broker Name",
}

func okRow(id string) []string {
	return []string{
		id, "12 Dock St, Memphis TN", "2025-08-29T14:00:00Z",
		"500 Pier Ave, Dallas TX", "2025-08-30T02:00:00Z", "In Transit",
		"J. Soto", "901-555-0114", "T-204", "Acme Logistics",
	}
}

type runLogStub struct {
	mu    sync.Mutex
	saved []analysisrun.Run
}

func (s *runLogStub) Save(_ context.Context, run analysisrun.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, run)
	return nil
}

func (s *runLogStub) List(_ context.Context, limit int) ([]analysisrun.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.saved) {
		limit = len(s.saved)
	}
	out := make([]analysisrun.Run, limit)
	copy(out, s.saved[len(s.saved)-limit:])
	return out, nil
}

type remapStub struct {
	sets map[load.Field]remap.Set
}

func (s *remapStub) GetByUserAndField(_ context.Context, _ uuid.UUID, field load.Field) (remap.Set, error) {
	if set, ok := s.sets[field]; ok {
		return set, nil
	}
	return nil, remap.ErrRemapNotFound
}

func (s *remapStub) Save(_ context.Context, set remap.Set) (remap.Set, error) {
	if s.sets == nil {
		s.sets = map[load.Field]remap.Set{}
	}
	s.sets[set.Field()] = set
	return set, nil
}

func (s *remapStub) Delete(_ context.Context, _ uuid.UUID, field load.Field) error {
	delete(s.sets, field)
	return nil
}

type suggesterStub struct {
	proposals map[string]load.Field
	err       error
	calls     int
}

func (s *suggesterStub) SuggestHeaders(_ context.Context, _ []string, _ []load.Field) (map[string]load.Field, error) {
	s.calls++
	return s.proposals, s.err
}

type countingSource struct {
	inner grid.Source
	reads int
}

func (c *countingSource) Snapshot(ctx context.Context, sheetID string, maxRows int) (*grid.Snapshot, error) {
	c.reads++
	return c.inner.Snapshot(ctx, sheetID, maxRows)
}

func newService(t *testing.T, cfg services.AnalysisServiceConfig) *services.AnalysisService {
	t.Helper()
	if cfg.Analysis.Zone == nil {
		cfg.Analysis.Zone = time.UTC
		cfg.Analysis.ZoneName = "UTC"
	}
	return services.NewAnalysisService(cfg)
}

func TestAnalysisService_Analyze_ValidSheet(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-1"), okRow("L-2")})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Empty(t, res.Issues)
	require.Len(t, res.Loads, 2)
	assert.Equal(t, "L-1", res.Loads[0].LoadID())
	assert.Equal(t, "2025-08-29T14:00:00Z", res.Loads[0].FromAppointment())
	assert.Equal(t, "loadId", res.Mapping["VRID"])
	assert.Equal(t, "fromAppointmentDateTimeUTC", res.Mapping["PU"])
	assert.Equal(t, 2, res.Meta.AnalyzedRows)
	assert.False(t, res.Meta.AnalyzedAt.IsZero())
	assert.Zero(t, countByCode(res.Issues, issue.AssumedTimezone))
}

func TestAnalysisService_Analyze_ErrorsSuppressLoads(t *testing.T) {
	t.Parallel()

	bad := okRow("L-2")
	bad[2] = "call dispatch"
	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-1"), bad})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Nil(t, res.Loads)
	assert.Equal(t, 1, countByCode(res.Issues, issue.BadDateFormat))
	// The failed row still counts toward the analyzed window.
	assert.Equal(t, 2, res.Meta.AnalyzedRows)
}

func TestAnalysisService_Analyze_WarningsAloneKeepLoads(t *testing.T) {
	t.Parallel()

	second := okRow("L-2")
	second[5] = "IN TRANSIT"
	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-1"), second})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, 1, countByCode(res.Issues, issue.StatusVocab))
	assert.Len(t, res.Loads, 2)
}

func TestAnalysisService_Analyze_AssumedTimezoneAggregatesOnce(t *testing.T) {
	t.Parallel()

	first := okRow("L-1")
	first[2] = "2025-08-29 14:00"
	second := okRow("L-2")
	second[4] = "8/30/2025 2:00"
	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{first, second})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Equal(t, 2, countByCode(res.Issues, issue.TimezoneMissing))
	require.Equal(t, 1, countByCode(res.Issues, issue.AssumedTimezone))
	for _, iss := range res.Issues {
		if iss.Code == issue.AssumedTimezone {
			assert.Equal(t, issue.SeverityError, iss.Severity)
			assert.Equal(t, []int{2, 3}, iss.Rows)
			assert.Contains(t, iss.Message, "UTC")
		}
	}
}

func TestAnalysisService_Analyze_AssumedSeverityConfigurable(t *testing.T) {
	t.Parallel()

	first := okRow("L-1")
	first[2] = "2025-08-29 14:00"
	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{first})
	svc := newService(t, services.AnalysisServiceConfig{
		Source:   store,
		Analysis: services.AnalysisConfig{AssumedSeverity: issue.SeverityWarn},
	})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)
	for _, iss := range res.Issues {
		if iss.Code == issue.AssumedTimezone {
			assert.Equal(t, issue.SeverityWarn, iss.Severity)
		}
	}
}

func TestAnalysisService_Analyze_ZoneContextIsFreshPerInvocation(t *testing.T) {
	t.Parallel()

	first := okRow("L-1")
	first[2] = "2025-08-29 14:00"
	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{first})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	for i := 0; i < 3; i++ {
		res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
		require.NoError(t, err)
		for _, iss := range res.Issues {
			if iss.Code == issue.AssumedTimezone {
				assert.Equal(t, []int{2}, iss.Rows, "iteration %d", i)
			}
		}
	}
}

func TestAnalysisService_Analyze_RateLimited(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-1")})
	source := &countingSource{inner: store}
	gate := limiter.New(memorystore.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1})
	svc := newService(t, services.AnalysisServiceConfig{Source: source, Gate: gate})

	in := services.AnalyzeInput{SheetID: "board", Identity: "user-17"}
	res, err := svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = svc.Analyze(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, issue.RateLimited, res.Issues[0].Code)
	assert.Equal(t, issue.SeverityError, res.Issues[0].Severity)
	assert.Empty(t, res.Mapping)
	assert.Nil(t, res.Loads)
	// The gated invocation never touched the sheet.
	assert.Equal(t, 1, source.reads)

	// A different identity is not affected.
	res, err = svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board", Identity: "user-18"})
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestAnalysisService_Analyze_SheetUnreadable(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("headers-only", okHeaders, nil)
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "missing"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, issue.SheetUnreadable, res.Issues[0].Code)
	assert.Nil(t, res.Loads)

	res, err = svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "headers-only"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, issue.SheetUnreadable, res.Issues[0].Code)
}

func TestAnalysisService_Analyze_DuplicateIDs(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-7"), okRow("L-7")})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Nil(t, res.Loads)
	assert.Equal(t, 1, countByCode(res.Issues, issue.DuplicateID))
}

func TestAnalysisService_Analyze_RecordsRunAndPublishesEvent(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-1")})
	runs := &runLogStub{}
	publisher := eventbus.NewEventPublisher(logging.ConsoleLogger(logrus.ErrorLevel))
	var captured analysisrun.AnalyzedEvent
	publisher.Subscribe(func(e analysisrun.AnalyzedEvent) { captured = e })

	tenantID, userID := uuid.New(), uuid.New()
	svc := newService(t, services.AnalysisServiceConfig{Source: store, Runs: runs, Publisher: publisher})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{
		SheetID:  "board",
		TenantID: tenantID,
		UserID:   userID,
	})
	require.NoError(t, err)
	require.True(t, res.OK)

	require.Len(t, runs.saved, 1)
	run := runs.saved[0]
	assert.Equal(t, "board", run.SheetID())
	assert.Equal(t, tenantID, run.TenantID())
	assert.Equal(t, userID, run.UserID())
	assert.True(t, run.OK())
	assert.Equal(t, 1, run.AnalyzedRows())
	assert.Zero(t, run.ErrorCount())

	assert.Equal(t, "board", captured.SheetID)
	assert.True(t, captured.OK)
	assert.Equal(t, 1, captured.AnalyzedRows)
}

func TestAnalysisService_Analyze_AppliesUserRemaps(t *testing.T) {
	t.Parallel()

	store := grid.NewMemoryStore()
	store.PutStrings("board", okHeaders, [][]string{okRow("L-1")})
	userID := uuid.New()
	remaps := &remapStub{sets: map[load.Field]remap.Set{
		load.FieldStatus: remap.New(uuid.New(), userID, load.FieldStatus,
			remap.WithEntries(map[string]string{"In Transit": "IN_TRANSIT"})),
	}}
	svc := newService(t, services.AnalysisServiceConfig{Source: store, Remaps: remaps})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board", UserID: userID})
	require.NoError(t, err)
	require.Len(t, res.Loads, 1)
	assert.Equal(t, "IN_TRANSIT", res.Loads[0].Status())
}

func TestAnalysisService_Analyze_HeaderSuggestionsAreAdvisory(t *testing.T) {
	t.Parallel()

	headers := []string{"VRID", "Chauffeur", "Origin Address", "PU", "Destination Address", "DEL", "Load Status", "Unit", "Broker Name"}
	row := []string{"L-1", "J. Soto", "12 Dock St", "2025-08-29T14:00:00Z", "500 Pier Ave", "2025-08-30T02:00:00Z", "In Transit", "T-204", "Acme"}
	store := grid.NewMemoryStore()
	store.PutStrings("board", headers, [][]string{row})

	sug := &suggesterStub{proposals: map[string]load.Field{"Chauffeur": load.FieldDriverName}}
	svc := newService(t, services.AnalysisServiceConfig{Source: store, Suggester: sug})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)

	require.Equal(t, 1, countByCode(res.Issues, issue.HeaderSuggestion))
	for _, iss := range res.Issues {
		if iss.Code == issue.HeaderSuggestion {
			assert.Equal(t, issue.SeverityWarn, iss.Severity)
			assert.Equal(t, "Chauffeur", iss.Column)
			assert.Equal(t, string(load.FieldDriverName), iss.Suggestion)
		}
	}
	// The proposal never mutates the mapping.
	_, mapped := res.Mapping["Chauffeur"]
	assert.False(t, mapped)
	assert.Equal(t, 1, sug.calls)
}

func TestAnalysisService_Analyze_SuggesterFailureIsAWarning(t *testing.T) {
	t.Parallel()

	headers := []string{"VRID", "Chauffeur"}
	store := grid.NewMemoryStore()
	store.PutStrings("board", headers, [][]string{{"L-1", "J. Soto"}})
	sug := &suggesterStub{err: context.DeadlineExceeded}
	svc := newService(t, services.AnalysisServiceConfig{Source: store, Suggester: sug})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{SheetID: "board"})
	require.NoError(t, err)
	assert.Equal(t, 1, countByCode(res.Issues, issue.SuggestionFailed))
}

func TestAnalysisService_Analyze_RequestOverrides(t *testing.T) {
	t.Parallel()

	headers := append([]string{}, okHeaders...)
	headers[0] = "Internal Ref"
	store := grid.NewMemoryStore()
	store.PutStrings("board", headers, [][]string{okRow("L-1")})
	svc := newService(t, services.AnalysisServiceConfig{Source: store})

	res, err := svc.Analyze(context.Background(), services.AnalyzeInput{
		SheetID:   "board",
		Overrides: map[string]load.Field{"Internal Ref": load.FieldLoadID},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "loadId", res.Mapping["Internal Ref"])
	require.Len(t, res.Loads, 1)
	assert.Equal(t, "L-1", res.Loads[0].LoadID())
}

func countByCode(issues []issue.Issue, code issue.Code) int {
	n := 0
	for _, iss := range issues {
		if iss.Code == code {
			n++
		}
	}
	return n
}
