package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/analysisrun"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/remap"
	"github.com/loadwise/loadwise/pkg/eventbus"
	"github.com/loadwise/loadwise/pkg/grid"
)

const rateKeyPrefix = "loads:analyze:"

// AnalysisMeta describes the analyzed window.
type AnalysisMeta struct {
	AnalyzedRows int       `json:"analyzedRows"`
	AnalyzedAt   time.Time `json:"analyzedAt"`
}

// AnalysisResult is the outcome of one sheet analysis. Loads is populated
// only when no error-severity issue was found; warnings alone never suppress
// it.
type AnalysisResult struct {
	OK      bool              `json:"ok"`
	Issues  []issue.Issue     `json:"issues"`
	Mapping map[string]string `json:"mapping"`
	Meta    AnalysisMeta      `json:"meta"`
	Loads   []load.Load       `json:"loads,omitempty"`
}

// AnalyzeInput names the sheet to analyze and the caller running it.
// Identity keys the per-caller rate gate; an empty identity skips it.
// Overrides force header-to-field assignments for this invocation only.
type AnalyzeInput struct {
	SheetID   string
	Identity  string
	TenantID  uuid.UUID
	UserID    uuid.UUID
	MaxRows   int
	Overrides map[string]load.Field
}

// AnalysisConfig tunes one service instance. Zero values fall back to 500
// rows, the process zone and error severity for the assumed-timezone issue.
type AnalysisConfig struct {
	MaxRows         int
	Zone            *time.Location
	ZoneName        string
	AssumedSeverity issue.Severity
	Overrides       map[string]load.Field
}

type AnalysisServiceConfig struct {
	Source    grid.Source
	Remaps    remap.Repository
	Runs      analysisrun.Repository
	Suggester Suggester
	Publisher eventbus.EventBus
	Gate      *limiter.Limiter
	Logger    *logrus.Logger
	Analysis  AnalysisConfig
}

// AnalysisService runs the full pipeline over one sheet: rate gate, snapshot,
// header mapping, row validation, aggregate zone issue, advisory suggestions
// and record construction. Each invocation is single-threaded and works on
// its own snapshot and zone contexts; nothing leaks between invocations.
type AnalysisService struct {
	source    grid.Source
	remaps    remap.Repository
	runs      analysisrun.Repository
	suggester Suggester
	publisher eventbus.EventBus
	gate      *limiter.Limiter
	resolver  *HeaderResolver
	validator *RowValidator
	builder   *LoadBuilder
	log       *logrus.Logger
	cfg       AnalysisConfig
}

func NewAnalysisService(cfg AnalysisServiceConfig) *AnalysisService {
	analysis := cfg.Analysis
	if analysis.MaxRows <= 0 {
		analysis.MaxRows = 500
	}
	if analysis.Zone == nil {
		analysis.Zone = time.Local
	}
	if analysis.ZoneName == "" {
		analysis.ZoneName = analysis.Zone.String()
	}
	if analysis.AssumedSeverity == "" {
		analysis.AssumedSeverity = issue.SeverityError
	}
	return &AnalysisService{
		source:    cfg.Source,
		remaps:    cfg.Remaps,
		runs:      cfg.Runs,
		suggester: cfg.Suggester,
		publisher: cfg.Publisher,
		gate:      cfg.Gate,
		resolver:  NewHeaderResolver(analysis.Overrides),
		validator: NewRowValidator(analysis.Zone),
		builder:   NewLoadBuilder(analysis.Zone),
		log:       cfg.Logger,
		cfg:       analysis,
	}
}

// Analyze runs the pipeline once. Analysis findings come back inside the
// result; the returned error covers infrastructure failures only.
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalysisResult, error) {
	if s.gate != nil && in.Identity != "" {
		lctx, err := s.gate.Get(ctx, rateKeyPrefix+in.Identity)
		if err != nil {
			return nil, errors.Wrap(err, "rate gate")
		}
		if lctx.Reached {
			loadsAnalyses.WithLabelValues("rate_limited").Inc()
			return errorResult(issue.New(
				issue.RateLimited,
				issue.SeverityError,
				"analysis rate limit reached, retry in a minute",
			)), nil
		}
	}

	maxRows := in.MaxRows
	if maxRows <= 0 {
		maxRows = s.cfg.MaxRows
	}
	snap, err := s.source.Snapshot(ctx, in.SheetID, maxRows)
	if err != nil {
		res := errorResult(issue.New(
			issue.SheetUnreadable,
			issue.SeverityError,
			fmt.Sprintf("sheet %q cannot be analyzed: %v", in.SheetID, err),
		))
		s.record(ctx, in, res)
		return res, nil
	}

	mapping, issues := s.resolver.Resolve(snap.Headers, in.Overrides)

	zc := NewZoneContext(s.cfg.ZoneName)
	rowIssues := s.validator.Validate(snap, mapping, zc)
	issues.Merge(&rowIssues)
	if zc.Used() {
		rows := zc.Rows()
		issues.Add(issue.New(
			issue.AssumedTimezone,
			s.cfg.AssumedSeverity,
			fmt.Sprintf("assumed timezone %s for %d row(s) without an explicit zone", zc.ZoneName(), len(rows)),
		).WithRows(rows...))
	}
	s.suggest(ctx, mapping, &issues)

	ok := !issues.HasErrors()
	buildCtx := NewZoneContext(s.cfg.ZoneName)
	records := s.builder.Build(snap, mapping, s.remapEntries(ctx, in.UserID), buildCtx)

	result := &AnalysisResult{
		OK:      ok,
		Issues:  issues.Issues(),
		Mapping: wireMapping(mapping),
		Meta:    AnalysisMeta{AnalyzedRows: len(snap.Rows), AnalyzedAt: time.Now()},
	}
	if ok {
		result.Loads = records
	}
	s.record(ctx, in, result)
	return result, nil
}

// suggest asks the advisory provider about headers the resolver could not
// place. Provider failures degrade to a warning; they never fail the run.
func (s *AnalysisService) suggest(ctx context.Context, m *load.Mapping, issues *issue.List) {
	if s.suggester == nil {
		return
	}
	unmapped := unmappedHeaders(m)
	var missing []load.Field
	for _, f := range load.RequiredFields() {
		if !m.IsMapped(f) {
			missing = append(missing, f)
		}
	}
	if len(unmapped) == 0 || len(missing) == 0 {
		return
	}
	proposals, err := s.suggester.SuggestHeaders(ctx, unmapped, missing)
	if err != nil {
		issues.Add(issue.New(
			issue.SuggestionFailed,
			issue.SeverityWarn,
			"header suggestions unavailable: "+err.Error(),
		))
		return
	}
	for _, header := range unmapped {
		if f, ok := proposals[header]; ok && validField(f) {
			issues.Add(issue.New(
				issue.HeaderSuggestion,
				issue.SeverityWarn,
				fmt.Sprintf("header %q may belong to field %q", header, f),
			).WithColumn(header).WithSuggestion(string(f)))
		}
	}
}

func (s *AnalysisService) remapEntries(ctx context.Context, userID uuid.UUID) map[load.Field]map[string]string {
	if s.remaps == nil || userID == uuid.Nil {
		return nil
	}
	out := make(map[load.Field]map[string]string)
	for _, f := range remap.SupportedFields() {
		set, err := s.remaps.GetByUserAndField(ctx, userID, f)
		if err != nil {
			if !errors.Is(err, remap.ErrRemapNotFound) && s.log != nil {
				s.log.WithError(err).WithField("field", f).Warn("remap lookup failed")
			}
			continue
		}
		if entries := set.Entries(); len(entries) > 0 {
			out[f] = entries
		}
	}
	return out
}

// record persists the run log entry and publishes the analyzed event, both
// best effort.
func (s *AnalysisService) record(ctx context.Context, in AnalyzeInput, res *AnalysisResult) {
	recordAnalysisMetrics(res.OK, res.Meta.AnalyzedRows, res.Issues)
	errCount := 0
	for _, iss := range res.Issues {
		if iss.Severity == issue.SeverityError {
			errCount++
		}
	}
	if s.runs != nil {
		run := analysisrun.New(in.TenantID, in.UserID, in.SheetID,
			analysisrun.WithOutcome(res.OK, res.Meta.AnalyzedRows, len(res.Issues), errCount))
		if err := s.runs.Save(ctx, run); err != nil && s.log != nil {
			s.log.WithError(err).WithField("sheet_id", in.SheetID).Warn("analysis run not recorded")
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(analysisrun.AnalyzedEvent{
			SheetID:      in.SheetID,
			TenantID:     in.TenantID,
			UserID:       in.UserID,
			OK:           res.OK,
			AnalyzedRows: res.Meta.AnalyzedRows,
			Issues:       len(res.Issues),
			Errors:       errCount,
		})
	}
}

func errorResult(iss issue.Issue) *AnalysisResult {
	return &AnalysisResult{
		OK:      false,
		Issues:  []issue.Issue{iss},
		Mapping: map[string]string{},
		Meta:    AnalysisMeta{AnalyzedRows: 0, AnalyzedAt: time.Now()},
	}
}

// wireMapping flattens the mapping to header text keyed pairs. When two
// columns share a header text the leftmost assignment wins.
func wireMapping(m *load.Mapping) map[string]string {
	out := make(map[string]string)
	for _, pair := range m.Pairs() {
		if _, taken := out[pair.Header]; !taken {
			out[pair.Header] = string(pair.Field)
		}
	}
	return out
}

// unmappedHeaders lists non-blank headers that resolved to no field and serve
// no split pair, in sheet order.
func unmappedHeaders(m *load.Mapping) []string {
	splitCols := make(map[int]struct{})
	for _, f := range load.TimestampFields() {
		if sc, ok := m.SplitFor(f); ok {
			splitCols[sc.DateCol] = struct{}{}
			splitCols[sc.TimeCol] = struct{}{}
		}
	}
	var out []string
	for col, header := range m.Headers() {
		if strings.TrimSpace(header) == "" {
			continue
		}
		if _, mapped := m.FieldFor(col); mapped {
			continue
		}
		if _, split := splitCols[col]; split {
			continue
		}
		out = append(out, header)
	}
	return out
}
