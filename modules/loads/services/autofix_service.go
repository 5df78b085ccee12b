package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/value_objects/apptime"
	"github.com/loadwise/loadwise/pkg/grid"
)

// FixPlan describes what an apply run would change, computed without
// touching the sheet.
type FixPlan struct {
	MissingColumns []MissingColumnFix `json:"missingColumns"`
	DateFixes      []DateFix          `json:"dateFixes"`
	Summary        string             `json:"summary"`
}

// MissingColumnFix proposes a new column named after a required field that
// resolved to no header.
type MissingColumnFix struct {
	Field  load.Field `json:"field"`
	Header string     `json:"header"`
}

// DateFix reports, for one timestamp field, how many rows hold a value safe
// enough to rewrite into the field's own column.
type DateFix struct {
	Field        load.Field `json:"field"`
	TargetHeader string     `json:"targetHeader"`
	CreateColumn bool       `json:"createColumn"`
	FixableRows  int        `json:"fixableRows"`
	TotalRows    int        `json:"totalRows"`
}

// ApplyOptions selects which fixes to run. TimezoneOffset, when set, forces
// a fixed UTC offset instead of the configured fallback zone.
type ApplyOptions struct {
	CreateMissingColumns bool   `json:"createMissingColumns"`
	NormalizeDates       bool   `json:"normalizeDates"`
	TimezoneOffset       string `json:"timezoneOffset"`
}

// NormalizedField reports the write outcome for one timestamp field.
type NormalizedField struct {
	Field       load.Field `json:"field"`
	Header      string     `json:"header"`
	RowsUpdated int        `json:"rowsUpdated"`
}

type ApplyReport struct {
	CreatedColumns []string          `json:"createdColumns"`
	Normalized     []NormalizedField `json:"normalized"`
	UpdatedCells   int               `json:"updatedCells"`
	Message        string            `json:"message"`
}

type AutoFixServiceConfig struct {
	Store    grid.Store
	Logger   *logrus.Logger
	Analysis AnalysisConfig
}

// AutoFixService plans and applies mechanical sheet repairs: creating columns
// for unresolved required fields and rewriting timestamp values that can be
// normalized without guessing. Values it is not sure about are left alone.
type AutoFixService struct {
	store    grid.Store
	resolver *HeaderResolver
	loc      *time.Location
	maxRows  int
	log      *logrus.Logger
}

func NewAutoFixService(cfg AutoFixServiceConfig) *AutoFixService {
	loc := cfg.Analysis.Zone
	if loc == nil {
		loc = time.Local
	}
	maxRows := cfg.Analysis.MaxRows
	if maxRows <= 0 {
		maxRows = 500
	}
	return &AutoFixService{
		store:    cfg.Store,
		resolver: NewHeaderResolver(cfg.Analysis.Overrides),
		loc:      loc,
		maxRows:  maxRows,
		log:      cfg.Logger,
	}
}

// Plan computes the fix proposal over the analysis window. It never writes.
func (s *AutoFixService) Plan(ctx context.Context, sheetID string) (*FixPlan, error) {
	snap, err := s.store.Snapshot(ctx, sheetID, s.maxRows)
	if err != nil {
		return nil, errors.Wrap(err, "autofix plan")
	}
	m, _ := s.resolver.Resolve(snap.Headers, nil)

	plan := &FixPlan{MissingColumns: []MissingColumnFix{}, DateFixes: []DateFix{}}
	for _, f := range load.RequiredFields() {
		if !m.IsMapped(f) {
			plan.MissingColumns = append(plan.MissingColumns, MissingColumnFix{Field: f, Header: string(f)})
		}
	}

	fixable := 0
	for _, f := range load.TimestampFields() {
		target, create := string(f), true
		if lit, ok := m.LiteralColumnFor(f); ok {
			target, create = m.Header(lit), false
		}
		srcCol, hasSrc := directColumn(m, f)
		n := 0
		for i := range snap.Rows {
			if _, ok := computedFix(snap, m, f, srcCol, hasSrc, i, s.loc); ok {
				n++
			}
		}
		fixable += n
		plan.DateFixes = append(plan.DateFixes, DateFix{
			Field:        f,
			TargetHeader: target,
			CreateColumn: create,
			FixableRows:  n,
			TotalRows:    len(snap.Rows),
		})
	}
	plan.Summary = fmt.Sprintf(
		"%d missing column(s); %d timestamp value(s) fixable across %d row(s)",
		len(plan.MissingColumns), fixable, len(snap.Rows),
	)
	return plan, nil
}

// Apply runs the selected fixes in one worksheet update. Column creation
// happens first so date normalization sees the new layout. Writes land only
// in field-named columns and only when the computed value differs, which
// makes a second run with the same options write nothing.
func (s *AutoFixService) Apply(ctx context.Context, sheetID string, opts ApplyOptions) (*ApplyReport, error) {
	loc := s.loc
	if opts.TimezoneOffset != "" {
		parsed, err := apptime.ParseOffset(opts.TimezoneOffset)
		if err != nil {
			return nil, err
		}
		loc = parsed
	}

	report := &ApplyReport{CreatedColumns: []string{}, Normalized: []NormalizedField{}}
	err := s.store.Update(ctx, sheetID, func(ws grid.Worksheet) error {
		// Source columns come from the layout as it was before this run.
		m, _ := s.resolver.Resolve(ws.Headers(), nil)

		targets := make(map[load.Field]int)
		if opts.CreateMissingColumns {
			for _, f := range load.RequiredFields() {
				if m.IsMapped(f) {
					continue
				}
				col, err := ws.AppendHeader(string(f))
				if err != nil {
					return err
				}
				report.CreatedColumns = append(report.CreatedColumns, string(f))
				targets[f] = col
			}
		}
		if !opts.NormalizeDates {
			return nil
		}
		for _, f := range load.TimestampFields() {
			target, ok := targets[f]
			if !ok {
				if lit, found := m.LiteralColumnFor(f); found {
					target = lit
				} else {
					col, err := ws.AppendHeader(string(f))
					if err != nil {
						return err
					}
					report.CreatedColumns = append(report.CreatedColumns, string(f))
					target = col
				}
			}
			srcCol, hasSrc := directColumn(m, f)
			rowsUpdated := 0
			for i := 0; i < ws.RowCount(); i++ {
				iso, fixed := computedFix(ws, m, f, srcCol, hasSrc, i, loc)
				if !fixed {
					continue
				}
				if strings.TrimSpace(ws.Cell(i, target).Text()) == iso {
					continue
				}
				if err := ws.SetCell(i, target, iso); err != nil {
					return err
				}
				rowsUpdated++
			}
			report.Normalized = append(report.Normalized, NormalizedField{
				Field:       f,
				Header:      string(f),
				RowsUpdated: rowsUpdated,
			})
			report.UpdatedCells += rowsUpdated
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "autofix apply")
	}
	report.Message = fmt.Sprintf("created %d column(s), updated %d cell(s)",
		len(report.CreatedColumns), report.UpdatedCells)
	loadsAutofixCells.Add(float64(report.UpdatedCells))
	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"sheet_id":        sheetID,
			"created_columns": len(report.CreatedColumns),
			"updated_cells":   report.UpdatedCells,
		}).Info("autofix applied")
	}
	return report, nil
}

// cellReader is the read surface shared by snapshots and worksheets.
type cellReader interface {
	Cell(row, col int) grid.Cell
}

// computedFix returns the safe canonical value for one row, preferring the
// split-column combination over the direct value. Instants landing on the
// serial epoch are time-only artifacts and never safe.
func computedFix(src cellReader, m *load.Mapping, f load.Field, srcCol int, hasSrc bool, i int, loc *time.Location) (string, bool) {
	if sc, ok := m.SplitFor(f); ok {
		iso, combined := apptime.Combine(src.Cell(i, sc.DateCol), src.Cell(i, sc.TimeCol), loc)
		if combined && !apptime.IsEpochArtifact(iso) {
			return iso, true
		}
	}
	if !hasSrc {
		return "", false
	}
	return safeDirectValue(src.Cell(i, srcCol), loc)
}

// safeDirectValue normalizes a value whose meaning is beyond doubt: canonical
// text, explicit-zoned text, or a native temporal or numeric cell. Ambiguous
// text is never rewritten.
func safeDirectValue(cell grid.Cell, loc *time.Location) (string, bool) {
	switch cell.Kind() {
	case grid.KindTemporal, grid.KindNumber:
		iso, _, ok := apptime.NormalizeISO(cell, loc)
		if ok && !apptime.IsEpochArtifact(iso) {
			return iso, true
		}
	case grid.KindText:
		s := strings.TrimSpace(cell.Text())
		if apptime.IsCanonical(s) {
			if !apptime.IsEpochArtifact(s) {
				return s, true
			}
			return "", false
		}
		if apptime.HasExplicitZone(s) {
			iso, _, ok := apptime.NormalizeISO(cell, loc)
			if ok && !apptime.IsEpochArtifact(iso) {
				return iso, true
			}
		}
	}
	return "", false
}
