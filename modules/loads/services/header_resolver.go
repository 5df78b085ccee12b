package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/entities/issue"
)

// HeaderResolver maps sheet headers to canonical fields. Resolution is
// deterministic: headers are walked left to right and each one is tried
// against, in order, explicit overrides, the exact field name, the field name
// ignoring case, and the synonym table. A header whose canonical form is
// claimed by several fields stays unmapped and is reported instead of guessed.
type HeaderResolver struct {
	overrides map[string]load.Field
}

// NewHeaderResolver creates a resolver with operator-level header overrides.
// Per-request overrides passed to Resolve take precedence over these.
func NewHeaderResolver(overrides map[string]load.Field) *HeaderResolver {
	merged := make(map[string]load.Field, len(overrides))
	for header, f := range overrides {
		merged[header] = f
	}
	return &HeaderResolver{overrides: merged}
}

// Resolve maps the header row to fields and reports mapping issues: one
// AMBIGUOUS_HEADER warning per contested header and one MISSING_COLUMN error
// per required field left without a column.
func (r *HeaderResolver) Resolve(headers []string, requestOverrides map[string]load.Field) (*load.Mapping, issue.List) {
	var issues issue.List
	m := load.NewMapping(headers)

	for col, header := range headers {
		if f, ok := load.FieldNamed(header); ok {
			m.SetLiteral(f, col)
		}
		if f, ok := r.override(header, requestOverrides); ok {
			m.Assign(col, f)
			continue
		}
		if f, ok := load.FieldNamed(header); ok {
			m.Assign(col, f)
			continue
		}
		owners := load.SynonymOwners(load.Canonicalize(header))
		if len(owners) > 1 {
			owners = demotePhone(owners)
		}
		switch len(owners) {
		case 0:
		case 1:
			m.Assign(col, owners[0])
		default:
			issues.Add(issue.New(
				issue.AmbiguousHeader,
				issue.SeverityWarn,
				fmt.Sprintf("header %q matches multiple fields: %s", header, joinFields(owners)),
			).WithColumn(header))
		}
	}

	resolveSplits(m, headers)

	for _, f := range load.RequiredFields() {
		if m.IsMapped(f) {
			continue
		}
		iss := issue.New(
			issue.MissingColumn,
			issue.SeverityError,
			fmt.Sprintf("no column found for required field %q", f),
		).WithColumn(string(f))
		if hint, ok := closestHeader(f, m); ok {
			iss = iss.WithSuggestion(fmt.Sprintf("closest unmapped header: %q", hint))
		}
		issues.Add(iss)
	}
	return m, issues
}

func (r *HeaderResolver) override(header string, requestOverrides map[string]load.Field) (load.Field, bool) {
	if f, ok := requestOverrides[header]; ok && validField(f) {
		return f, true
	}
	if f, ok := r.overrides[header]; ok && validField(f) {
		return f, true
	}
	return "", false
}

func validField(f load.Field) bool {
	for _, known := range load.AllFields() {
		if known == f {
			return true
		}
	}
	return false
}

// demotePhone drops the optional phone field from a contested synonym so it
// never blocks another field's match.
func demotePhone(owners []load.Field) []load.Field {
	kept := make([]load.Field, 0, len(owners))
	for _, f := range owners {
		if f != load.FieldDriverPhone {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return owners
	}
	return kept
}

// resolveSplits records date/time column pairs for each timestamp field. Both
// halves must be present; the leftmost header of each role wins.
func resolveSplits(m *load.Mapping, headers []string) {
	for _, f := range load.TimestampFields() {
		dateCol, timeCol := -1, -1
		for col, header := range headers {
			canon := load.Canonicalize(header)
			if dateCol < 0 && containsString(load.SplitDateSynonyms(f), canon) {
				dateCol = col
			}
			if timeCol < 0 && containsString(load.SplitTimeSynonyms(f), canon) {
				timeCol = col
			}
		}
		if dateCol >= 0 && timeCol >= 0 {
			m.SetSplit(f, load.SplitColumns{DateCol: dateCol, TimeCol: timeCol})
		}
	}
}

// closestHeader suggests the unmapped header nearest to the field's name or
// one of its synonyms.
func closestHeader(f load.Field, m *load.Mapping) (string, bool) {
	var candidates []string
	for col, header := range m.Headers() {
		if _, mapped := m.FieldFor(col); !mapped && strings.TrimSpace(header) != "" {
			candidates = append(candidates, header)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	queries := append([]string{string(f)}, load.Synonyms(f)...)
	best := ""
	bestDistance := -1
	for _, q := range queries {
		ranks := fuzzy.RankFindNormalizedFold(q, candidates)
		sort.Sort(ranks)
		if len(ranks) == 0 {
			continue
		}
		if bestDistance < 0 || ranks[0].Distance < bestDistance {
			best = candidates[ranks[0].OriginalIndex]
			bestDistance = ranks[0].Distance
		}
	}
	return best, bestDistance >= 0
}

func joinFields(fields []load.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
