package services

import (
	"time"

	"github.com/loadwise/loadwise/modules/loads/domain/aggregates/load"
	"github.com/loadwise/loadwise/modules/loads/domain/value_objects/apptime"
	"github.com/loadwise/loadwise/pkg/grid"
)

// LoadBuilder turns snapshot rows into load records, one per row, no matter
// what validation found. Whether the records are exposed is the caller's
// decision.
type LoadBuilder struct {
	loc *time.Location
}

// NewLoadBuilder creates a builder that interprets zone-less timestamps in
// loc. A nil loc means the process zone.
func NewLoadBuilder(loc *time.Location) *LoadBuilder {
	return &LoadBuilder{loc: loc}
}

// Build constructs one record per row. Timestamp sources rank: the
// field-named column when present, then split-column combination, then the
// synonym-mapped column. Remap tables rewrite exact literals of the fields
// they cover. Rows normalized through the fallback zone are recorded into zc.
func (b *LoadBuilder) Build(snap *grid.Snapshot, m *load.Mapping, remaps map[load.Field]map[string]string, zc *ZoneContext) []load.Load {
	records := make([]load.Load, 0, len(snap.Rows))
	for i := range snap.Rows {
		row := i + firstDataRow
		opts := []load.Option{load.WithSourceRow(row)}
		var loadID string
		for _, f := range load.AllFields() {
			var val string
			if f.IsTimestamp() {
				val = b.timestampValue(snap, m, f, i, row, zc)
			} else {
				val = plainValue(snap, m, f, i)
				if entries, ok := remaps[f]; ok && val != "" {
					if replacement, hit := entries[val]; hit {
						val = replacement
					}
				}
			}
			if f == load.FieldLoadID {
				loadID = val
				continue
			}
			opts = append(opts, load.WithValue(f, val))
		}
		records = append(records, load.New(loadID, opts...))
	}
	return records
}

func (b *LoadBuilder) timestampValue(snap *grid.Snapshot, m *load.Mapping, f load.Field, i, row int, zc *ZoneContext) string {
	// A field-named column is the sole source, even when its cell is blank.
	if lit, ok := m.LiteralColumnFor(f); ok {
		return b.directValue(snap.Cell(i, lit), row, zc)
	}
	if sc, ok := m.SplitFor(f); ok {
		dateCell := snap.Cell(i, sc.DateCol)
		timeCell := snap.Cell(i, sc.TimeCol)
		if iso, combined := apptime.Combine(dateCell, timeCell, b.loc); combined {
			if !carriesZone(dateCell) && !carriesZone(timeCell) {
				zc.Mark(row)
			}
			return iso
		}
	}
	if col, ok := m.ColumnFor(f); ok {
		return b.directValue(snap.Cell(i, col), row, zc)
	}
	return ""
}

// directValue normalizes a single cell. A value that cannot be normalized
// passes through as its original text.
func (b *LoadBuilder) directValue(cell grid.Cell, row int, zc *ZoneContext) string {
	if cell.IsEmpty() {
		return ""
	}
	iso, assumed, ok := apptime.NormalizeISO(cell, b.loc)
	if !ok {
		return cellText(cell)
	}
	if assumed {
		zc.Mark(row)
	}
	return iso
}

func plainValue(snap *grid.Snapshot, m *load.Mapping, f load.Field, i int) string {
	col, ok := m.ColumnFor(f)
	if !ok {
		return ""
	}
	return cellText(snap.Cell(i, col))
}

func carriesZone(c grid.Cell) bool {
	return c.Kind() == grid.KindText && apptime.HasExplicitZone(c.Text())
}
