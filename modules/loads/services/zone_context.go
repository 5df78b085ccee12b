package services

import "sort"

// ZoneContext records which data rows had a fallback zone substituted for a
// missing explicit one. A fresh context is created at invocation start and
// again before record construction; validation and building never share one.
type ZoneContext struct {
	zoneName string
	rows     map[int]struct{}
}

func NewZoneContext(zoneName string) *ZoneContext {
	return &ZoneContext{zoneName: zoneName, rows: map[int]struct{}{}}
}

// Mark records a data row that was interpreted through the fallback zone.
func (z *ZoneContext) Mark(row int) {
	z.rows[row] = struct{}{}
}

// Used reports whether any row needed the fallback zone.
func (z *ZoneContext) Used() bool {
	return len(z.rows) > 0
}

// Rows returns the distinct affected rows in ascending order.
func (z *ZoneContext) Rows() []int {
	rows := make([]int, 0, len(z.rows))
	for r := range z.rows {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}

func (z *ZoneContext) ZoneName() string {
	return z.zoneName
}
