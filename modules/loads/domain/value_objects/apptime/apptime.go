// Package apptime normalizes appointment date and time values from
// spreadsheet cells into canonical ISO-8601 UTC text.
//
// Cells arrive in four shapes: native temporal values, numeric serials
// counted from the 1899-12-30 epoch, text in a handful of date and clock
// formats, and empty. Native and numeric values never carry a zone; text
// carries one only when it spells it out. Every function here is pure, the
// caller owns zone-assumption bookkeeping.
package apptime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/loadwise/loadwise/pkg/grid"
)

// CanonicalLayout is the only output shape: second precision, literal Z.
const CanonicalLayout = "2006-01-02T15:04:05Z"

const secondsPerDay = 86400

// serialEpoch is day zero of the numeric serial scale.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)
	dashDateRe  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{2}|\d{4})$`)
	clockRe     = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)
	isoStampRe  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[T ](\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	offsetEndRe = regexp.MustCompile(`([+-])(\d{2}):?(\d{2})$`)
	gmtTokenRe  = regexp.MustCompile(`GMT([+-])(\d{1,2}):?(\d{2})?`)
	offsetArgRe = regexp.MustCompile(`^([+-])(\d{1,2}):?(\d{2})?$`)
)

type dateParts struct {
	year   int
	month0 int
	day    int
}

type timeParts struct {
	hour   int
	minute int
	second int
}

func (d dateParts) wall(t timeParts, loc *time.Location) time.Time {
	return time.Date(d.year, time.Month(d.month0+1), d.day, t.hour, t.minute, t.second, 0, loc)
}

func extractDate(c grid.Cell) (dateParts, bool) {
	switch c.Kind() {
	case grid.KindTemporal:
		t, _ := c.Time()
		y, m, d := t.Date()
		return dateParts{year: y, month0: int(m) - 1, day: d}, true
	case grid.KindNumber:
		n, _ := c.Number()
		day := serialEpoch.AddDate(0, 0, int(math.Floor(n)))
		y, m, d := day.Date()
		return dateParts{year: y, month0: int(m) - 1, day: d}, true
	case grid.KindText:
		return parseDateText(strings.TrimSpace(c.Text()))
	default:
		return dateParts{}, false
	}
}

func parseDateText(s string) (dateParts, bool) {
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return checkedDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		m = dashDateRe.FindStringSubmatch(s)
	}
	if m == nil {
		return dateParts{}, false
	}
	year := atoi(m[3])
	if year < 100 {
		year += 2000
	}
	return checkedDate(year, atoi(m[1]), atoi(m[2]))
}

// checkedDate rejects rolled-over calendar values such as 2/31.
func checkedDate(year, month, day int) (dateParts, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return dateParts{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return dateParts{}, false
	}
	return dateParts{year: year, month0: month - 1, day: day}, true
}

func extractTime(c grid.Cell) (timeParts, bool) {
	switch c.Kind() {
	case grid.KindTemporal:
		t, _ := c.Time()
		h, m, s := t.Clock()
		return timeParts{hour: h, minute: m, second: s}, true
	case grid.KindNumber:
		n, _ := c.Number()
		return fractionClock(n), true
	case grid.KindText:
		return parseTimeText(strings.TrimSpace(c.Text()))
	default:
		return timeParts{}, false
	}
}

// fractionClock maps the fractional day to seconds, rounding half up.
// Negative inputs normalize into [0, 1) before conversion.
func fractionClock(n float64) timeParts {
	frac := n - math.Floor(n)
	secs := int(math.Round(frac * secondsPerDay))
	if secs >= secondsPerDay {
		secs = 0
	}
	return timeParts{hour: secs / 3600, minute: secs / 60 % 60, second: secs % 60}
}

func parseTimeText(s string) (timeParts, bool) {
	if _, t, ok := parseStampText(s); ok {
		return t, true
	}
	return parseClockText(s)
}

func parseClockText(s string) (timeParts, bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return timeParts{}, false
	}
	hour := atoi(m[1])
	minute := atoi(m[2])
	second := 0
	if m[3] != "" {
		second = atoi(m[3])
	}
	if minute > 59 || second > 59 {
		return timeParts{}, false
	}
	if m[4] != "" {
		if hour < 1 || hour > 12 {
			return timeParts{}, false
		}
		if hour == 12 {
			hour = 0
		}
		if m[4][0] == 'P' || m[4][0] == 'p' {
			hour += 12
		}
	} else if hour > 23 {
		return timeParts{}, false
	}
	return timeParts{hour: hour, minute: minute, second: second}, true
}

// parseStampText reads zone-less date-and-time text: an ISO stamp, or a date
// in any accepted shape followed by a clock reading.
func parseStampText(s string) (dateParts, timeParts, bool) {
	if m := isoStampRe.FindStringSubmatch(s); m != nil {
		d, ok := checkedDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		if !ok {
			return dateParts{}, timeParts{}, false
		}
		second := 0
		if m[6] != "" {
			second = atoi(m[6])
		}
		hour, minute := atoi(m[4]), atoi(m[5])
		if hour > 23 || minute > 59 || second > 59 {
			return dateParts{}, timeParts{}, false
		}
		return d, timeParts{hour: hour, minute: minute, second: second}, true
	}
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return dateParts{}, timeParts{}, false
	}
	d, ok := parseDateText(s[:i])
	if !ok {
		return dateParts{}, timeParts{}, false
	}
	t, ok := parseClockText(strings.TrimSpace(s[i+1:]))
	if !ok {
		return dateParts{}, timeParts{}, false
	}
	return d, t, true
}

// DateExtractable reports whether the cell yields a calendar date on its own.
func DateExtractable(c grid.Cell) bool {
	_, ok := extractDate(c)
	return ok
}

// TimeExtractable reports whether the cell yields a clock reading on its own.
func TimeExtractable(c grid.Cell) bool {
	_, ok := extractTime(c)
	return ok
}

// HasExplicitZone reports whether the original text spells out a UTC
// designator, a numeric offset or a GMT token. Only text can carry a zone;
// native temporal and numeric cells never do.
func HasExplicitZone(text string) bool {
	_, _, ok := detectZone(strings.TrimSpace(text))
	return ok
}

// detectZone splits a zone designator off the text, returning the fixed
// location it names and the remaining zone-less portion.
func detectZone(s string) (*time.Location, string, bool) {
	if len(s) > 1 && s[len(s)-1] == 'Z' {
		return time.UTC, strings.TrimSpace(s[:len(s)-1]), true
	}
	if loc := gmtTokenRe.FindStringSubmatchIndex(s); loc != nil {
		m := gmtTokenRe.FindStringSubmatch(s)
		hours, minutes := atoi(m[2]), 0
		if m[3] != "" {
			minutes = atoi(m[3])
		}
		if hours <= 14 && minutes <= 59 {
			secs := hours*3600 + minutes*60
			if m[1] == "-" {
				secs = -secs
			}
			rest := strings.TrimSpace(s[:loc[0]] + s[loc[1]:])
			return time.FixedZone(m[0], secs), rest, true
		}
	}
	if m := offsetEndRe.FindStringSubmatch(s); m != nil {
		hours, minutes := atoi(m[2]), atoi(m[3])
		// An offset beyond +-14:00 is a date fragment, not a zone.
		if hours <= 14 && minutes <= 59 {
			rest := strings.TrimSpace(s[:len(s)-len(m[0])])
			if rest != "" {
				secs := hours*3600 + minutes*60
				if m[1] == "-" {
					secs = -secs
				}
				return time.FixedZone(m[0], secs), rest, true
			}
		}
	}
	return nil, "", false
}

// IsCanonical reports whether the text is already in canonical form. Canonical
// values are the fixed point of NormalizeISO.
func IsCanonical(text string) bool {
	t, err := time.Parse(CanonicalLayout, text)
	return err == nil && t.Format(CanonicalLayout) == text
}

// Combine joins a date-only cell and a time-only cell into a canonical
// instant, interpreting the wall clock in loc. Both halves must extract; a
// lone half never becomes an instant. A nil loc means the process zone.
func Combine(dateCell, timeCell grid.Cell, loc *time.Location) (string, bool) {
	d, ok := extractDate(dateCell)
	if !ok {
		return "", false
	}
	t, ok := extractTime(timeCell)
	if !ok {
		return "", false
	}
	if loc == nil {
		loc = time.Local
	}
	return d.wall(t, loc).UTC().Format(CanonicalLayout), true
}

// NormalizeISO converts a single cell to canonical form. The assumed result
// reports whether the value carried no explicit zone and loc supplied the
// interpretation; canonical input returns unchanged with assumed false. A
// failed conversion reports ok false. A nil loc means the process zone.
func NormalizeISO(c grid.Cell, loc *time.Location) (iso string, assumed bool, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	switch c.Kind() {
	case grid.KindTemporal:
		t, _ := c.Time()
		y, m, d := t.Date()
		h, min, sec := t.Clock()
		wall := time.Date(y, m, d, h, min, sec, 0, loc)
		return wall.UTC().Format(CanonicalLayout), true, true
	case grid.KindNumber:
		n, _ := c.Number()
		dp, _ := extractDate(c)
		return dp.wall(fractionClock(n), loc).UTC().Format(CanonicalLayout), true, true
	case grid.KindText:
		return normalizeText(strings.TrimSpace(c.Text()), loc)
	default:
		return "", false, false
	}
}

func normalizeText(s string, loc *time.Location) (string, bool, bool) {
	if s == "" {
		return "", false, false
	}
	if IsCanonical(s) {
		return s, false, true
	}
	if zone, rest, found := detectZone(s); found {
		if d, t, ok := parseStampText(rest); ok {
			return d.wall(t, zone).UTC().Format(CanonicalLayout), false, true
		}
		if d, ok := parseDateText(rest); ok {
			return d.wall(timeParts{}, zone).UTC().Format(CanonicalLayout), false, true
		}
		return "", false, false
	}
	if d, t, ok := parseStampText(s); ok {
		return d.wall(t, loc).UTC().Format(CanonicalLayout), true, true
	}
	if d, ok := parseDateText(s); ok {
		return d.wall(timeParts{}, loc).UTC().Format(CanonicalLayout), true, true
	}
	return "", false, false
}

// IsEpochArtifact reports whether the canonical text sits on a calendar day
// adjacent to the serial epoch. Such instants are time-only serials that
// never carried a real date.
func IsEpochArtifact(iso string) bool {
	return strings.HasPrefix(iso, "1899-12-30") || strings.HasPrefix(iso, "1899-12-31")
}

// ParseOffset reads a fixed UTC offset such as "-06:00", "+0530" or "Z".
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "Z" || strings.EqualFold(s, "UTC") {
		return time.UTC, nil
	}
	m := offsetArgRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid UTC offset %q", s)
	}
	hours, minutes := atoi(m[2]), 0
	if m[3] != "" {
		minutes = atoi(m[3])
	}
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("invalid UTC offset %q", s)
	}
	secs := hours*3600 + minutes*60
	if m[1] == "-" {
		secs = -secs
	}
	return time.FixedZone(s, secs), nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
