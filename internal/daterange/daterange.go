// Package daterange parses the --from-date/--to-date bounds used to filter
// transcript entries.
//
// All comparisons are naive: timestamps and bounds are reduced to their wall
// clock reading with the zone discarded, so "2025-06-01 10:00" means the same
// instant whether a record was written in UTC or with an offset.
package daterange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Range is an inclusive pair of naive bounds. A zero bound is open.
type Range struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Contains reports whether t falls within the range after its zone is stripped.
func (r Range) Contains(t time.Time) bool {
	n := Naive(t)
	if !r.From.IsZero() && n.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && n.After(r.To) {
		return false
	}
	return true
}

// Overlaps reports whether the span from first to last shares any instant
// with the range.
func (r Range) Overlaps(first, last time.Time) bool {
	if !r.From.IsZero() && Naive(last).Before(r.From) {
		return false
	}
	if !r.To.IsZero() && Naive(first).After(r.To) {
		return false
	}
	return true
}

// ContainsString parses an entry timestamp and tests it. Timestamps that do not
// parse are kept.
func (r Range) ContainsString(ts string) bool {
	if r.IsZero() {
		return true
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return true
	}
	return r.Contains(t)
}

func (r Range) String() string {
	var parts []string
	if !r.From.IsZero() {
		parts = append(parts, "from "+r.From.Format("2006-01-02 15:04"))
	}
	if !r.To.IsZero() {
		parts = append(parts, "to "+r.To.Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, " ")
}

// Naive returns t's wall clock reading in a zone-free (UTC-tagged) time.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseTimestamp parses a transcript timestamp ("2025-06-01T10:00:00.000Z").
func ParseTimestamp(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseIn(ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}
	return t, nil
}

type boundKind int

const (
	lowerBound boundKind = iota
	upperBound
)

var agoPattern = regexp.MustCompile(`^(\d+)\s+(minute|hour|day|week)s?\s+ago$`)

// Parse builds a Range from user-supplied bounds, relative to now. Empty
// strings leave a bound open.
//
// Day-granular expressions ("today", "yesterday", "3 days ago", "2 weeks ago")
// widen to the start of the day for from and the end of the day for to.
// A date-only to bound ("2025-06-01") also widens to the end of that day.
func Parse(from, to string, now time.Time) (Range, error) {
	var (
		r   Range
		err error
	)
	if r.From, err = parseBound(from, now, lowerBound); err != nil {
		return Range{}, fmt.Errorf("invalid from date: %w", err)
	}
	if r.To, err = parseBound(to, now, upperBound); err != nil {
		return Range{}, fmt.Errorf("invalid to date: %w", err)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return Range{}, fmt.Errorf("from date %s is after to date %s",
			r.From.Format(time.DateTime), r.To.Format(time.DateTime))
	}
	return r, nil
}

func parseBound(s string, now time.Time, kind boundKind) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	now = Naive(now)

	if t, dayGranular, ok := parseRelative(strings.ToLower(s), now); ok {
		if dayGranular {
			return widen(t, kind), nil
		}
		return t, nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	t = Naive(t)
	if kind == upperBound && isMidnight(t) {
		t = widen(t, upperBound)
	}
	return t, nil
}

func parseRelative(s string, now time.Time) (t time.Time, dayGranular, ok bool) {
	switch s {
	case "now":
		return now, false, true
	case "today":
		return now, true, true
	case "yesterday":
		return now.AddDate(0, 0, -1), true, true
	}
	m := agoPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false, false
	}
	switch m[2] {
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), false, true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), false, true
	case "day":
		return now.AddDate(0, 0, -n), true, true
	default:
		return now.AddDate(0, 0, -7*n), true, true
	}
}

func widen(t time.Time, kind boundKind) time.Time {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if kind == lowerBound {
		return start
	}
	return start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
