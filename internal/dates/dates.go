// Package dates handles the calendar-date strings stored on records.
//
// Records carry dates as "YYYY-MM-DD" strings in local time. Comparisons are
// done on whole calendar days so that the time of day never shifts a result.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Layout is the on-record date format.
const Layout = "2006-01-02"

// Format renders t as a record date.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Today returns now as a record date.
func Today(now time.Time) string {
	return Format(now)
}

// Parse reads a record date in now's location. Empty input is an error.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}

// midnight truncates t to the start of its calendar day in its own location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the whole calendar days from a to b (b - a). DST
// transitions are absorbed by rounding.
func DaysBetween(a, b time.Time) int {
	a = midnight(a)
	b = midnight(b.In(a.Location()))
	return int(b.Sub(a).Round(24*time.Hour) / (24 * time.Hour))
}

// DaysSince returns the whole days between the record date s and now.
// ok is false when s is empty or unparseable.
func DaysSince(s string, now time.Time) (days int, ok bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	t, err := Parse(s, now.Location())
	if err != nil {
		return 0, false
	}
	return DaysBetween(t, now), true
}

var parser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseNatural accepts either a record date or an English expression such as
// "today", "tomorrow", "next friday" or "in 3 days", resolved against now.
func ParseNatural(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	if t, err := Parse(s, now.Location()); err == nil {
		return Format(t), nil
	}
	r, err := parser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("unrecognised date %q", s)
	}
	return Format(r.Time), nil
}
