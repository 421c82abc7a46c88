package dates

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		a, b time.Time
		want int
	}{
		{day("2024-01-10"), day("2024-01-20"), 10},
		{day("2024-01-20"), day("2024-01-10"), -10},
		{day("2024-01-01"), day("2024-01-01").Add(23 * time.Hour), 0},
		{day("2024-02-28"), day("2024-03-01"), 2},
	}
	for _, tt := range tests {
		if got := DaysBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("DaysBetween(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDaysSince(t *testing.T) {
	now := day("2024-01-20").Add(15 * time.Hour)

	if d, ok := DaysSince("2024-01-06", now); !ok || d != 14 {
		t.Errorf("DaysSince = %d, %v; want 14, true", d, ok)
	}
	if _, ok := DaysSince("", now); ok {
		t.Error("DaysSince(\"\") ok = true, want false")
	}
	if _, ok := DaysSince("not-a-date", now); ok {
		t.Error("DaysSince(garbage) ok = true, want false")
	}
}

func TestParseNatural(t *testing.T) {
	now := day("2024-01-17").Add(9 * time.Hour) // Wednesday

	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-05", "2024-03-05"},
		{"today", "2024-01-17"},
		{"tomorrow", "2024-01-18"},
	}
	for _, tt := range tests {
		got, err := ParseNatural(tt.in, now)
		if err != nil {
			t.Errorf("ParseNatural(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNatural(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseNatural("", now); err == nil {
		t.Error("ParseNatural(\"\") expected error")
	}
	if _, err := ParseNatural("zzzz qqqq", now); err == nil {
		t.Error("ParseNatural(gibberish) expected error")
	}
}
