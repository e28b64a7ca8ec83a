package daterange

import (
	"errors"
	"testing"
	"time"
)

func mustRange(t *testing.T, in, out string) DateRange {
	t.Helper()
	dr, err := Parse(in, out)
	if err != nil {
		t.Fatalf("parse %s..%s: %v", in, out, err)
	}
	return dr
}

func TestNewRejectsEmptyAndInvertedRanges(t *testing.T) {
	cases := []struct {
		name    string
		in, out string
	}{
		{"same day", "2025-03-01", "2025-03-01"},
		{"inverted", "2025-03-04", "2025-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.in, tc.out); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestParseDayRejectsGarbage(t *testing.T) {
	if _, err := ParseDay("03/01/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	existing := mustRange(t, "2025-03-02", "2025-03-05")
	cases := []struct {
		name    string
		in, out string
		want    bool
	}{
		{"overlaps start", "2025-03-01", "2025-03-03", true},
		{"inside", "2025-03-03", "2025-03-04", true},
		{"covers", "2025-02-28", "2025-03-06", true},
		{"back to back after", "2025-03-05", "2025-03-07", false},
		{"back to back before", "2025-02-27", "2025-03-02", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidate := mustRange(t, tc.in, tc.out)
			if got := existing.Overlaps(candidate); got != tc.want {
				t.Fatalf("Overlaps(%s) = %v, want %v", candidate, got, tc.want)
			}
			if got := candidate.Overlaps(existing); got != tc.want {
				t.Fatalf("overlap must be symmetric for %s", candidate)
			}
		})
	}
}

func TestNightsUsesCalendarDates(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2025-03-09 is a DST switch day in New York; the raw duration is 47 hours.
	in := time.Date(2025, 3, 8, 0, 0, 0, 0, loc)
	out := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	dr, err := New(in, out)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if dr.Nights() != 2 {
		t.Fatalf("expected 2 nights, got %d", dr.Nights())
	}
}

func TestNightsBeyondDurationRange(t *testing.T) {
	cases := []struct {
		in, out string
		want    int
	}{
		{"2026-01-01", "2400-01-01", 136600},
		{"1000-01-01", "2026-01-01", 374739},
		{"2026-01-01", "2026-01-02", 1},
	}
	for _, tc := range cases {
		if got := mustRange(t, tc.in, tc.out).Nights(); got != tc.want {
			t.Fatalf("%s..%s: expected %d nights, got %d", tc.in, tc.out, tc.want, got)
		}
	}
	if got := DaysBetween(time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); got != -136600 {
		t.Fatalf("expected -136600, got %d", got)
	}
}

func TestDaysExcludesCheckout(t *testing.T) {
	dr := mustRange(t, "2025-03-01", "2025-03-04")
	var got []string
	for d := range dr.Days() {
		got = append(got, FormatDay(d))
	}
	want := []string{"2025-03-01", "2025-03-02", "2025-03-03"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
