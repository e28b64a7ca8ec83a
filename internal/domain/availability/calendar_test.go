package availability

import (
	"errors"
	"slices"
	"testing"
	"time"

	"habita/internal/domain/shared/daterange"
)

var now = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	r, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("parse %s..%s: %v", in, out, err)
	}
	return r
}

func dates(seq func(func(time.Time) bool)) []string {
	var out []string
	for d := range seq {
		out = append(out, daterange.FormatDay(d))
	}
	return out
}

func TestReserveRejectsOverlapAndAllowsBackToBack(t *testing.T) {
	cal := NewCalendar("prop-1")
	if err := cal.Reserve("r-existing", mustRange(t, "2025-03-02", "2025-03-05"), now); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if cal.IsRangeFree(mustRange(t, "2025-03-01", "2025-03-03"), "") {
		t.Fatalf("expected overlap on 2025-03-02")
	}
	if err := cal.Reserve("r-overlap", mustRange(t, "2025-03-01", "2025-03-03"), now); !errors.Is(err, ErrOverlappingRange) {
		t.Fatalf("expected ErrOverlappingRange, got %v", err)
	}
	if err := cal.Reserve("r-next", mustRange(t, "2025-03-05", "2025-03-07"), now); err != nil {
		t.Fatalf("back-to-back stay must be allowed: %v", err)
	}
	if err := cal.Reserve("r-before", mustRange(t, "2025-02-27", "2025-03-02"), now); err != nil {
		t.Fatalf("stay ending on checkin must be allowed: %v", err)
	}

	got := make([]string, 0, len(cal.Blocks))
	for _, b := range cal.Blocks {
		got = append(got, b.Reservation)
	}
	if !slices.Equal(got, []string{"r-before", "r-existing", "r-next"}) {
		t.Fatalf("blocks not ordered by checkin: %v", got)
	}
}

func TestIsRangeFreeExcludesOwnReservation(t *testing.T) {
	cal := NewCalendar("prop-1")
	if err := cal.Reserve("r-1", mustRange(t, "2025-03-02", "2025-03-05"), now); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	shifted := mustRange(t, "2025-03-03", "2025-03-06")
	if !cal.IsRangeFree(shifted, "r-1") {
		t.Fatalf("own range must not conflict with itself")
	}
	if cal.IsRangeFree(shifted, "r-other") {
		t.Fatalf("excluding an unrelated id must still report the overlap")
	}
	if err := cal.Reschedule("r-1", shifted, now); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !cal.Blocks[0].Range.Equal(shifted) {
		t.Fatalf("expected block to move, got %v", cal.Blocks[0].Range)
	}
}

func TestOccupiedDatesAscendingAndRestartable(t *testing.T) {
	cal := NewCalendar("prop-1")
	_ = cal.Reserve("r-2", mustRange(t, "2025-03-05", "2025-03-07"), now)
	_ = cal.Reserve("r-1", mustRange(t, "2025-03-02", "2025-03-05"), now)

	want := []string{"2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06"}
	seq := cal.OccupiedDates()
	if got := dates(seq); !slices.Equal(got, want) {
		t.Fatalf("unexpected dates %v", got)
	}
	if got := dates(seq); !slices.Equal(got, want) {
		t.Fatalf("second iteration differs: %v", got)
	}
}

func TestReleaseRemovesDates(t *testing.T) {
	cal := NewCalendar("prop-1")
	_ = cal.Reserve("r-1", mustRange(t, "2025-03-02", "2025-03-05"), now)
	cal.ClearEvents()

	if err := cal.Release("r-1", now); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := dates(cal.OccupiedDates()); len(got) != 0 {
		t.Fatalf("expected no occupied dates, got %v", got)
	}
	if err := cal.Release("r-1", now); !errors.Is(err, ErrRangeNotFound) {
		t.Fatalf("expected ErrRangeNotFound, got %v", err)
	}
	evts := cal.Drain()
	if len(evts) != 1 || evts[0].EventName() != EventReleased {
		t.Fatalf("expected one release event, got %v", evts)
	}
}

func TestRebuildRejectsOverlapWithoutMutating(t *testing.T) {
	cal := NewCalendar("prop-1")
	_ = cal.Reserve("r-1", mustRange(t, "2025-03-02", "2025-03-05"), now)

	err := cal.Rebuild([]Block{
		{Reservation: "a", Range: mustRange(t, "2025-04-01", "2025-04-03")},
		{Reservation: "b", Range: mustRange(t, "2025-04-02", "2025-04-04")},
	}, now)
	if !errors.Is(err, ErrOverlappingRange) {
		t.Fatalf("expected ErrOverlappingRange, got %v", err)
	}
	if len(cal.Blocks) != 1 || cal.Blocks[0].Reservation != "r-1" {
		t.Fatalf("calendar changed on failed rebuild: %+v", cal.Blocks)
	}

	err = cal.Rebuild([]Block{
		{Reservation: "b", Range: mustRange(t, "2025-04-03", "2025-04-04")},
		{Reservation: "a", Range: mustRange(t, "2025-04-01", "2025-04-03")},
	}, now)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if cal.Holds("r-1") || !cal.Holds("a") || cal.Blocks[0].Reservation != "a" {
		t.Fatalf("unexpected blocks after rebuild: %+v", cal.Blocks)
	}
}

func TestCloneDetachesBlocks(t *testing.T) {
	cal := NewCalendar("prop-1")
	_ = cal.Reserve("r-1", mustRange(t, "2025-03-02", "2025-03-05"), now)
	clone := cal.Clone()
	if len(clone.PendingEvents()) != 0 {
		t.Fatalf("clone must not carry pending events")
	}
	_ = clone.Release("r-1", now)
	if !cal.Holds("r-1") {
		t.Fatalf("release on clone leaked into original")
	}
}
