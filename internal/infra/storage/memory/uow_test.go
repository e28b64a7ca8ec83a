package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appoutbox "habita/internal/app/outbox"
	"habita/internal/app/uow"
	"habita/internal/domain/shared/daterange"
)

type recordingPublisher struct {
	got []appoutbox.EventRecord
}

func (p *recordingPublisher) PublishAsync(_ context.Context, recs ...appoutbox.EventRecord) {
	p.got = append(p.got, recs...)
}

func stay(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	r, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	return r
}

func TestCommitRejectsStaleCalendar(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Factory{Store: NewStore(nil)}

	first, _ := f.Begin(ctx, uow.TxOptions{})
	second, _ := f.Begin(ctx, uow.TxOptions{})
	for i, unit := range []uow.UnitOfWork{first, second} {
		cal, err := unit.Availability().Calendar(ctx, "prop-1")
		if err != nil {
			t.Fatalf("read calendar: %v", err)
		}
		r := stay(t, "2026-02-01", "2026-02-03")
		if err := cal.Reserve([]string{"r-1", "r-2"}[i], r, now); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if err := unit.Availability().Save(ctx, cal); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	if err := first.Commit(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	err := second.Commit(ctx)
	if !uow.IsTransient(err) {
		t.Fatalf("expected transient conflict, got %v", err)
	}
	if cal := f.Store.calendar("prop-1"); len(cal.Blocks) != 1 || cal.Blocks[0].Reservation != "r-1" || cal.Version != 1 {
		t.Fatalf("unexpected committed calendar: %+v", cal)
	}
}

func TestOutboxRecordsOnlyLeaveAfterCommit(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	relay := NewOutbox(pub)
	f := Factory{Store: NewStore(relay)}

	rolledBack, _ := f.Begin(ctx, uow.TxOptions{})
	if err := rolledBack.Outbox().Add(ctx, appoutbox.EventRecord{ID: "dropped"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = rolledBack.Rollback(ctx)

	unit, _ := f.Begin(ctx, uow.TxOptions{})
	if err := unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "kept"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if relay.Pending() != 0 {
		t.Fatalf("records must stay staged until commit")
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if relay.Pending() != 1 {
		t.Fatalf("expected one pending record, got %d", relay.Pending())
	}
	if err := relay.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].ID != "kept" || relay.Pending() != 0 {
		t.Fatalf("unexpected published records: %+v", pub.got)
	}
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore(nil)}
	unit, _ := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err := unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "x"}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if err := unit.Commit(ctx); !errors.Is(err, ErrUnitClosed) {
		t.Fatalf("expected ErrUnitClosed, got %v", err)
	}
}
