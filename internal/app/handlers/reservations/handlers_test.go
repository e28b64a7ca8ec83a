package reservations

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	"habita/internal/app/middleware"
	"habita/internal/app/outbox"
	"habita/internal/app/queries"
	"habita/internal/app/uow"
	domainpricing "habita/internal/domain/pricing"
	domainproperty "habita/internal/domain/property"
	"habita/internal/domain/shared/fault"
	"habita/internal/domain/user"
	"habita/internal/infra/fixtures"
	"habita/internal/infra/storage/memory"
)

var (
	testNow = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	guest   = user.Actor{ID: "guest-1", Roles: []user.Role{user.RoleGuest}}
	host    = user.Actor{ID: "host-1", Roles: []user.Role{user.RoleHost}}
	admin   = user.Actor{ID: "admin", Roles: []user.Role{user.RoleAdmin}}
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		t.Fatalf("parse %s: %v", value, err)
	}
	return d
}

func newBuses(t *testing.T, wrap func(uow.UoWFactory) uow.UoWFactory) Buses {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := memory.NewOutbox(nil)
	var factory uow.UoWFactory = memory.Factory{Store: memory.NewStore(relay)}
	_, props := fixtures.Demo()
	if err := fixtures.SeedProperties(context.Background(), factory, props, testNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if wrap != nil {
		factory = wrap(factory)
	}
	return Register(Options{
		Deps: Deps{
			UoWFactory: factory,
			Pricing:    domainpricing.Standard{},
			Encoder:    outbox.JSONEventEncoder{},
			Now:        func() time.Time { return testNow },
			Logger:     logger,
		},
		Flusher: relay,
		Retry:   middleware.RetryPolicy{MaxAttempts: 3},
	})
}

func create(t *testing.T, b Buses, actor user.Actor, checkIn, checkOut string) (*dto.Reservation, error) {
	t.Helper()
	return commands.Dispatch[CreateReservationCommand, *dto.Reservation](context.Background(), b.Commands, CreateReservationCommand{
		Actor:      actor,
		PropertyID: "prop-1",
		CheckIn:    day(t, checkIn),
		CheckOut:   day(t, checkOut),
		GuestCount: 2,
	})
}

func transition(b Buses, actor user.Actor, id, status string) (*dto.Reservation, error) {
	return commands.Dispatch[TransitionStatusCommand, *dto.Reservation](context.Background(), b.Commands, TransitionStatusCommand{
		Actor:         actor,
		ReservationID: id,
		Status:        status,
	})
}

func occupied(t *testing.T, b Buses) dto.OccupiedDates {
	t.Helper()
	out, err := queries.Ask[GetOccupiedDatesQuery, dto.OccupiedDates](context.Background(), b.Queries, GetOccupiedDatesQuery{PropertyID: "prop-1"})
	if err != nil {
		t.Fatalf("occupied dates: %v", err)
	}
	return out
}

func TestHostDiscountAppliesToTotal(t *testing.T) {
	b := newBuses(t, nil)
	res, err := commands.Dispatch[CreateReservationCommand, *dto.Reservation](context.Background(), b.Commands, CreateReservationCommand{
		Actor:           host,
		UserID:          "host-1",
		PropertyID:      "prop-1",
		CheckIn:         day(t, "2026-02-01"),
		CheckOut:        day(t, "2026-02-04"),
		GuestCount:      1,
		DiscountPercent: 12.5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.TotalAmount.Amount != 26250 || res.DiscountPercent != 12.5 {
		t.Fatalf("unexpected total %+v discount %v", res.TotalAmount, res.DiscountPercent)
	}
}

func TestIllegalTransitionIsRejected(t *testing.T) {
	b := newBuses(t, nil)
	res, err := create(t, b, guest, "2026-02-01", "2026-02-03")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = transition(b, host, res.ID, "completed")
	if fault.KindOf(err) != fault.KindTransition {
		t.Fatalf("expected transition error, got %v", err)
	}
	_, err = transition(b, guest, res.ID, "accepted")
	if fault.KindOf(err) != fault.KindPermission {
		t.Fatalf("guest may only cancel, got %v", err)
	}
}

func TestCompletedStayKeepsDates(t *testing.T) {
	b := newBuses(t, nil)
	res, err := create(t, b, guest, "2026-02-01", "2026-02-03")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, status := range []string{"accepted", "confirmed", "completed"} {
		if _, err := transition(b, host, res.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	got := occupied(t, b)
	if len(got.Dates) != 2 || got.Dates[0] != "2026-02-01" || got.Dates[1] != "2026-02-02" {
		t.Fatalf("completed stay should keep its nights, got %v", got.Dates)
	}
}

func TestRejectReleasesDates(t *testing.T) {
	b := newBuses(t, nil)
	res, err := create(t, b, guest, "2026-02-01", "2026-02-03")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := transition(b, host, res.ID, "rejected")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if out.IsActive {
		t.Fatalf("rejected reservation must not be active")
	}
	if got := occupied(t, b); len(got.Dates) != 0 {
		t.Fatalf("expected free calendar, got %v", got.Dates)
	}
}

func TestUpdateValidation(t *testing.T) {
	b := newBuses(t, nil)
	res, err := create(t, b, guest, "2026-02-01", "2026-02-03")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := "prop-2"
	tooMany := 9
	cases := []struct {
		name  string
		actor user.Actor
		patch Patch
		want  fault.Kind
	}{
		{"empty patch", guest, Patch{}, fault.KindValidation},
		{"move property", admin, Patch{PropertyID: &other}, fault.KindImmutableField},
		{"too many guests", guest, Patch{GuestCount: &tooMany}, fault.KindValidation},
		{"host edits stay", host, Patch{GuestCount: &tooMany}, fault.KindPermission},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := commands.Dispatch[UpdateReservationCommand, *dto.Reservation](context.Background(), b.Commands, UpdateReservationCommand{
				Actor:         tc.actor,
				ReservationID: res.ID,
				Patch:         tc.patch,
			})
			if fault.KindOf(err) != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestRebuildRecomputesCalendar(t *testing.T) {
	b := newBuses(t, nil)
	if _, err := create(t, b, guest, "2026-02-01", "2026-02-03"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := create(t, b, guest, "2026-02-03", "2026-02-05"); err != nil {
		t.Fatalf("create back-to-back: %v", err)
	}
	out, err := commands.Dispatch[RebuildAvailabilityCommand, *dto.RebuildResult](context.Background(), b.Commands, RebuildAvailabilityCommand{Actor: admin, PropertyID: "prop-1"})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if out.Blocks != 2 {
		t.Fatalf("expected 2 blocks, got %+v", out)
	}
}

type conflictingFactory struct {
	uow.UoWFactory
	commits int
}

type conflictingUnit struct {
	uow.UnitOfWork
	f *conflictingFactory
}

func (f *conflictingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil || opts.ReadOnly {
		return unit, err
	}
	return conflictingUnit{UnitOfWork: unit, f: f}, nil
}

func (u conflictingUnit) Commit(ctx context.Context) error {
	u.f.commits++
	_ = u.UnitOfWork.Rollback(ctx)
	return uow.ErrTransient
}

func TestRetriesExhaustedSurfaceAsConflict(t *testing.T) {
	var cf *conflictingFactory
	b := newBuses(t, func(inner uow.UoWFactory) uow.UoWFactory {
		cf = &conflictingFactory{UoWFactory: inner}
		return cf
	})
	_, err := create(t, b, guest, "2026-02-01", "2026-02-03")
	if fault.KindOf(err) != fault.KindConflict || !errors.Is(err, middleware.ErrRetriesExhausted) {
		t.Fatalf("expected exhausted retries as conflict, got %v", err)
	}
	if cf.commits != 3 {
		t.Fatalf("expected 3 attempts, got %d", cf.commits)
	}
}

var errStoreDown = errors.New("store unavailable")

type failingPropertiesFactory struct {
	uow.UoWFactory
	fail bool
}

type failingPropertiesUnit struct {
	uow.UnitOfWork
	f *failingPropertiesFactory
}

type failingProperties struct {
	domainproperty.Repository
}

func (failingProperties) ByID(context.Context, domainproperty.ID) (*domainproperty.Property, error) {
	return nil, errStoreDown
}

func (f *failingPropertiesFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.UoWFactory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return failingPropertiesUnit{UnitOfWork: unit, f: f}, nil
}

func (u failingPropertiesUnit) Properties() domainproperty.Repository {
	if u.f.fail {
		return failingProperties{u.UnitOfWork.Properties()}
	}
	return u.UnitOfWork.Properties()
}

func TestListReportsPropertyStoreFailure(t *testing.T) {
	var ff *failingPropertiesFactory
	b := newBuses(t, func(inner uow.UoWFactory) uow.UoWFactory {
		ff = &failingPropertiesFactory{UoWFactory: inner}
		return ff
	})
	if _, err := create(t, b, guest, "2026-02-01", "2026-02-03"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ff.fail = true
	_, err := queries.Ask[ListReservationsQuery, dto.ReservationCollection](context.Background(), b.Queries, ListReservationsQuery{Actor: guest})
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected the store error, got %v", err)
	}
}
