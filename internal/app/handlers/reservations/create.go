package reservations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	handlersupport "habita/internal/app/handlers/support"
	"habita/internal/app/middleware"
	"habita/internal/app/outbox"
	"habita/internal/app/uow"
	domainavailability "habita/internal/domain/availability"
	domainpricing "habita/internal/domain/pricing"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/events"
	"habita/internal/domain/shared/fault"
	"habita/internal/domain/user"
)

var (
	ErrCheckInPast = errors.New("checkin cannot be in the past")
	ErrKeyReused   = errors.New("idempotency key already used for a different reservation")
)

// Deps are shared by every reservation handler.
type Deps struct {
	UoWFactory uow.UoWFactory
	Pricing    domainpricing.Calculator
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	NewID      func() string
	Logger     *slog.Logger
}

func (d Deps) now() time.Time { return handlersupport.Clock(d.Now) }

func (d Deps) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d Deps) pricing() domainpricing.Calculator {
	if d.Pricing != nil {
		return d.Pricing
	}
	return domainpricing.Standard{}
}

func (d Deps) encoder() outbox.EventEncoder {
	if d.Encoder != nil {
		return d.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

type CreateReservationHandler struct {
	Deps
}

func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*dto.Reservation, error) {
	unit, err := handlersupport.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()

	owner := user.ID(strings.TrimSpace(cmd.UserID))
	if owner == "" {
		owner = cmd.Actor.ID
	}
	if owner != cmd.Actor.ID {
		rel := domainreservation.RelationOf(cmd.Actor, owner, "")
		if err := domainreservation.Authorize(rel, domainreservation.ActionCreateForOther); err != nil {
			return nil, err
		}
	}

	key := strings.TrimSpace(cmd.RequestKey)
	if key != "" {
		existing, err := unit.Reservations().ByRequestKey(ctx, owner, key)
		switch {
		case err == nil:
			if string(existing.PropertyID) != cmd.PropertyID {
				return nil, fault.Conflict("idempotency_key", ErrKeyReused)
			}
			return h.replay(ctx, unit, existing)
		case !errors.Is(err, domainreservation.ErrNotFound):
			return nil, err
		}
	}

	prop, err := loadProperty(ctx, unit, domainproperty.ID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	rel := domainreservation.RelationOf(cmd.Actor, owner, prop.Host)
	if err := domainreservation.Authorize(rel, domainreservation.ActionCreate); err != nil {
		return nil, err
	}
	discount, err := parseDiscount(cmd.DiscountPercent)
	if err != nil {
		return nil, err
	}
	if discount != domainpricing.NoDiscount {
		if err := domainreservation.Authorize(rel, domainreservation.ActionDiscount); err != nil {
			return nil, err
		}
	}

	stay, err := stayRange(cmd.CheckIn, cmd.CheckOut, now)
	if err != nil {
		return nil, err
	}
	quote, err := h.pricing().Quote(ctx, domainpricing.QuoteInput{Property: prop, Range: stay, Discount: discount})
	if err != nil {
		return nil, quoteError(err)
	}

	res, err := domainreservation.New(domainreservation.CreateParams{
		ID:         domainreservation.ID(h.newID()),
		Property:   prop,
		UserID:     owner,
		Range:      stay,
		Guests:     cmd.GuestCount,
		Quote:      quote,
		Comment:    cmd.Comment,
		RequestKey: key,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	cal, err := unit.Availability().Calendar(ctx, prop.ID)
	if err != nil {
		return nil, err
	}
	if err := cal.Reserve(string(res.ID), stay, now); err != nil {
		return nil, conflictOnOverlap(err)
	}

	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
	}
	if err := unit.Availability().Save(ctx, cal); err != nil {
		return nil, err
	}
	if err := h.record(ctx, unit, res.Drain(), cal.Drain()); err != nil {
		return nil, err
	}

	h.logger().InfoContext(ctx, "reservation created",
		"reservation_id", res.ID, "property_id", res.PropertyID, "user_id", res.UserID, "range", res.Range.String())
	out := dto.MapReservation(res, prop)
	return &out, nil
}

func (h *CreateReservationHandler) replay(ctx context.Context, unit uow.UnitOfWork, res *domainreservation.Reservation) (*dto.Reservation, error) {
	prop, err := unit.Properties().ByID(ctx, res.PropertyID)
	if err != nil && !errors.Is(err, domainproperty.ErrNotFound) {
		return nil, err
	}
	h.logger().InfoContext(ctx, "reservation replayed", "reservation_id", res.ID, "request_key", res.RequestKey)
	out := dto.MapReservation(res, prop)
	return &out, nil
}

func (d Deps) record(ctx context.Context, unit uow.UnitOfWork, batches ...[]events.DomainEvent) error {
	for _, evs := range batches {
		if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), d.encoder(), evs); err != nil {
			return err
		}
	}
	return nil
}

func loadProperty(ctx context.Context, unit uow.UnitOfWork, id domainproperty.ID) (*domainproperty.Property, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, fault.Validation("property_id", domainreservation.ErrPropertyRequired)
	}
	prop, err := unit.Properties().ByID(ctx, id)
	if errors.Is(err, domainproperty.ErrNotFound) {
		return nil, fault.NotFound("property_id", err)
	}
	return prop, err
}

func loadReservation(ctx context.Context, unit uow.UnitOfWork, id string) (*domainreservation.Reservation, error) {
	res, err := unit.Reservations().ByID(ctx, domainreservation.ID(id))
	if errors.Is(err, domainreservation.ErrNotFound) {
		return nil, fault.NotFound("reservation_id", err)
	}
	return res, err
}

func quoteError(err error) error {
	if errors.Is(err, domainpricing.ErrAmountOverflow) {
		return fault.Validation("total_amount", err)
	}
	return fault.Validation("checkout", err)
}

func parseDiscount(percent float64) (domainpricing.Discount, error) {
	d, err := domainpricing.DiscountFromPercent(percent)
	if err != nil {
		return 0, fault.Validation("discount_percent", err)
	}
	return d, nil
}

// stayRange validates the order of the dates and rejects a checkin before today.
func stayRange(checkIn, checkOut, now time.Time) (daterange.DateRange, error) {
	stay, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return daterange.DateRange{}, fault.Validation("checkout", err)
	}
	if daterange.DaysBetween(now, stay.CheckIn) < 0 {
		return daterange.DateRange{}, fault.Validation("checkin", ErrCheckInPast)
	}
	return stay, nil
}

func conflictOnOverlap(err error) error {
	if errors.Is(err, domainavailability.ErrOverlappingRange) {
		return fault.Conflict("checkin", err)
	}
	return err
}

var _ commands.Handler[CreateReservationCommand, *dto.Reservation] = (*CreateReservationHandler)(nil)
var _ middleware.IdempotentCommand = CreateReservationCommand{}
