package reservations

import (
	"context"
	"errors"
	"strings"
	"time"

	"habita/internal/app/commands"
	"habita/internal/app/dto"
	handlersupport "habita/internal/app/handlers/support"
	domainavailability "habita/internal/domain/availability"
	domainpricing "habita/internal/domain/pricing"
	domainproperty "habita/internal/domain/property"
	domainreservation "habita/internal/domain/reservation"
	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/fault"
	"habita/internal/domain/user"
)

var ErrEmptyPatch = errors.New("nothing to update")

type UpdateReservationHandler struct {
	Deps
}

func (h *UpdateReservationHandler) Handle(ctx context.Context, cmd UpdateReservationCommand) (*dto.Reservation, error) {
	return h.apply(ctx, cmd.Actor, cmd.ReservationID, cmd.Patch)
}

type TransitionStatusHandler struct {
	Updates *UpdateReservationHandler
}

func (h *TransitionStatusHandler) Handle(ctx context.Context, cmd TransitionStatusCommand) (*dto.Reservation, error) {
	return h.Updates.apply(ctx, cmd.Actor, cmd.ReservationID, cmd.patch())
}

// plan is a fully authorized and parsed patch, ready to apply.
type plan struct {
	stay       bool
	checkIn    time.Time
	checkOut   time.Time
	guests     int
	discount   domainpricing.Discount
	comment    *string
	status     *domainreservation.Status
	payment    *domainreservation.PaymentStatus
	datesMoved bool
}

func (h *UpdateReservationHandler) apply(ctx context.Context, actor user.Actor, id string, patch Patch) (*dto.Reservation, error) {
	if patch.empty() {
		return nil, fault.Validation("patch", ErrEmptyPatch)
	}
	unit, err := handlersupport.WriteUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()

	res, err := loadReservation(ctx, unit, id)
	if err != nil {
		return nil, err
	}
	prop, err := loadProperty(ctx, unit, res.PropertyID)
	if err != nil {
		return nil, err
	}
	rel := domainreservation.RelationOf(actor, res.UserID, prop.Host)
	if err := domainreservation.Authorize(rel, domainreservation.ActionView); err != nil {
		return nil, err
	}

	p, err := h.authorize(rel, res, patch)
	if err != nil {
		return nil, err
	}

	cal, err := unit.Availability().Calendar(ctx, prop.ID)
	if err != nil {
		return nil, err
	}

	if p.stay {
		if err := h.changeStay(ctx, res, prop, cal, p, now); err != nil {
			return nil, err
		}
	}
	if p.comment != nil {
		if err := res.UpdateComment(*p.comment, now); err != nil {
			return nil, err
		}
	}
	if p.status != nil {
		held := res.OccupiesCalendar()
		if err := res.ChangeStatus(*p.status, now); err != nil {
			return nil, err
		}
		if held && !res.OccupiesCalendar() {
			if err := cal.Release(string(res.ID), now); err != nil && !errors.Is(err, domainavailability.ErrRangeNotFound) {
				return nil, err
			}
		}
	}
	if p.payment != nil {
		if err := res.ChangePaymentStatus(*p.payment, now); err != nil {
			return nil, err
		}
	}

	resEvents := res.Drain()
	calEvents := cal.Drain()
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, err
	}
	if len(calEvents) > 0 {
		if err := unit.Availability().Save(ctx, cal); err != nil {
			return nil, err
		}
	}
	if err := h.record(ctx, unit, resEvents, calEvents); err != nil {
		return nil, err
	}

	h.logger().InfoContext(ctx, "reservation updated",
		"reservation_id", res.ID, "actor", actor.ID, "relation", rel.String(), "status", res.Status, "payment_status", res.PaymentStatus)
	out := dto.MapReservation(res, prop)
	return &out, nil
}

// authorize checks every requested field against the guard table before anything is applied.
func (h *UpdateReservationHandler) authorize(rel domainreservation.Relation, res *domainreservation.Reservation, patch Patch) (plan, error) {
	var p plan
	if patch.PropertyID != nil && domainproperty.ID(strings.TrimSpace(*patch.PropertyID)) != res.PropertyID {
		return p, fault.ImmutableField("property_id", domainreservation.ErrPropertyImmutable)
	}
	if patch.UserID != nil && user.ID(strings.TrimSpace(*patch.UserID)) != res.UserID {
		return p, fault.ImmutableField("user_id", domainreservation.ErrUserImmutable)
	}

	p.checkIn, p.checkOut = res.Range.CheckIn, res.Range.CheckOut
	p.guests, p.discount = res.Guests, res.Discount
	if patch.CheckIn != nil {
		p.checkIn = daterange.Day(*patch.CheckIn)
	}
	if patch.CheckOut != nil {
		p.checkOut = daterange.Day(*patch.CheckOut)
	}
	if patch.GuestCount != nil {
		p.guests = *patch.GuestCount
	}
	if patch.CheckIn != nil || patch.CheckOut != nil || patch.GuestCount != nil {
		if err := domainreservation.Authorize(rel, domainreservation.ActionEditStay); err != nil {
			return p, err
		}
	}
	if patch.DiscountPercent != nil {
		d, err := parseDiscount(*patch.DiscountPercent)
		if err != nil {
			return p, err
		}
		if d != res.Discount {
			if err := domainreservation.Authorize(rel, domainreservation.ActionDiscount); err != nil {
				return p, err
			}
		}
		p.discount = d
	}
	if patch.Comment != nil {
		if err := domainreservation.Authorize(rel, domainreservation.ActionEditStay); err != nil {
			return p, err
		}
		p.comment = patch.Comment
	}
	if patch.Status != nil {
		status, err := domainreservation.ParseStatus(*patch.Status)
		if err != nil {
			return p, fault.Validation("status", err)
		}
		if status != res.Status {
			if err := domainreservation.AuthorizeStatus(rel, status); err != nil {
				return p, err
			}
		}
		p.status = &status
	}
	if patch.PaymentStatus != nil {
		payment, err := domainreservation.ParsePaymentStatus(*patch.PaymentStatus)
		if err != nil {
			return p, fault.Validation("payment_status", err)
		}
		if payment != res.PaymentStatus {
			if err := domainreservation.Authorize(rel, domainreservation.ActionPayment); err != nil {
				return p, err
			}
		}
		p.payment = &payment
	}

	p.datesMoved = !p.checkIn.Equal(res.Range.CheckIn) || !p.checkOut.Equal(res.Range.CheckOut)
	p.stay = patch.touchesStay()
	return p, nil
}

func (h *UpdateReservationHandler) changeStay(
	ctx context.Context,
	res *domainreservation.Reservation,
	prop *domainproperty.Property,
	cal *domainavailability.Calendar,
	p plan,
	now time.Time,
) error {
	stay, err := h.validateStay(res, p, now)
	if err != nil {
		return err
	}
	quote, err := h.pricing().Quote(ctx, domainpricing.QuoteInput{Property: prop, Range: stay, Discount: p.discount})
	if err != nil {
		return quoteError(err)
	}
	if err := res.ChangeStay(domainreservation.StayChange{Property: prop, Range: stay, Guests: p.guests, Quote: quote}, now); err != nil {
		return err
	}
	if !res.OccupiesCalendar() {
		return nil
	}
	if cal.Holds(string(res.ID)) {
		return conflictOnOverlap(cal.Reschedule(string(res.ID), stay, now))
	}
	return conflictOnOverlap(cal.Reserve(string(res.ID), stay, now))
}

// validateStay only enforces the not-in-the-past rule when the dates actually move.
func (h *UpdateReservationHandler) validateStay(res *domainreservation.Reservation, p plan, now time.Time) (daterange.DateRange, error) {
	if p.datesMoved {
		return stayRange(p.checkIn, p.checkOut, now)
	}
	return res.Range, nil
}

var _ commands.Handler[UpdateReservationCommand, *dto.Reservation] = (*UpdateReservationHandler)(nil)
var _ commands.Handler[TransitionStatusCommand, *dto.Reservation] = (*TransitionStatusHandler)(nil)
