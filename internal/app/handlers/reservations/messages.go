package reservations

import (
	"time"

	"habita/internal/app/dto"
	"habita/internal/domain/user"
)

const (
	createReservationKey   = "reservations.create"
	updateReservationKey   = "reservations.update"
	transitionStatusKey    = "reservations.transition"
	rebuildAvailabilityKey = "availability.rebuild"
	getReservationKey      = "reservations.get"
	listReservationsKey    = "reservations.list"
	getOccupiedDatesKey    = "availability.occupied_dates"
)

type CreateReservationCommand struct {
	Actor user.Actor `json:"-"`
	// UserID defaults to the acting user.
	UserID          string    `json:"user_id"`
	PropertyID      string    `json:"property_id" validate:"required"`
	CheckIn         time.Time `json:"checkin" validate:"required"`
	CheckOut        time.Time `json:"checkout" validate:"required"`
	GuestCount      int       `json:"guest_count" validate:"gte=1"`
	DiscountPercent float64   `json:"discount_percent"`
	Comment         string    `json:"comment" validate:"max=120"`
	RequestKey      string    `json:"-" validate:"max=128"`
}

func (c CreateReservationCommand) Key() string { return createReservationKey }

func (c CreateReservationCommand) ActingUser() user.Actor { return c.Actor }

// IdempotencyKey scopes the client key to the acting user.
func (c CreateReservationCommand) IdempotencyKey() string {
	if c.RequestKey == "" {
		return ""
	}
	return string(c.Actor.ID) + ":" + c.RequestKey
}

func (c CreateReservationCommand) ResultPrototype() any { return &dto.Reservation{} }

// Patch lists the fields an update may touch; nil means unchanged.
type Patch struct {
	PropertyID      *string    `json:"property_id"`
	UserID          *string    `json:"user_id"`
	CheckIn         *time.Time `json:"checkin"`
	CheckOut        *time.Time `json:"checkout"`
	GuestCount      *int       `json:"guest_count" validate:"omitempty,gte=1"`
	DiscountPercent *float64   `json:"discount_percent"`
	Comment         *string    `json:"comment" validate:"omitempty,max=120"`
	Status          *string    `json:"status"`
	PaymentStatus   *string    `json:"payment_status"`
}

func (p Patch) touchesStay() bool {
	return p.CheckIn != nil || p.CheckOut != nil || p.GuestCount != nil || p.DiscountPercent != nil
}

func (p Patch) empty() bool {
	return !p.touchesStay() && p.PropertyID == nil && p.UserID == nil && p.Comment == nil &&
		p.Status == nil && p.PaymentStatus == nil
}

type UpdateReservationCommand struct {
	Actor         user.Actor `json:"-"`
	ReservationID string     `json:"reservation_id" validate:"required"`
	Patch         Patch      `json:"patch"`
}

func (c UpdateReservationCommand) Key() string { return updateReservationKey }

func (c UpdateReservationCommand) ActingUser() user.Actor { return c.Actor }

// TransitionStatusCommand is an update restricted to the lifecycle fields.
type TransitionStatusCommand struct {
	Actor         user.Actor `json:"-"`
	ReservationID string     `json:"reservation_id" validate:"required"`
	Status        string     `json:"status" validate:"required_without=PaymentStatus"`
	PaymentStatus string     `json:"payment_status"`
}

func (c TransitionStatusCommand) Key() string { return transitionStatusKey }

func (c TransitionStatusCommand) ActingUser() user.Actor { return c.Actor }

func (c TransitionStatusCommand) patch() Patch {
	var p Patch
	if c.Status != "" {
		status := c.Status
		p.Status = &status
	}
	if c.PaymentStatus != "" {
		payment := c.PaymentStatus
		p.PaymentStatus = &payment
	}
	return p
}

type RebuildAvailabilityCommand struct {
	Actor      user.Actor `json:"-"`
	PropertyID string     `json:"property_id" validate:"required"`
}

func (c RebuildAvailabilityCommand) Key() string { return rebuildAvailabilityKey }

func (c RebuildAvailabilityCommand) ActingUser() user.Actor { return c.Actor }

type GetReservationQuery struct {
	Actor         user.Actor `json:"-"`
	ReservationID string     `json:"reservation_id" validate:"required"`
}

func (q GetReservationQuery) Key() string { return getReservationKey }

func (q GetReservationQuery) ActingUser() user.Actor { return q.Actor }

type ListReservationsQuery struct {
	Actor      user.Actor `json:"-"`
	Status     string     `json:"status" validate:"omitempty,oneof=pending accepted confirmed rejected cancelled completed"`
	PropertyID string     `json:"property_id"`
	Limit      int        `json:"limit" validate:"gte=0,lte=500"`
}

func (q ListReservationsQuery) Key() string { return listReservationsKey }

func (q ListReservationsQuery) ActingUser() user.Actor { return q.Actor }

// GetOccupiedDatesQuery is public: calendars are shown to anyone browsing a property.
type GetOccupiedDatesQuery struct {
	PropertyID string `json:"property_id" validate:"required"`
}

func (q GetOccupiedDatesQuery) Key() string { return getOccupiedDatesKey }
