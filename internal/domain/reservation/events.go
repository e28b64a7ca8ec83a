package reservation

import (
	"time"

	"habita/internal/domain/shared/daterange"
	"habita/internal/domain/shared/money"
)

const (
	EventCreated              = "reservation.created"
	EventStatusChanged        = "reservation.status_changed"
	EventPaymentStatusChanged = "reservation.payment_status_changed"
	EventRescheduled          = "reservation.rescheduled"
)

type Created struct {
	ReservationID string              `json:"reservation_id"`
	PropertyID    string              `json:"property_id"`
	UserID        string              `json:"user_id"`
	Range         daterange.DateRange `json:"range"`
	Guests        int                 `json:"guest_count"`
	Total         money.Money         `json:"total"`
	Status        Status              `json:"status"`
	At            time.Time           `json:"at"`
}

func (e Created) EventName() string     { return EventCreated }
func (e Created) AggregateID() string   { return e.ReservationID }
func (e Created) OccurredAt() time.Time { return e.At }

type StatusChanged struct {
	ReservationID string    `json:"reservation_id"`
	PropertyID    string    `json:"property_id"`
	UserID        string    `json:"user_id"`
	OldStatus     Status    `json:"old_status"`
	NewStatus     Status    `json:"new_status"`
	At            time.Time `json:"at"`
}

func (e StatusChanged) EventName() string     { return EventStatusChanged }
func (e StatusChanged) AggregateID() string   { return e.ReservationID }
func (e StatusChanged) OccurredAt() time.Time { return e.At }

type PaymentStatusChanged struct {
	ReservationID string        `json:"reservation_id"`
	PropertyID    string        `json:"property_id"`
	UserID        string        `json:"user_id"`
	OldStatus     PaymentStatus `json:"old_payment_status"`
	NewStatus     PaymentStatus `json:"new_payment_status"`
	At            time.Time     `json:"at"`
}

func (e PaymentStatusChanged) EventName() string     { return EventPaymentStatusChanged }
func (e PaymentStatusChanged) AggregateID() string   { return e.ReservationID }
func (e PaymentStatusChanged) OccurredAt() time.Time { return e.At }

type Rescheduled struct {
	ReservationID string              `json:"reservation_id"`
	PropertyID    string              `json:"property_id"`
	UserID        string              `json:"user_id"`
	From          daterange.DateRange `json:"from"`
	To            daterange.DateRange `json:"to"`
	Guests        int                 `json:"guest_count"`
	Total         money.Money         `json:"total"`
	At            time.Time           `json:"at"`
}

func (e Rescheduled) EventName() string     { return EventRescheduled }
func (e Rescheduled) AggregateID() string   { return e.ReservationID }
func (e Rescheduled) OccurredAt() time.Time { return e.At }

func CreatedEvent(r *Reservation) Created {
	return Created{
		ReservationID: string(r.ID),
		PropertyID:    string(r.PropertyID),
		UserID:        string(r.UserID),
		Range:         r.Range,
		Guests:        r.Guests,
		Total:         r.Total,
		Status:        r.Status,
		At:            r.CreatedAt,
	}
}

func StatusChangedEvent(r *Reservation, old Status) StatusChanged {
	return StatusChanged{
		ReservationID: string(r.ID),
		PropertyID:    string(r.PropertyID),
		UserID:        string(r.UserID),
		OldStatus:     old,
		NewStatus:     r.Status,
		At:            r.UpdatedAt,
	}
}

func PaymentStatusChangedEvent(r *Reservation, old PaymentStatus) PaymentStatusChanged {
	return PaymentStatusChanged{
		ReservationID: string(r.ID),
		PropertyID:    string(r.PropertyID),
		UserID:        string(r.UserID),
		OldStatus:     old,
		NewStatus:     r.PaymentStatus,
		At:            r.UpdatedAt,
	}
}

func RescheduledEvent(r *Reservation, from daterange.DateRange) Rescheduled {
	return Rescheduled{
		ReservationID: string(r.ID),
		PropertyID:    string(r.PropertyID),
		UserID:        string(r.UserID),
		From:          from,
		To:            r.Range,
		Guests:        r.Guests,
		Total:         r.Total,
		At:            r.UpdatedAt,
	}
}
