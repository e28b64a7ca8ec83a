package availability

import (
	"time"

	"habita/internal/domain/property"
	"habita/internal/domain/shared/daterange"
)

const (
	EventBlocked              = "calendar.blocked"
	EventReleased             = "calendar.released"
	EventRescheduled          = "calendar.rescheduled"
	EventRebuilt              = "calendar.rebuilt"
	EventOverbookingPrevented = "calendar.overbooking_prevented"
)

type Blocked struct {
	PropertyID    string              `json:"property_id"`
	ReservationID string              `json:"reservation_id"`
	Range         daterange.DateRange `json:"range"`
	At            time.Time           `json:"at"`
}

func (e Blocked) EventName() string     { return EventBlocked }
func (e Blocked) AggregateID() string   { return e.PropertyID }
func (e Blocked) OccurredAt() time.Time { return e.At }

type Released struct {
	PropertyID    string              `json:"property_id"`
	ReservationID string              `json:"reservation_id"`
	Range         daterange.DateRange `json:"range"`
	At            time.Time           `json:"at"`
}

func (e Released) EventName() string     { return EventReleased }
func (e Released) AggregateID() string   { return e.PropertyID }
func (e Released) OccurredAt() time.Time { return e.At }

type Rescheduled struct {
	PropertyID    string              `json:"property_id"`
	ReservationID string              `json:"reservation_id"`
	From          daterange.DateRange `json:"from"`
	To            daterange.DateRange `json:"to"`
	At            time.Time           `json:"at"`
}

func (e Rescheduled) EventName() string     { return EventRescheduled }
func (e Rescheduled) AggregateID() string   { return e.PropertyID }
func (e Rescheduled) OccurredAt() time.Time { return e.At }

type Rebuilt struct {
	PropertyID string    `json:"property_id"`
	Blocks     int       `json:"blocks"`
	At         time.Time `json:"at"`
}

func (e Rebuilt) EventName() string     { return EventRebuilt }
func (e Rebuilt) AggregateID() string   { return e.PropertyID }
func (e Rebuilt) OccurredAt() time.Time { return e.At }

type OverbookingPrevented struct {
	PropertyID    string              `json:"property_id"`
	ReservationID string              `json:"reservation_id"`
	Range         daterange.DateRange `json:"range"`
	At            time.Time           `json:"at"`
}

func (e OverbookingPrevented) EventName() string     { return EventOverbookingPrevented }
func (e OverbookingPrevented) AggregateID() string   { return e.PropertyID }
func (e OverbookingPrevented) OccurredAt() time.Time { return e.At }

func BlockedEvent(id property.ID, reservationID string, r daterange.DateRange, at time.Time) Blocked {
	return Blocked{PropertyID: string(id), ReservationID: reservationID, Range: r, At: at.UTC()}
}

func ReleasedEvent(id property.ID, reservationID string, r daterange.DateRange, at time.Time) Released {
	return Released{PropertyID: string(id), ReservationID: reservationID, Range: r, At: at.UTC()}
}

func RescheduledEvent(id property.ID, reservationID string, from, to daterange.DateRange, at time.Time) Rescheduled {
	return Rescheduled{PropertyID: string(id), ReservationID: reservationID, From: from, To: to, At: at.UTC()}
}

func RebuiltEvent(id property.ID, blocks int, at time.Time) Rebuilt {
	return Rebuilt{PropertyID: string(id), Blocks: blocks, At: at.UTC()}
}

func OverbookingPreventedEvent(id property.ID, reservationID string, r daterange.DateRange, at time.Time) OverbookingPrevented {
	return OverbookingPrevented{PropertyID: string(id), ReservationID: reservationID, Range: r, At: at.UTC()}
}
