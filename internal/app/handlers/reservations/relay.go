package reservations

import (
	"context"
	"fmt"

	"habita/internal/app/outbox"
	"habita/internal/app/policies"
	domainavailability "habita/internal/domain/availability"
	domainreservation "habita/internal/domain/reservation"
)

// NotificationRelay turns reservation events into dispatcher calls.
type NotificationRelay struct {
	Notifier policies.Notifier
}

func (r NotificationRelay) Name() string { return "notifications" }

func (r NotificationRelay) Handle(ctx context.Context, rec outbox.EventRecord) error {
	if r.Notifier == nil {
		return nil
	}
	n, ok, err := NotificationFor(rec)
	if err != nil || !ok {
		return err
	}
	return r.Notifier.Notify(ctx, n)
}

// NotificationFor maps a relayed record to a notification; ok is false for events nobody is told about.
func NotificationFor(rec outbox.EventRecord) (policies.Notification, bool, error) {
	switch rec.Name {
	case domainreservation.EventCreated:
		ev, err := outbox.Decode[domainreservation.Created](rec)
		if err != nil {
			return policies.Notification{}, false, err
		}
		return policies.Notification{
			Event:         rec.Name,
			ReservationID: ev.ReservationID,
			PropertyID:    ev.PropertyID,
			UserID:        ev.UserID,
			NewStatus:     string(ev.Status),
			Message:       fmt.Sprintf("Reservation requested for %s", ev.Range),
			At:            ev.At,
		}, true, nil
	case domainreservation.EventStatusChanged:
		ev, err := outbox.Decode[domainreservation.StatusChanged](rec)
		if err != nil {
			return policies.Notification{}, false, err
		}
		return policies.Notification{
			Event:         rec.Name,
			ReservationID: ev.ReservationID,
			PropertyID:    ev.PropertyID,
			UserID:        ev.UserID,
			OldStatus:     string(ev.OldStatus),
			NewStatus:     string(ev.NewStatus),
			Message:       fmt.Sprintf("Reservation status changed from %s to %s", ev.OldStatus, ev.NewStatus),
			At:            ev.At,
		}, true, nil
	case domainreservation.EventPaymentStatusChanged:
		ev, err := outbox.Decode[domainreservation.PaymentStatusChanged](rec)
		if err != nil {
			return policies.Notification{}, false, err
		}
		return policies.Notification{
			Event:         rec.Name,
			ReservationID: ev.ReservationID,
			PropertyID:    ev.PropertyID,
			UserID:        ev.UserID,
			OldStatus:     string(ev.OldStatus),
			NewStatus:     string(ev.NewStatus),
			Message:       paymentMessage(ev.NewStatus),
			At:            ev.At,
		}, true, nil
	case domainreservation.EventRescheduled:
		ev, err := outbox.Decode[domainreservation.Rescheduled](rec)
		if err != nil {
			return policies.Notification{}, false, err
		}
		return policies.Notification{
			Event:         rec.Name,
			ReservationID: ev.ReservationID,
			PropertyID:    ev.PropertyID,
			UserID:        ev.UserID,
			Message:       fmt.Sprintf("Reservation moved from %s to %s", ev.From, ev.To),
			At:            ev.At,
		}, true, nil
	}
	return policies.Notification{}, false, nil
}

func paymentMessage(s domainreservation.PaymentStatus) string {
	switch s {
	case domainreservation.PaymentPaid:
		return "Payment received"
	case domainreservation.PaymentFailed:
		return "Payment failed"
	case domainreservation.PaymentRefunded:
		return "Payment refunded"
	}
	return "Payment status changed to " + string(s)
}

// CacheInvalidator drops cached occupancy whenever a calendar changes.
type CacheInvalidator struct {
	Cache policies.OccupancyCache
}

func (c CacheInvalidator) Name() string { return "occupancy-cache" }

func (c CacheInvalidator) Handle(ctx context.Context, rec outbox.EventRecord) error {
	if c.Cache == nil {
		return nil
	}
	switch rec.Name {
	case domainavailability.EventBlocked, domainavailability.EventReleased,
		domainavailability.EventRescheduled, domainavailability.EventRebuilt:
		return c.Cache.Invalidate(ctx, rec.Aggregate)
	}
	return nil
}

var (
	_ outbox.Subscriber = NotificationRelay{}
	_ outbox.Subscriber = CacheInvalidator{}
)
