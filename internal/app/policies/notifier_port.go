package policies

import (
	"context"
	"time"
)

// Notification is what the dispatcher receives after a reservation changes.
type Notification struct {
	Event         string    `json:"event"`
	ReservationID string    `json:"reservation_id"`
	PropertyID    string    `json:"property_id"`
	UserID        string    `json:"user_id"`
	OldStatus     string    `json:"old_status,omitempty"`
	NewStatus     string    `json:"new_status,omitempty"`
	Message       string    `json:"message"`
	At            time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MultiNotifier fans one notification out to several dispatchers and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var first error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NotificationFeed serves the notifications a user has received, newest first.
type NotificationFeed interface {
	Recent(ctx context.Context, userID string, limit int) ([]Notification, error)
}
