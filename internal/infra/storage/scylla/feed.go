package scylla

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"

	"habita/internal/app/policies"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

var ErrSessionMissing = errors.New("scylla session not initialized")

// Feed stores delivered notifications per recipient, partitioned by user ID.
type Feed struct {
	session *gocql.Session
}

func NewFeed(session *gocql.Session) *Feed {
	return &Feed{session: session}
}

func (f *Feed) Notify(ctx context.Context, n policies.Notification) error {
	if f.session == nil {
		return ErrSessionMissing
	}
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	return f.session.
		Query(`INSERT INTO notifications_by_user (user_id, notification_id, event, reservation_id, property_id, old_status, new_status, message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.UserID, gocql.UUIDFromTime(at), n.Event, n.ReservationID, n.PropertyID, n.OldStatus, n.NewStatus, n.Message, at.UTC()).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

func (f *Feed) Recent(ctx context.Context, userID string, limit int) ([]policies.Notification, error) {
	if f.session == nil {
		return nil, ErrSessionMissing
	}
	limit = FeedLimit(limit)
	iter := f.session.
		Query(`SELECT event, reservation_id, property_id, old_status, new_status, message, created_at FROM notifications_by_user WHERE user_id = ? LIMIT ?`, userID, limit).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	out := make([]policies.Notification, 0, limit)
	var n policies.Notification
	for iter.Scan(&n.Event, &n.ReservationID, &n.PropertyID, &n.OldStatus, &n.NewStatus, &n.Message, &n.At) {
		n.UserID = userID
		n.At = n.At.UTC()
		out = append(out, n)
		n = policies.Notification{}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// FeedLimit clamps a requested page size.
func FeedLimit(limit int) int {
	if limit <= 0 {
		return defaultFeedLimit
	}
	if limit > maxFeedLimit {
		return maxFeedLimit
	}
	return limit
}

// Ping checks the session with a trivial query.
func (f *Feed) Ping(ctx context.Context) error {
	if f.session == nil {
		return ErrSessionMissing
	}
	return f.session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec()
}

var (
	_ policies.Notifier         = (*Feed)(nil)
	_ policies.NotificationFeed = (*Feed)(nil)
)
