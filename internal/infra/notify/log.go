package notify

import (
	"context"
	"log/slog"

	"habita/internal/app/policies"
)

// LogNotifier is the default dispatcher: it writes each notification to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg policies.Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification dispatched",
		"event", msg.Event,
		"user_id", msg.UserID,
		"reservation_id", msg.ReservationID,
		"property_id", msg.PropertyID,
		"old_status", msg.OldStatus,
		"new_status", msg.NewStatus,
		"message", msg.Message,
	)
	return nil
}
