package kafka

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	appoutbox "habita/internal/app/outbox"
	infraoutbox "habita/internal/infra/outbox"
)

// Inbox remembers which event IDs a consumer has already handled.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Sink receives decoded records; *appoutbox.Fanout satisfies it.
type Sink interface {
	Publish(ctx context.Context, rec appoutbox.EventRecord) error
}

// EventRelay turns CloudEvents from the outbox topics back into records and hands each one
// to the sink exactly once per consumer group.
type EventRelay struct {
	Inbox  Inbox
	Sink   Sink
	Logger *slog.Logger
}

func (r *EventRelay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	rec, err := infraoutbox.DecodeCloudEvent(msg.Value)
	if err != nil {
		// poison message: log and mark it so the partition keeps moving
		r.logger().Error("dropping undecodable event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}
	if rec.Aggregate == "" {
		rec.Aggregate = string(msg.Key)
	}
	if r.Inbox != nil {
		seen, err := r.Inbox.Seen(ctx, rec.ID)
		if err != nil {
			return err
		}
		if seen {
			r.logger().Debug("duplicate event skipped", "event_id", rec.ID, "event", rec.Name)
			return nil
		}
	}
	if err := r.Sink.Publish(ctx, rec); err != nil {
		r.logger().Warn("event subscribers failed", "event_id", rec.ID, "event", rec.Name, "error", err)
	}
	return nil
}

func (r *EventRelay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
