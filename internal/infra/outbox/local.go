package outbox

import (
	"context"

	appoutbox "habita/internal/app/outbox"
)

// Sink receives decoded records.
type Sink interface {
	Publish(ctx context.Context, rec appoutbox.EventRecord) error
}

// LocalProducer lets the worker deliver straight to in-process subscribers when no broker
// is configured. A sink error is returned so the worker marks the record failed and retries it;
// delivery is at least once, like the Kafka path.
type LocalProducer struct {
	Sink Sink
}

func (p LocalProducer) Publish(ctx context.Context, _ string, _ string, payload []byte, _ map[string]string) error {
	rec, err := DecodeCloudEvent(payload)
	if err != nil {
		return err
	}
	return p.Sink.Publish(ctx, rec)
}
