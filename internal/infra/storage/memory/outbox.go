package memory

import (
	"context"
	"sync"

	appoutbox "habita/internal/app/outbox"
)

// Publisher receives committed records for delivery.
type Publisher interface {
	PublishAsync(ctx context.Context, recs ...appoutbox.EventRecord)
}

// Outbox holds records of committed units until Flush hands them to the publisher.
type Outbox struct {
	mu        sync.Mutex
	records   []appoutbox.EventRecord
	publisher Publisher
}

func NewOutbox(publisher Publisher) *Outbox {
	return &Outbox{publisher: publisher}
}

func (o *Outbox) enqueue(recs ...appoutbox.EventRecord) {
	if len(recs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, recs...)
}

// Flush drains everything committed so far. Records are dropped when no publisher is set.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	recs := o.records
	o.records = nil
	o.mu.Unlock()
	if o.publisher != nil && len(recs) > 0 {
		o.publisher.PublishAsync(ctx, recs...)
	}
	return nil
}

// Pending reports how many committed records still await a flush.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.records)
}
