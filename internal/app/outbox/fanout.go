package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Subscriber reacts to a committed event. Failures are logged and never reach the writer.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, rec EventRecord) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc struct {
	Label string
	Fn    func(ctx context.Context, rec EventRecord) error
}

func (s SubscriberFunc) Name() string { return s.Label }

func (s SubscriberFunc) Handle(ctx context.Context, rec EventRecord) error {
	return s.Fn(ctx, rec)
}

// Fanout delivers every record to all subscribers.
type Fanout struct {
	Logger  *slog.Logger
	Timeout time.Duration

	mu          sync.RWMutex
	subscribers []Subscriber
	wg          sync.WaitGroup
}

func NewFanout(logger *slog.Logger, subscribers ...Subscriber) *Fanout {
	return &Fanout{Logger: logger, Timeout: 10 * time.Second, subscribers: subscribers}
}

func (f *Fanout) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, s)
}

// Publish runs every subscriber in order and joins their errors.
func (f *Fanout) Publish(ctx context.Context, rec EventRecord) error {
	f.mu.RLock()
	subs := append([]Subscriber(nil), f.subscribers...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.Handle(ctx, rec); err != nil {
			f.logger().Warn("subscriber failed", "subscriber", s.Name(), "event", rec.Name, "event_id", rec.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAsync delivers records in the background, detached from the caller's cancellation.
func (f *Fanout) PublishAsync(ctx context.Context, recs ...EventRecord) {
	if len(recs) == 0 {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		base := context.WithoutCancel(ctx)
		for _, rec := range recs {
			runCtx, cancel := context.WithTimeout(base, f.timeout())
			_ = f.Publish(runCtx, rec)
			cancel()
		}
	}()
}

// Wait blocks until every PublishAsync call has finished.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

func (f *Fanout) timeout() time.Duration {
	if f.Timeout <= 0 {
		return 10 * time.Second
	}
	return f.Timeout
}

func (f *Fanout) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
