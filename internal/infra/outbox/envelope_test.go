package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appoutbox "habita/internal/app/outbox"
)

func TestCloudEventRoundTripKeepsRecordIdentity(t *testing.T) {
	rec := appoutbox.EventRecord{
		ID:         "evt-1",
		Name:       "reservation.status_changed",
		Payload:    []byte(`{"reservation_id":"r-1","new_status":"confirmed"}`),
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Aggregate:  "r-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}
	evt, err := NewCloudEvent(rec, "app://test")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if evt.Type != "reservation.status_changed.v1" {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeCloudEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != rec.ID || got.Name != rec.Name || got.Aggregate != rec.Aggregate {
		t.Fatalf("identity lost: %+v", got)
	}
	if !got.OccurredAt.Equal(rec.OccurredAt) {
		t.Fatalf("time mismatch: %v", got.OccurredAt)
	}
	if got.Headers["traceparent"] != "00-abc-def-01" {
		t.Fatalf("traceparent lost: %v", got.Headers)
	}
	var data map[string]string
	if err := json.Unmarshal(got.Payload, &data); err != nil || data["new_status"] != "confirmed" {
		t.Fatalf("payload mismatch: %s (%v)", got.Payload, err)
	}
}

func TestNewCloudEventRejectsNonJSONPayload(t *testing.T) {
	if _, err := NewCloudEvent(appoutbox.EventRecord{ID: "x", Name: "calendar.blocked", Payload: []byte("nope")}, ""); err != ErrEnvelopeInvalid {
		t.Fatalf("expected ErrEnvelopeInvalid, got %v", err)
	}
}

func TestWorkerTopics(t *testing.T) {
	w := &Worker{TopicPrefix: "habita."}
	if got := w.TopicFor("calendar.blocked"); got != "habita.calendar.events.v1" {
		t.Fatalf("unexpected topic %q", got)
	}
	topics := w.Topics()
	if len(topics) != 2 || topics[0] != "habita.reservation.events.v1" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestDecodeCloudEventRequiresIdentity(t *testing.T) {
	if _, err := DecodeCloudEvent([]byte(`{"type":"reservation.created.v1","data":{}}`)); err != ErrEnvelopeInvalid {
		t.Fatalf("expected ErrEnvelopeInvalid, got %v", err)
	}
}

type captureSink struct {
	recs []appoutbox.EventRecord
	err  error
}

func (s *captureSink) Publish(_ context.Context, rec appoutbox.EventRecord) error {
	s.recs = append(s.recs, rec)
	return s.err
}

func TestLocalProducerDecodesWorkerPayload(t *testing.T) {
	w := &Worker{Source: "app://test"}
	payload, headers, err := w.formatPayload(&EventDocument{
		ID:         "evt-9",
		Name:       "calendar.released",
		Payload:    []byte(`{"property_id":"p-1"}`),
		OccurredAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "p-1",
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if headers["content-type"] != cloudContentType {
		t.Fatalf("unexpected headers %v", headers)
	}
	sink := &captureSink{}
	if err := (LocalProducer{Sink: sink}).Publish(context.Background(), "calendar.events.v1", "p-1", payload, headers); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sink.recs) != 1 || sink.recs[0].ID != "evt-9" || sink.recs[0].Aggregate != "p-1" {
		t.Fatalf("unexpected delivery %+v", sink.recs)
	}
}

func TestLocalProducerReportsSinkFailure(t *testing.T) {
	w := &Worker{Source: "app://test"}
	payload, headers, err := w.formatPayload(&EventDocument{
		ID:         "evt-10",
		Name:       "reservation.created",
		Payload:    []byte(`{}`),
		OccurredAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "r-1",
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	boom := errors.New("subscriber down")
	sink := &captureSink{err: boom}
	if err := (LocalProducer{Sink: sink}).Publish(context.Background(), "reservation.events.v1", "r-1", payload, headers); !errors.Is(err, boom) {
		t.Fatalf("expected the sink error so the worker retries, got %v", err)
	}
}
