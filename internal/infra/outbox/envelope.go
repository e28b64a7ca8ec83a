package outbox

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	appoutbox "habita/internal/app/outbox"
)

const (
	specVersion      = "1.0"
	typeSuffix       = ".v1"
	cloudContentType = "application/cloudevents+json"
)

var ErrEnvelopeInvalid = errors.New("outbox: invalid cloudevent envelope")

// CloudEvent is the structured-mode envelope written to Kafka. ID is the outbox record ID,
// so redeliveries of one record share an ID and consumers can deduplicate on it.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

func NewCloudEvent(rec appoutbox.EventRecord, source string) (CloudEvent, error) {
	if !json.Valid(rec.Payload) {
		return CloudEvent{}, ErrEnvelopeInvalid
	}
	return CloudEvent{
		SpecVersion:     specVersion,
		ID:              rec.ID,
		Type:            rec.Name + typeSuffix,
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt.UTC(),
		DataContentType: "application/json",
		TraceParent:     rec.Headers["traceparent"],
		Data:            rec.Payload,
	}, nil
}

// DecodeCloudEvent parses an envelope and turns it back into the record it was built from.
func DecodeCloudEvent(payload []byte) (appoutbox.EventRecord, error) {
	var evt CloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return appoutbox.EventRecord{}, err
	}
	if evt.ID == "" || evt.Type == "" || len(evt.Data) == 0 {
		return appoutbox.EventRecord{}, ErrEnvelopeInvalid
	}
	rec := appoutbox.EventRecord{
		ID:         evt.ID,
		Name:       strings.TrimSuffix(evt.Type, typeSuffix),
		Payload:    []byte(evt.Data),
		OccurredAt: evt.Time.UTC(),
		Aggregate:  evt.Subject,
		Headers:    map[string]string{},
	}
	if evt.TraceParent != "" {
		rec.Headers["traceparent"] = evt.TraceParent
	}
	return rec, nil
}
