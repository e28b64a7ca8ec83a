package s3

import (
	"testing"
	"time"

	appoutbox "habita/internal/app/outbox"
)

func TestObjectKeyGroupsByDayAndEvent(t *testing.T) {
	rec := appoutbox.EventRecord{
		ID:         "evt-1",
		Name:       "calendar.blocked",
		OccurredAt: time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("UTC-3", -3*3600)),
	}
	if got := ObjectKey("events", rec); got != "events/2025/06/02/calendar.blocked/evt-1.json" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestParseEndpointStripsScheme(t *testing.T) {
	if got := parseEndpoint("http://minio:9000"); got != "minio:9000" {
		t.Fatalf("unexpected endpoint %q", got)
	}
	if got := parseEndpoint("minio:9000"); got != "minio:9000" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}

func TestNewEventArchiveRequiresBucket(t *testing.T) {
	if _, err := NewEventArchive("localhost:9000", false, "a", "b", " ", nil); err == nil {
		t.Fatalf("expected bucket error")
	}
}
