package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appoutbox "habita/internal/app/outbox"
)

// EventArchive writes every relayed domain event to an S3-compatible bucket as one JSON
// object, giving an append-only audit trail of reservation and calendar changes.
type EventArchive struct {
	bucket         string
	prefix         string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewEventArchive configures the archive using the provided endpoint and credentials.
func NewEventArchive(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*EventArchive, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &EventArchive{bucket: bucket, prefix: "events", client: minioClient, logger: logger}, nil
}

func (a *EventArchive) Name() string { return "event-archive" }

func (a *EventArchive) Handle(ctx context.Context, rec appoutbox.EventRecord) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(archivedEvent{
		ID:         rec.ID,
		Name:       rec.Name,
		Aggregate:  rec.Aggregate,
		OccurredAt: rec.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Payload:    json.RawMessage(rec.Payload),
	})
	if err != nil {
		return err
	}
	key := ObjectKey(a.prefix, rec)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	if a.logger != nil {
		a.logger.Debug("event archived", "bucket", a.bucket, "key", key)
	}
	return nil
}

// Ping reports whether the bucket is reachable.
func (a *EventArchive) Ping(ctx context.Context) error {
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}

// ObjectKey lays objects out by day and event name: events/2025/06/01/reservation.created/<id>.json.
func ObjectKey(prefix string, rec appoutbox.EventRecord) string {
	day := rec.OccurredAt.UTC().Format("2006/01/02")
	return path.Join(prefix, day, rec.Name, rec.ID+".json")
}

type archivedEvent struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Aggregate  string          `json:"aggregate"`
	OccurredAt string          `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func (a *EventArchive) ensureBucket(ctx context.Context) error {
	a.bucketInitOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			a.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return a.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ appoutbox.Subscriber = (*EventArchive)(nil)
