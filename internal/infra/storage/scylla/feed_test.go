package scylla

import (
	"context"
	"errors"
	"testing"

	"habita/internal/app/policies"
)

func TestFeedLimit(t *testing.T) {
	cases := map[int]int{0: 50, -3: 50, 10: 10, 500: 200}
	for in, want := range cases {
		if got := FeedLimit(in); got != want {
			t.Fatalf("FeedLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestFeedWithoutSession(t *testing.T) {
	feed := NewFeed(nil)
	if err := feed.Notify(context.Background(), policies.Notification{UserID: "u"}); !errors.Is(err, ErrSessionMissing) {
		t.Fatalf("expected ErrSessionMissing, got %v", err)
	}
	if _, err := feed.Recent(context.Background(), "u", 5); !errors.Is(err, ErrSessionMissing) {
		t.Fatalf("expected ErrSessionMissing, got %v", err)
	}
}

func TestNewSessionRejectsBadKeyspace(t *testing.T) {
	if _, err := NewSession(context.Background(), Options{Keyspace: "bad-name;"}, nil); err == nil {
		t.Fatalf("expected keyspace validation error")
	}
}
