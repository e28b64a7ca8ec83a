package grpcserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestProbeFollowsReadiness(t *testing.T) {
	ready := true
	h := NewHealthServer("127.0.0.1:0", func(context.Context) (string, error) {
		if ready {
			return "", nil
		}
		return "store", errors.New("down")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	if got := h.Probe(ctx); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health check: %v %v", resp, err)
	}

	ready = false
	if got := h.Probe(ctx); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
}
