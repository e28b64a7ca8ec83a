package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to grpc health probes.
const ServiceName = "habita.Reservations"

// ReadyFunc reports the first failing dependency, or a nil error when ready.
type ReadyFunc func(ctx context.Context) (string, error)

// HealthServer exposes grpc.health.v1 for orchestrators that probe over gRPC. Serving status
// follows the same readiness checks as /readyz.
type HealthServer struct {
	Addr     string
	Ready    ReadyFunc
	Interval time.Duration
	Logger   *slog.Logger

	server *grpc.Server
	health *health.Server
}

func NewHealthServer(addr string, ready ReadyFunc, logger *slog.Logger) *HealthServer {
	h := &HealthServer{
		Addr:   addr,
		Ready:  ready,
		Logger: logger,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Run serves until ctx is cancelled, then stops gracefully.
func (h *HealthServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", h.Addr)
	if err != nil {
		return err
	}
	go h.watch(ctx)
	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.server.GracefulStop()
	}()
	h.logger().Info("grpc health server starting", "addr", h.Addr)
	if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (h *HealthServer) watch(ctx context.Context) {
	interval := h.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		h.Probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Probe runs the readiness check once and publishes the result.
func (h *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if h.Ready != nil {
		if name, err := h.Ready(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger().Warn("dependency not ready", "check", name, "error", err)
		}
	}
	h.health.SetServingStatus(ServiceName, status)
	h.health.SetServingStatus("", status)
	return status
}

func (h *HealthServer) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
