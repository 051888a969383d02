// Package grpc exposes the standard gRPC health service for the storefront.
package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const ServiceName = "quickmarket.storefront"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports SERVING while the session store answers pings.
type HealthChecker struct {
	health *health.Server
	pinger Pinger
	log    *slog.Logger
}

// NewServer returns a gRPC server with health and reflection registered.
func NewServer(pinger Pinger, log *slog.Logger) (*grpc.Server, *HealthChecker) {
	hc := &HealthChecker{
		health: health.NewServer(),
		pinger: pinger,
		log:    log.With("component", "grpc_health"),
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hc.health)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)
	return grpcServer, hc
}

// Check pings the store once and updates the reported status.
func (h *HealthChecker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.pinger.Ping(ctx); err != nil {
		h.log.WarnContext(ctx, "session store ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Run checks immediately and then every interval until ctx is done.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ticker.C:
			h.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown marks every service NOT_SERVING.
func (h *HealthChecker) Shutdown() {
	h.health.Shutdown()
}
