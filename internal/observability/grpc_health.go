package observability

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer publishes per-service serving status over the standard gRPC
// health protocol, for load balancers that probe gRPC instead of HTTP.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	checks map[string]HealthCheckFunc
	logger zerolog.Logger
}

// NewHealthServer registers one gRPC health service per check name. The
// overall ("") status is SERVING only while every check passes.
func NewHealthServer(checks map[string]HealthCheckFunc, logger zerolog.Logger) *HealthServer {
	h := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		checks: checks,
		logger: logger,
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.Refresh(context.Background())
	return h
}

// Refresh re-runs the checks and updates the published statuses
func (h *HealthServer) Refresh(ctx context.Context) {
	dependencies, allHealthy := RunChecks(ctx, h.checks)
	for name, dep := range dependencies {
		h.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	h.health.SetServingStatus("", servingStatus(allHealthy))
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Serve accepts gRPC connections on lis and refreshes statuses every
// interval until ctx is done
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	h.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return h.server.Serve(lis)
}

// Shutdown flips every service to NOT_SERVING and stops the server
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
