package grpcx

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the same readiness checks as /readyz over the
// standard grpc.health.v1 protocol.
type HealthServer struct {
	srv     *grpc.Server
	health  *health.Server
	checks  []runtime.ReadyCheck
	service string
	every   time.Duration
	logger  *slog.Logger
}

func NewHealthServer(service string, logger *slog.Logger, checks ...runtime.ReadyCheck) *HealthServer {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor(), UnaryServerLogInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{
		srv:     srv,
		health:  hs,
		checks:  checks,
		service: service,
		every:   5 * time.Second,
		logger:  logger,
	}
}

// Refresh runs the checks once and publishes the resulting status for both
// the overall server ("") and the named service.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.RunChecks(ctx, h.checks...); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("readiness checks failing", "failures", strings.Join(failures, "; "))
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
	return status
}

// Serve blocks until ctx is cancelled, refreshing readiness periodically.
func (h *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(h.every)
		defer ticker.Stop()
		h.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.srv.GracefulStop()
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	h.logger.Info("grpc health server starting", "addr", addr)
	return h.srv.Serve(lis)
}
