package grpcx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestHealthServerRefresh(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	failing := true
	hs := NewHealthServer("booking-service", logger, runtime.ReadyCheck{
		Name: "db",
		Check: func(context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		},
	})

	if got := hs.Refresh(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
	resp, err := hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "booking-service"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("unexpected status %v", resp.Status)
	}

	failing = false
	if got := hs.Refresh(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}
}

func TestRequestIDInterceptorSharesHTTPKey(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-42"))
	var seen string
	_, err := UnaryServerRequestIDInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req any) (any, error) {
			seen = httpx.RequestIDFromContext(ctx)
			return nil, nil
		})
	if err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
	if seen != "req-42" {
		t.Fatalf("expected req-42, got %q", seen)
	}
}
