package settings

import (
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/slotbook")
	t.Setenv("JWT_HMAC_SECRET", secret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8083" || cfg.GRPCHealthPort != "9083" {
		t.Fatalf("unexpected ports %q %q", cfg.Port, cfg.GRPCHealthPort)
	}
	if cfg.CalendarTimeout != 3*time.Second || cfg.CalendarDegradedMode {
		t.Fatalf("unexpected calendar settings: %v %v", cfg.CalendarTimeout, cfg.CalendarDegradedMode)
	}
	if cfg.RateLimitPerMinute != 120 || cfg.PolicyCacheTTL != 30*time.Second {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.Google.Enabled() {
		t.Fatalf("google calendar should be disabled by default")
	}
}

func TestLoadGRPCHealthOff(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/slotbook")
	t.Setenv("JWT_HMAC_SECRET", secret)
	t.Setenv("GRPC_HEALTH_PORT", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GRPCHealthPort != "" {
		t.Fatalf("expected gRPC health disabled, got %q", cfg.GRPCHealthPort)
	}
}

func TestLoadReportsEveryProblem(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_HMAC_SECRET", "short")
	t.Setenv("PORT", "99999")
	t.Setenv("CALENDAR_TIMEOUT", "soon")
	t.Setenv("GOOGLE_CLIENT_ID", "client")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected an error")
	}
	msg := err.Error()
	for _, want := range []string{"DATABASE_URL", "JWT_HMAC_SECRET must be at least", "PORT", "CALENDAR_TIMEOUT", "GOOGLE_CLIENT_ID"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}
