// Package settings collects the booking service configuration from the
// environment.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/calendar"
)

type Config struct {
	Service        string
	Port           string
	GRPCHealthPort string // empty disables the gRPC health server

	DatabaseURL    string
	DBMaxConns     int
	MigrateOnStart bool

	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int
	RateLimitFailOpen  bool
	PolicyCacheTTL     time.Duration

	KafkaBrokers       string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	OutboxRetention    time.Duration

	JWTSecret string

	CalendarTimeout      time.Duration
	CalendarDegradedMode bool
	Google               calendar.GoogleConfig

	SMTPHost       string
	SMTPPort       string
	SMTPFrom       string
	WebhookTimeout time.Duration

	CORSAllowedOrigins []string
}

// Load reads every key and reports all problems at once.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		Service:       config.String("SERVICE_NAME", "booking-service"),
		RedisAddr:     config.String("REDIS_ADDR", ""),
		RedisPassword: config.String("REDIS_PASSWORD", ""),
		KafkaBrokers:  config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:  config.String("KAFKA_GROUP_ID", "booking-service"),
		Google: calendar.GoogleConfig{
			ClientID:     config.String("GOOGLE_CLIENT_ID", ""),
			ClientSecret: config.String("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  config.String("GOOGLE_REDIRECT_URL", ""),
		},
		SMTPHost:           config.String("SMTP_HOST", ""),
		SMTPPort:           config.String("SMTP_PORT", "1025"),
		SMTPFrom:           config.String("SMTP_FROM", ""),
		CORSAllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
	}

	var err error
	cfg.Port, err = config.Port("PORT", "8083")
	collect(err)
	if config.String("GRPC_HEALTH_PORT", "9083") != "off" {
		cfg.GRPCHealthPort, err = config.Port("GRPC_HEALTH_PORT", "9083")
		collect(err)
	}
	cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL")
	collect(err)
	cfg.JWTSecret, err = config.RequiredString("JWT_HMAC_SECRET")
	collect(err)
	cfg.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10)
	collect(err)
	cfg.MigrateOnStart, err = config.Bool("MIGRATE_ON_START", false)
	collect(err)
	cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120)
	collect(err)
	cfg.RateLimitFailOpen, err = config.Bool("RATE_LIMIT_FAIL_OPEN", false)
	collect(err)
	cfg.PolicyCacheTTL, err = config.Duration("POLICY_CACHE_TTL", 30*time.Second)
	collect(err)
	cfg.OutboxPollInterval, err = config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	collect(err)
	cfg.OutboxRetention, err = config.Duration("OUTBOX_RETENTION", 7*24*time.Hour)
	collect(err)
	cfg.CalendarTimeout, err = config.Duration("CALENDAR_TIMEOUT", 3*time.Second)
	collect(err)
	cfg.CalendarDegradedMode, err = config.Bool("CALENDAR_DEGRADED_MODE", false)
	collect(err)
	cfg.WebhookTimeout, err = config.Duration("WEBHOOK_TIMEOUT", 5*time.Second)
	collect(err)

	collect(cfg.validate())
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_HMAC_SECRET must be at least 32 bytes"))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be positive (got %d)", c.DBMaxConns))
	}
	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive (got %d)", c.RateLimitPerMinute))
	}
	for name, d := range map[string]time.Duration{
		"POLICY_CACHE_TTL":     c.PolicyCacheTTL,
		"OUTBOX_POLL_INTERVAL": c.OutboxPollInterval,
		"CALENDAR_TIMEOUT":     c.CalendarTimeout,
		"WEBHOOK_TIMEOUT":      c.WebhookTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	g := c.Google
	if (g.ClientID != "" || g.ClientSecret != "" || g.RedirectURL != "") && !g.Enabled() {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set together"))
	}
	return errors.Join(errs...)
}
