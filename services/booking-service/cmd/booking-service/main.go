package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/dispatch"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/settings"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := settings.Load()
	if err != nil {
		runtime.NewLogger("booking-service").Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		logger.Error("invalid tracing configuration", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:        int32(cfg.DBMaxConns),
		AppName:         cfg.Service,
		ConnectAttempts: 5,
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository()
	store := storage.New(pool, outboxRepo)
	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx); err != nil {
			logger.Error("schema migration failed", "err", err)
			os.Exit(1)
		}
		logger.Info("schema migrated")
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; booking events stay in the outbox and notifications are off")
	}

	// Redis shares the rate limit and the policy cache across replicas.
	var policies policy.Store = store
	var cache handlers.PolicyCache
	var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		cached := policy.NewCachedStore(store, rdb, cfg.PolicyCacheTTL, logger)
		policies, cache = cached, cached
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "slotbook:ratelimit")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_ADDR not set; rate limits and policy cache are per instance")
	}

	var oracle calendar.Oracle = calendar.None{}
	var linker handlers.Linker
	if cfg.Google.Enabled() {
		google := calendar.NewGoogleOracle(cfg.Google, store, logger)
		oracle, linker = google, google
	}
	oracle = calendar.WithTimeout(oracle, cfg.CalendarTimeout)

	engine := scheduling.NewEngine(
		policies,
		availability.NewResolver(store),
		busy.NewAggregator(store, oracle),
		logger,
		scheduling.Config{DegradedMode: cfg.CalendarDegradedMode},
	)
	bookings := booking.NewService(engine, policies, store, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollInterval,
		BatchSize: 50,
		Retention: cfg.OutboxRetention,
	})
	go publisher.Run(ctx)

	var mailer dispatch.Mailer = dispatch.NoopMailer{}
	if cfg.SMTPHost != "" {
		mailer = dispatch.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	dispatcher := dispatch.NewDispatcher(store, store, dispatch.NewWebhookSender(cfg.WebhookTimeout), mailer, logger)
	notifications := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topics:  events.Topics,
	}, dispatcher.Handle)
	go notifications.Run(ctx)

	if cfg.GRPCHealthPort != "" {
		health := grpcx.NewHealthServer(cfg.Service, logger, checks...)
		go func() {
			if err := health.Serve(ctx, ":"+cfg.GRPCHealthPort); err != nil {
				logger.Error("grpc health server error", "err", err)
			}
		}()
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Error("auth setup failed", "err", err)
		os.Exit(1)
	}
	validate := handlers.NewValidator()
	routes := handlers.Routes{
		Public: handlers.NewPublicHandler(engine, bookings, validate, logger),
		Host:   handlers.NewHostHandler(store, bookings, cache, validate, logger),
		PublicMiddleware: []httpx.Middleware{
			httpx.RateLimit(limiter, logger, cfg.RateLimitFailOpen),
		},
		HostMiddleware: []httpx.Middleware{auth.RequireHost(verifier)},
	}
	if linker != nil {
		routes.Calendar = handlers.NewCalendarHandler(linker, verifier, logger)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	routes.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
