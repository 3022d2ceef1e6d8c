package otelx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string // host:port, e.g. jaeger:4317
	SampleRatio  float64
}

// ConfigFromEnv reads the OTEL_* variables. A malformed value is an error
// rather than a silent fallback so a typo does not turn tracing off.
func ConfigFromEnv(serviceName string) (Config, error) {
	cfg := Config{
		ServiceName:  serviceName,
		Environment:  config.String("DEPLOYMENT_ENV", "local"),
		OTLPEndpoint: config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
		SampleRatio:  1.0,
	}
	var errs []error
	var err error
	if cfg.Enabled, err = config.Bool("OTEL_ENABLED", true); err != nil {
		errs = append(errs, err)
	}
	if v := config.String("OTEL_SAMPLING_RATIO", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			errs = append(errs, fmt.Errorf("OTEL_SAMPLING_RATIO must be a number in [0,1] (got %q)", v))
		} else {
			cfg.SampleRatio = f
		}
	}
	return cfg, errors.Join(errs...)
}

// Setup installs the W3C propagators and, when enabled, an OTLP/gRPC
// batching tracer provider. The returned func flushes it on shutdown.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	if cfg.SampleRatio >= 1 {
		sampler = sdktrace.AlwaysSample()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
