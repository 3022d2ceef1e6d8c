package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context in the form it is stored next to
// an outbox row, so publishing can continue the trace of the write.
type TraceContext struct {
	Parent string
	State  string
}

// CaptureTraceContext returns the active trace context of ctx. Both fields
// are empty when there is no recording span or tracing is disabled.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

// Attach returns ctx continued from tc.
func (tc TraceContext) Attach(ctx context.Context) context.Context {
	if tc.Parent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Parent}
	if tc.State != "" {
		carrier["tracestate"] = tc.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
