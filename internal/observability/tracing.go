package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with span helpers for event handling,
// dispatch passes, hook invocations and lifecycle transitions.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "neobot",
//	    Endpoint:    "localhost:4317",
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceDispatch(ctx, channelID, "OnMessage")
//	defer span.End()
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TraceConfig
}

// TraceConfig configures the distributed tracing behavior.
type TraceConfig struct {
	// ServiceName identifies this service in traces
	ServiceName string

	// ServiceVersion identifies the service version
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector endpoint (e.g., "localhost:4317").
	// If empty, tracing is disabled.
	Endpoint string

	// SamplingRate controls what fraction of traces are recorded (0.0 to 1.0).
	// Defaults to 1.0.
	SamplingRate float64

	// EnableInsecure disables TLS for the OTLP connection
	EnableInsecure bool
}

// NewTracer creates a tracer and a shutdown function that must be called on
// exit. Without an endpoint a no-op tracer is returned.
func NewTracer(config TraceConfig) (*Tracer, func(context.Context) error) {
	if config.ServiceName == "" {
		config.ServiceName = "neobot"
	}
	noop := func(context.Context) error { return nil }

	if config.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(config.ServiceName), config: config}, noop
	}

	if config.SamplingRate == 0 {
		config.SamplingRate = 1.0
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
	if config.EnableInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return &Tracer{tracer: otel.Tracer(config.ServiceName), config: config}, noop
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case config.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return NewTracerWithProvider(provider, config), provider.Shutdown
}

// NewTracerWithProvider builds a Tracer on an existing provider.
func NewTracerWithProvider(provider *sdktrace.TracerProvider, config TraceConfig) *Tracer {
	if config.ServiceName == "" {
		config.ServiceName = "neobot"
	}
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(config.ServiceName),
		config:   config,
	}
}

// Start creates a new span. A nil Tracer yields a non-recording span.
func (t *Tracer) Start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and marks the span failed.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceEvent creates a span for the handling of one inbound event.
func (t *Tracer) TraceEvent(ctx context.Context, eventType, channelID string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("event.%s", eventType), trace.SpanKindConsumer,
		attribute.String("event.type", eventType),
		attribute.String("chat.channel_id", channelID),
	)
}

// TraceDispatch creates a span for one dispatch pass over a channel.
func (t *Tracer) TraceDispatch(ctx context.Context, channelID, hook string) (context.Context, trace.Span) {
	return t.Start(ctx, "script.dispatch", trace.SpanKindInternal,
		attribute.String("chat.channel_id", channelID),
		attribute.String("script.hook", hook),
	)
}

// TraceHook creates a span for one hook invocation on one instance.
func (t *Tracer) TraceHook(ctx context.Context, instanceID, origin, hook string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("script.hook.%s", hook), trace.SpanKindInternal,
		attribute.String("script.instance_id", instanceID),
		attribute.String("script.origin", origin),
		attribute.String("script.hook", hook),
	)
}

// TraceLifecycle creates a span for a lifecycle transition.
func (t *Tracer) TraceLifecycle(ctx context.Context, action, origin string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("script.%s", action), trace.SpanKindInternal,
		attribute.String("script.action", action),
		attribute.String("script.origin", origin),
	)
}

// TraceTransport creates a client span for an outbound platform call.
func (t *Tracer) TraceTransport(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("transport.%s", op), trace.SpanKindClient,
		attribute.String("transport.op", op),
	)
}

// GetTraceID returns the trace ID from the context, or "" when no trace is
// active.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
