package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "beacon/evaluator"

// InitTracing installs a tracer provider tagged with the given service
// identity. A compiled-in exporter is deliberately not wired here: the
// concrete transport for spans (OTLP, stdout, or otherwise) is a deployment
// concern left to the binary embedding this package, following the
// warn-and-continue posture the original service used when its collector
// endpoint was unreachable. Without an exporter attached, spans are still
// created and propagated but never leave the process.
func InitTracing(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	return func(shutdownCtx context.Context) error {
		return tracerProvider.Shutdown(shutdownCtx)
	}, nil
}

// Tracer returns the package-level tracer used for run_cycle and per-rule
// spans.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartCycleSpan starts the span wrapping a single run_cycle invocation.
func StartCycleSpan(ctx context.Context, cycleID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "run_cycle", trace.WithAttributes(
		attribute.String("beacon.cycle_id", cycleID),
	))
}

// StartRuleSpan starts the child span wrapping evaluation of a single rule
// within a cycle.
func StartRuleSpan(ctx context.Context, ruleName string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "evaluate_rule", trace.WithAttributes(
		attribute.String("beacon.rule", ruleName),
	))
}
