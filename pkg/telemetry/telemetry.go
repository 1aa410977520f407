// Functions for working with OpenTelemetry in agentd.

package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/nais/agentdeploy/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otrace "go.opentelemetry.io/otel/trace"
)

const (
	// How long between each time OT sends something to the collector.
	batchTimeout = 5 * time.Second

	instrumentationName = "github.com/nais/agentdeploy"

	AttributeAgentID      = attribute.Key("agent.id")
	AttributeStatus       = attribute.Key("agent.deployment.status")
	AttributeInstanceHash = attribute.Key("agent.instance.hash")
)

// Initialize the OpenTelemetry library.
//
// You MUST call `Shutdown()` on the tracer provider before exiting,
// lest traces are not sent to the collector.
func New(ctx context.Context, serviceName string, collectorEndpointURL string) (*trace.TracerProvider, error) {
	prop := newPropagator()
	otel.SetTextMapPropagator(prop)

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.OSName(runtime.GOOS),
		semconv.ServiceVersion(version.Version()),
	)

	tracerProvider, err := newTraceProvider(ctx, res, collectorEndpointURL)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tracerProvider)

	return tracerProvider, nil
}

// Returns the agentd tracer from the global provider.
// Spans are dropped until New has installed a real provider.
func Tracer() otrace.Tracer {
	return otel.Tracer(instrumentationName)
}

// AgentAttributes describes a deployment on a span.
func AgentAttributes(id, status, instanceHash string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttributeAgentID.String(id),
		AttributeStatus.String(status),
	}
	if len(instanceHash) > 0 {
		attrs = append(attrs, AttributeInstanceHash.String(instanceHash))
	}
	return attrs
}

// End finishes span, recording err if there is one.
func End(span otrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTraceProvider(ctx context.Context, res *resource.Resource, endpointURL string) (*trace.TracerProvider, error) {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpointURL))
	if err != nil {
		return nil, err
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter,
			trace.WithBatchTimeout(batchTimeout)),
		trace.WithResource(res),
	)

	return traceProvider, nil
}
