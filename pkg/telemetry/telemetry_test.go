package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nais/agentdeploy/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestAgentAttributes(t *testing.T) {
	t.Run("without instance", func(t *testing.T) {
		attrs := telemetry.AgentAttributes("agent-1", "PENDING_FUND", "")
		assert.Equal(t, []attribute.KeyValue{
			attribute.String("agent.id", "agent-1"),
			attribute.String("agent.deployment.status", "PENDING_FUND"),
		}, attrs)
	})

	t.Run("with instance", func(t *testing.T) {
		attrs := telemetry.AgentAttributes("agent-1", "PENDING_SWAP", "instance-1")
		assert.Len(t, attrs, 3)
		assert.Equal(t, "instance-1", attrs[2].Value.AsString())
	})
}

func TestEnd(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, ok := tracer.Start(context.Background(), "ok")
	telemetry.End(ok, nil)

	_, failed := tracer.Start(context.Background(), "failed")
	telemetry.End(failed, errors.New("boom"))

	spans := recorder.Ended()
	assert.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestTracerWithoutProvider(t *testing.T) {
	assert.NotPanics(t, func() {
		_, span := telemetry.Tracer().Start(context.Background(), "noop")
		span.End()
	})
}
