package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanSetsTraceID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(previous)

	ctx, span := StartSpan(context.Background(), TracerAgent, "agent.run")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	if GetTraceID(ctx) == "" {
		t.Error("Trace ID not set from span context")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Name() != "agent.run" {
		t.Errorf("Expected span agent.run, got %s", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", spans[0].Status().Code)
	}
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "existing")
	ctx, span := StartSpan(ctx, TracerPlugin, "plugin.run")
	defer span.End()

	if GetTraceID(ctx) != "existing" {
		t.Errorf("Expected existing trace ID, got %s", GetTraceID(ctx))
	}
}

func TestSetupRecordsResource(t *testing.T) {
	previous := otel.GetTracerProvider()
	defer otel.SetTracerProvider(previous)

	recorder := tracetest.NewSpanRecorder()
	provider, err := Setup(Config{
		ServiceName:    "orchestrator",
		ServiceVersion: "1.2.3",
		SampleRatio:    1,
		Attributes:     map[string]string{"host.version": "0.1.0"},
		Options:        []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(recorder)},
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, span := StartSpan(context.Background(), TracerPlugin, "plugin.run")
	span.End()

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 ended span, got %d", len(spans))
	}
	want := map[attribute.Key]string{
		"service.name":    "orchestrator",
		"service.version": "1.2.3",
		"host.version":    "0.1.0",
	}
	got := map[attribute.Key]string{}
	for _, kv := range spans[0].Resource().Attributes() {
		got[kv.Key] = kv.Value.AsString()
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("Expected resource %s=%s, got %q", key, value, got[key])
		}
	}
}

func TestSetupZeroSampleRatio(t *testing.T) {
	previous := otel.GetTracerProvider()
	defer otel.SetTracerProvider(previous)

	recorder := tracetest.NewSpanRecorder()
	provider, err := Setup(Config{
		ServiceName: "orchestrator",
		Options:     []sdktrace.TracerProviderOption{sdktrace.WithSpanProcessor(recorder)},
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer provider.Shutdown(context.Background())

	_, span := StartSpan(context.Background(), TracerAgent, "agent.run")
	span.End()

	if span.SpanContext().IsSampled() {
		t.Error("Expected root span to be dropped at ratio 0")
	}
	if len(recorder.Ended()) != 0 {
		t.Errorf("Expected no recorded spans, got %d", len(recorder.Ended()))
	}
}

func TestShutdownNilProvider(t *testing.T) {
	var provider *Provider
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
