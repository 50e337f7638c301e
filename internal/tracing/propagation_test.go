package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToPlugin(t *testing.T) {
	parentCtx := context.Background()
	parentCtx = WithTraceID(parentCtx, "trace-123")
	parentCtx = WithRunID(parentCtx, "run-parent")
	parentCtx = NewContext(parentCtx, TraceContext{AgentID: "orchestrator"})

	childCtx := PropagateToPlugin(parentCtx, "synth-notes-generator", "inv-9")

	if GetTraceID(childCtx) != "trace-123" {
		t.Error("Trace ID not propagated")
	}
	if GetAgentID(childCtx) != "synth-notes-generator" {
		t.Error("Agent ID not updated")
	}
	if GetInvocationID(childCtx) != "inv-9" {
		t.Error("Invocation ID not set")
	}
	if GetRunID(childCtx) != "run-parent" {
		t.Error("Run ID should be inherited")
	}
}

func TestPropagateToPluginNoTraceID(t *testing.T) {
	childCtx := PropagateToPlugin(context.Background(), "notes", "inv-1")

	if GetTraceID(childCtx) == "" {
		t.Error("Trace ID not generated when missing")
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-abc")
	ctx = WithRunID(ctx, "run-abc")
	ctx = NewContext(ctx, TraceContext{InvocationID: "inv-abc"})

	ctxLog := LoggerFromContext(ctx, logger)
	ctxLog.Info().Msg("test")

	output := buf.String()
	for _, want := range []string{`"trace_id":"trace-abc"`, `"run_id":"run-abc"`, `"invocation_id":"inv-abc"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in log output, got %s", want, output)
		}
	}
	if strings.Contains(output, "agent_id") {
		t.Errorf("Unexpected agent_id in log output: %s", output)
	}
}

func TestLoggerFromEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctxLog := LoggerFromContext(context.Background(), logger)
	ctxLog.Info().Msg("plain")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("Unexpected tracing fields in %s", buf.String())
	}
}
