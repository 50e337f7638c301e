package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToPlugin derives the context of one plugin invocation.
// The trace ID is kept (or created), the agent ID replaced and the invocation ID set.
func PropagateToPlugin(ctx context.Context, agentID, invocationID string) context.Context {
	ctx = EnsureTrace(ctx)
	return NewContext(ctx, TraceContext{AgentID: agentID, InvocationID: invocationID})
}

// LoggerFromContext adds the tracing fields carried by ctx to baseLogger
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	if tc == (TraceContext{}) {
		return baseLogger
	}

	lc := baseLogger.With()
	for _, field := range []struct{ key, value string }{
		{"trace_id", tc.TraceID},
		{"run_id", tc.RunID},
		{"agent_id", tc.AgentID},
		{"invocation_id", tc.InvocationID},
	} {
		if field.value != "" {
			lc = lc.Str(field.key, field.value)
		}
	}
	return lc.Logger()
}
