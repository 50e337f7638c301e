package tracing

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext is the correlation data carried through one run or invocation.
// A context holds a single TraceContext value; every With* call stores a copy.
type TraceContext struct {
	TraceID      string `json:"trace_id,omitempty"`
	RunID        string `json:"run_id,omitempty"`
	AgentID      string `json:"agent_id,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
}

type traceContextKey struct{}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// FromContext returns the tracing values carried by ctx
func FromContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}
	tc, _ := ctx.Value(traceContextKey{}).(TraceContext)
	return tc
}

// NewContext stores tc in ctx, keeping fields of the existing value that tc leaves empty
func NewContext(ctx context.Context, tc TraceContext) context.Context {
	current := FromContext(ctx)
	if tc.TraceID != "" {
		current.TraceID = tc.TraceID
	}
	if tc.RunID != "" {
		current.RunID = tc.RunID
	}
	if tc.AgentID != "" {
		current.AgentID = tc.AgentID
	}
	if tc.InvocationID != "" {
		current.InvocationID = tc.InvocationID
	}
	return context.WithValue(ctx, traceContextKey{}, current)
}

// WithTraceID sets the trace ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return NewContext(ctx, TraceContext{TraceID: traceID})
}

// WithRunID sets the turn loop run ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return NewContext(ctx, TraceContext{RunID: runID})
}

// GetTraceID returns the trace ID, or "" when unset
func GetTraceID(ctx context.Context) string {
	return FromContext(ctx).TraceID
}

// GetRunID returns the run ID, or "" when unset
func GetRunID(ctx context.Context) string {
	return FromContext(ctx).RunID
}

// GetAgentID returns the agent identifier, or "" when unset
func GetAgentID(ctx context.Context) string {
	return FromContext(ctx).AgentID
}

// GetInvocationID returns the plugin invocation ID, or "" when unset
func GetInvocationID(ctx context.Context) string {
	return FromContext(ctx).InvocationID
}

// NewRequestContext creates a new context with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// EnsureTrace returns ctx unchanged when it carries a trace ID, otherwise a
// context with a new one. A nil ctx is treated as context.Background().
func EnsureTrace(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return NewRequestContext(ctx)
}

// NewAgentRunContext creates a new context for a turn loop run with a new run ID
func NewAgentRunContext(ctx context.Context, agentID string) context.Context {
	return NewContext(ctx, TraceContext{RunID: NewRunID(), AgentID: agentID})
}
