package toolexecutor

import "context"

// ExecutionContext identifies the turn loop step a tool call belongs to.
// Handlers read it with ExecutionContextFrom.
type ExecutionContext struct {
	RunID     string
	Iteration int
	ToolUseID string
}

type executionContextKey struct{}

// WithExecutionContext returns ctx carrying execCtx; a nil execCtx leaves ctx unchanged
func WithExecutionContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, executionContextKey{}, execCtx)
}

// ExecutionContextFrom returns the execution context of the current tool call, or nil
func ExecutionContextFrom(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	execCtx, _ := ctx.Value(executionContextKey{}).(*ExecutionContext)
	return execCtx
}
