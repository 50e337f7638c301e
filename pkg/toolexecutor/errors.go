package toolexecutor

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/orchestrator/pkg/sandbox"
)

// ErrorKind classifies a failed tool execution
type ErrorKind string

const (
	// KindValidation covers unknown tools and malformed inputs
	KindValidation ErrorKind = "validation"
	// KindSandboxViolation covers paths resolving outside the sandbox root
	KindSandboxViolation ErrorKind = "sandbox_violation"
	// KindIO covers missing, unreadable or unwritable files and failed processes
	KindIO ErrorKind = "io"
	// KindTimeout covers commands and searches exceeding their deadline
	KindTimeout ErrorKind = "timeout"
)

// ToolError is the failure half of a tool Result.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ToolError) Error() string {
	return e.Message
}

// NewError creates a ToolError of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Classify maps an arbitrary handler error onto a ToolError.
func Classify(err error) *ToolError {
	if err == nil {
		return nil
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}

	switch {
	case errors.Is(err, sandbox.ErrOutsideRoot):
		return &ToolError{Kind: KindSandboxViolation, Message: err.Error()}
	case errors.Is(err, sandbox.ErrExecutionTimeout), errors.Is(err, context.DeadlineExceeded):
		return &ToolError{Kind: KindTimeout, Message: err.Error()}
	default:
		return &ToolError{Kind: KindIO, Message: err.Error()}
	}
}
