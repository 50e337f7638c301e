package sandbox

import "errors"

var (
	// ErrEmptyRoot is returned when no sandbox root directory is given
	ErrEmptyRoot = errors.New("sandbox root is required")

	// ErrRootNotDirectory is returned when the sandbox root is not a directory
	ErrRootNotDirectory = errors.New("sandbox root is not a directory")

	// ErrOutsideRoot is returned when a path resolves outside the sandbox root
	ErrOutsideRoot = errors.New("path is outside sandbox root")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrInvalidMaxOutput is returned when the output cap is negative
	ErrInvalidMaxOutput = errors.New("invalid max output (must be >= 0)")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrEmptyCommand is returned when no command is given
	ErrEmptyCommand = errors.New("command is required")
)
