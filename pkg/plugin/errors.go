package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialRejected is returned by a credential-aware factory that
	// cannot use the shared credential; the loader then falls back to New.
	ErrCredentialRejected = errors.New("credential rejected")

	// ErrNoFactory is returned when a factory offers no constructor
	ErrNoFactory = errors.New("factory has no constructor")
)

// LoadStage names the resolution step that failed
type LoadStage string

const (
	StageArtifact    LoadStage = "artifact"
	StageMetadata    LoadStage = "metadata"
	StageResolve     LoadStage = "resolve"
	StageInstantiate LoadStage = "instantiate"
)

// LoadError is a plugin resolution failure. The loader renders it as
// {status: "error", message} and never returns it to callers of Run.
type LoadError struct {
	AgentID string
	Stage   LoadStage
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadError(agentID string, stage LoadStage, err error, format string, args ...interface{}) *LoadError {
	return &LoadError{
		AgentID: agentID,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
