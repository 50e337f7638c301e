package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProvider is returned when a runner has neither a provider nor auth profiles
	ErrNoProvider = errors.New("an LLM provider or at least one auth profile is required")

	// ErrNoToolExecutor is returned when a runner has no tool executor
	ErrNoToolExecutor = errors.New("tool executor is required")
)

// ProviderError is a decision service failure annotated with its HTTP status, when known.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RemoteServiceError reports that the decision service stayed unreachable after retries.
// The run summary accumulated up to the failure is returned alongside it.
type RemoteServiceError struct {
	Iteration int
	Attempts  int
	Err       error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("decision service failed at iteration %d after %d attempt(s): %v", e.Iteration, e.Attempts, e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}
