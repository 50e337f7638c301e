package plugin

import (
	"context"
	"time"
)

// Kind tells how an agent is run
type Kind string

const (
	// KindConversational agents run through the tool-use turn loop
	KindConversational Kind = "conversational"
	// KindPlugin agents are self-contained implementations with an Execute entry point
	KindPlugin Kind = "plugin"
)

// Result status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MetadataFile is the co-located metadata descriptor of a plugin artifact
const MetadataFile = "AGENT.json"

// Agent is the uniform contract every plugin implementation satisfies
type Agent interface {
	// Execute runs one task. The returned mapping carries a status field
	// ("success" or "error") and, on error, a message field.
	Execute(ctx context.Context, taskConfig map[string]any) (map[string]any, error)
}

// AgentFunc adapts a function to the Agent interface
type AgentFunc func(ctx context.Context, taskConfig map[string]any) (map[string]any, error)

// Execute calls f(ctx, taskConfig)
func (f AgentFunc) Execute(ctx context.Context, taskConfig map[string]any) (map[string]any, error) {
	return f(ctx, taskConfig)
}

// AgentDescriptor identifies a task implementation and how to run it
type AgentDescriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Path         string   `json:"path"`
	Kind         Kind     `json:"kind"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// IsPlugin reports whether the descriptor is run through the loader.
// An empty kind is treated as a plugin.
func (d AgentDescriptor) IsPlugin() bool {
	return d.Kind == KindPlugin || d.Kind == ""
}

// Invocation is one Loader.Run call
type Invocation struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	TaskConfig map[string]any `json:"task_config"`
	Result     map[string]any `json:"result"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
}

// Status returns the status field of the invocation result
func (i Invocation) Status() string {
	status, _ := i.Result["status"].(string)
	return status
}
