package agent

import (
	"encoding/json"
	"errors"
	"net"
	"path"
	"strings"
)

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Task describes one turn loop run: what to do and where.
type Task struct {
	// Name is the skill or task name shown to the decision service
	Name string `json:"name"`

	// Definition is the full task instructions (SKILL.md body)
	Definition string `json:"definition"`

	// Template is an optional structure reference appended to the first turn
	Template string `json:"template,omitempty"`

	RepoName string `json:"repo_name"`
	RepoPath string `json:"repo_path"`

	// RepoContext is optional pre-collected repository context
	RepoContext string `json:"repo_context,omitempty"`

	// ExpectedOutput tells the model where the skill's output belongs
	ExpectedOutput string `json:"expected_output,omitempty"`

	// SystemPrompt replaces the built-in system prompt when set
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult correlates one tool outcome with the call that requested it
type ToolResult struct {
	ToolCallID string                 `json:"tool_call_id"`
	Content    map[string]interface{} `json:"content"`
	IsError    bool                   `json:"is_error,omitempty"`
}

// EncodedContent returns the JSON text sent back to the decision service.
func (r ToolResult) EncodedContent() string {
	data, err := json.Marshal(r.Content)
	if err != nil {
		return `{"error":"unencodable tool result"}`
	}
	return string(data)
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AuthProfile represents authentication credentials for LLM providers
type AuthProfile struct {
	ID       string `json:"id"`
	Provider string `json:"provider"` // "anthropic", "openai"
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Priority int    `json:"priority"`
}

// AgentMessage is one turn of the conversation.
// Tool turns carry every result of the preceding assistant turn.
type AgentMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// Outcome is how a turn loop run terminated
type Outcome string

const (
	// OutcomeDone means the decision service signalled natural completion
	OutcomeDone Outcome = "done"
	// OutcomeAmbiguousStop means a turn had neither tool calls nor a completion signal
	OutcomeAmbiguousStop Outcome = "ambiguous_stop"
	// OutcomeCapped means the iteration cap was reached first
	OutcomeCapped Outcome = "capped"
	// OutcomeFailed means the decision service could not be reached
	OutcomeFailed Outcome = "failed"
)

// ToolUse records one dispatched tool call
type ToolUse struct {
	Iteration int                    `json:"iteration"`
	Tool      string                 `json:"tool"`
	Input     map[string]interface{} `json:"input"`
	Result    map[string]interface{} `json:"result"`
}

// ExecutionSummary is returned once per run
type ExecutionSummary struct {
	RunID              string     `json:"run_id"`
	Outcome            Outcome    `json:"outcome"`
	Capped             bool       `json:"capped"`
	Iterations         int        `json:"iterations"`
	FilesCreated       *PathSet   `json:"files_created"`
	FilesModified      *PathSet   `json:"files_modified"`
	ToolUses           []ToolUse  `json:"tool_uses"`
	ConversationLength int        `json:"conversation_length"`
	FinalMessage       string     `json:"final_message,omitempty"`
	Usage              TokenUsage `json:"usage"`
}

func newSummary(runID string) ExecutionSummary {
	return ExecutionSummary{
		RunID:         runID,
		FilesCreated:  NewPathSet(),
		FilesModified: NewPathSet(),
		ToolUses:      []ToolUse{},
	}
}

// PathSet is an insertion-ordered set of normalized slash paths
type PathSet struct {
	items []string
	index map[string]struct{}
}

// NewPathSet creates an empty PathSet
func NewPathSet(paths ...string) *PathSet {
	s := &PathSet{index: make(map[string]struct{})}
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts p and reports whether it was new.
func (s *PathSet) Add(p string) bool {
	key := normalizePath(p)
	if key == "" {
		return false
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.items = append(s.items, key)
	return true
}

// Contains reports whether p is in the set
func (s *PathSet) Contains(p string) bool {
	_, ok := s.index[normalizePath(p)]
	return ok
}

// Len returns the number of paths
func (s *PathSet) Len() int {
	return len(s.items)
}

// Paths returns the paths in insertion order
func (s *PathSet) Paths() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

func (s *PathSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Paths())
}

func (s *PathSet) UnmarshalJSON(data []byte) error {
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return err
	}
	*s = *NewPathSet(paths...)
	return nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// IsRetryableError checks if a decision service error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr.StatusCode != 0 {
		code := providerErr.StatusCode
		return code == 408 || code == 429 || code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	// Network errors
	for _, marker := range []string{"econnreset", "etimedout", "connection reset", "connection refused", "eof"} {
		if strings.Contains(errMsg, marker) {
			return true
		}
	}

	// Rate limits and overload
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "overloaded") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504", "529"} {
		if strings.Contains(errMsg, code) {
			return true
		}
	}

	return false
}
