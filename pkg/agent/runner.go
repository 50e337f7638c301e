package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/orchestrator/internal/observability"
	"github.com/harun/orchestrator/internal/tracing"
	"github.com/harun/orchestrator/pkg/coretools"
	"github.com/harun/orchestrator/pkg/sandbox"
	"github.com/harun/orchestrator/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Defaults applied by NewRunner
const (
	DefaultModel          = "claude-sonnet-4-20250514"
	DefaultMaxTokens      = 8000
	DefaultMaxIterations  = 25
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second
)

// Runner drives the bounded tool-use conversation with the decision service
type Runner struct {
	providers    []LLMProvider
	toolExecutor *toolexecutor.ToolExecutor
	logger       zerolog.Logger

	model          string
	maxTokens      int
	temperature    float64
	maxIterations  int
	maxRetries     int
	retryBaseDelay time.Duration
	callTimeout    time.Duration
}

// Config holds runner configuration
type Config struct {
	// Provider is used when set; otherwise one provider per auth profile is
	// created through ProviderFactory, tried in priority order.
	Provider        LLMProvider
	AuthProfiles    []AuthProfile
	ProviderFactory ProviderCreator

	// ToolExecutor dispatches tool calls. When nil, the core repository tools
	// are registered against SandboxRoot.
	ToolExecutor   *toolexecutor.ToolExecutor
	SandboxRoot    *sandbox.Root
	CommandTimeout time.Duration

	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int

	// MaxRetries is the number of attempts per model turn
	MaxRetries     int
	RetryBaseDelay time.Duration

	// CallTimeout bounds a single model call; zero means no limit
	CallTimeout time.Duration

	Logger zerolog.Logger
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("max iterations cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}
	if cfg.CallTimeout < 0 {
		return nil, fmt.Errorf("call timeout cannot be negative")
	}

	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	executor := cfg.ToolExecutor
	if executor == nil {
		executor, err = buildToolExecutor(cfg)
		if err != nil {
			return nil, err
		}
	}

	r := &Runner{
		providers:      providers,
		toolExecutor:   executor,
		logger:         cfg.Logger.With().Str("component", "agent").Logger(),
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		maxIterations:  cfg.MaxIterations,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		callTimeout:    cfg.CallTimeout,
	}
	if r.model == "" {
		r.model = DefaultModel
	}
	if r.maxTokens == 0 {
		r.maxTokens = DefaultMaxTokens
	}
	if r.maxIterations == 0 {
		r.maxIterations = DefaultMaxIterations
	}
	if r.maxRetries == 0 {
		r.maxRetries = DefaultMaxRetries
	}
	if r.retryBaseDelay == 0 {
		r.retryBaseDelay = DefaultRetryBaseDelay
	}

	return r, nil
}

func buildProviders(cfg Config) ([]LLMProvider, error) {
	if cfg.Provider != nil {
		return []LLMProvider{cfg.Provider}, nil
	}
	if len(cfg.AuthProfiles) == 0 {
		return nil, ErrNoProvider
	}

	factory := cfg.ProviderFactory
	if factory == nil {
		factory = &ProviderFactory{}
	}

	profiles := make([]AuthProfile, len(cfg.AuthProfiles))
	copy(profiles, cfg.AuthProfiles)
	sortProfilesByPriority(profiles)

	providers := make([]LLMProvider, 0, len(profiles))
	for _, profile := range profiles {
		provider, err := factory.NewProvider(profile)
		if err != nil {
			return nil, fmt.Errorf("auth profile %s: %w", profile.ID, err)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func buildToolExecutor(cfg Config) (*toolexecutor.ToolExecutor, error) {
	if cfg.SandboxRoot == nil {
		return nil, ErrNoToolExecutor
	}

	box, err := sandbox.NewHostSandbox(cfg.SandboxRoot, sandbox.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	executor := toolexecutor.New()
	if err := coretools.Register(executor, coretools.Options{
		Sandbox:        box,
		CommandTimeout: cfg.CommandTimeout,
	}); err != nil {
		return nil, err
	}
	return executor, nil
}

// ToolExecutor returns the executor tool calls are dispatched through
func (r *Runner) ToolExecutor() *toolexecutor.ToolExecutor {
	return r.toolExecutor
}

// runState is the per-run mutable state; the Runner itself holds none.
type runState struct {
	runID         string
	conversation  []AgentMessage
	summary       ExecutionSummary
	providerIndex int
}

// Run executes one task until completion, an ambiguous stop, or the iteration cap.
// A decision service failure returns the partial summary with a *RemoteServiceError.
func (r *Runner) Run(ctx context.Context, task Task) (ExecutionSummary, error) {
	ctx = tracing.NewAgentRunContext(tracing.EnsureTrace(ctx), task.Name)
	ctx, span := tracing.StartSpan(
		ctx,
		tracing.TracerAgent,
		"agent.run",
		attribute.String("task", task.Name),
		attribute.Int("max_iterations", r.maxIterations),
	)
	defer span.End()

	state := &runState{
		runID: tracing.GetRunID(ctx),
	}
	state.summary = newSummary(state.runID)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	// INIT
	systemPrompt := BuildSystemPrompt(task)
	state.conversation = append(state.conversation, AgentMessage{
		Role:    RoleUser,
		Content: BuildInitialMessage(task),
	})
	tools := r.toolSpecs()

	logger.Info().
		Str("task", task.Name).
		Str("repo", task.RepoPath).
		Int("tools", len(tools)).
		Msg("Agent run started")

	err := r.loop(ctx, state, systemPrompt, tools, logger)

	state.summary.ConversationLength = len(state.conversation)
	observability.RecordAgentRun(string(state.summary.Outcome), state.summary.Iterations)
	span.SetAttributes(
		attribute.String("outcome", string(state.summary.Outcome)),
		attribute.Int("iterations", state.summary.Iterations),
	)

	if err != nil {
		tracing.RecordError(span, err)
		logger.Error().
			Err(err).
			Int("iterations", state.summary.Iterations).
			Msg("Agent run failed")
		return state.summary, err
	}

	logger.Info().
		Str("outcome", string(state.summary.Outcome)).
		Int("iterations", state.summary.Iterations).
		Int("files_created", state.summary.FilesCreated.Len()).
		Int("files_modified", state.summary.FilesModified.Len()).
		Msg("Agent run finished")

	return state.summary, nil
}

func (r *Runner) loop(ctx context.Context, state *runState, systemPrompt string, tools []ToolSpec, logger zerolog.Logger) error {
	summary := &state.summary

	for summary.Iterations < r.maxIterations {
		if err := ctx.Err(); err != nil {
			summary.Outcome = OutcomeFailed
			return err
		}

		// MODEL_TURN
		summary.Iterations++
		iteration := summary.Iterations

		response, err := r.modelTurn(ctx, state, LLMRequest{
			Model:        r.model,
			Messages:     state.conversation,
			Tools:        tools,
			Temperature:  r.temperature,
			MaxTokens:    r.maxTokens,
			SystemPrompt: systemPrompt,
		}, iteration)
		if err != nil {
			summary.Outcome = OutcomeFailed
			return err
		}

		if response.Usage != nil {
			summary.Usage.InputTokens += response.Usage.InputTokens
			summary.Usage.OutputTokens += response.Usage.OutputTokens
		}

		assistant := AgentMessage{
			Role:      RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		}

		if response.StopReason == StopEndTurn {
			state.conversation = append(state.conversation, assistant)
			summary.Outcome = OutcomeDone
			summary.FinalMessage = response.Content
			return nil
		}

		if len(response.ToolCalls) == 0 {
			state.conversation = append(state.conversation, assistant)
			summary.Outcome = OutcomeAmbiguousStop
			summary.FinalMessage = response.Content
			logger.Warn().
				Int("iteration", iteration).
				Str("stop_reason", string(response.StopReason)).
				Msg("Model turn ended without tool calls or completion signal")
			return nil
		}

		// TOOL_DISPATCH
		state.conversation = append(state.conversation, assistant)
		results := r.dispatch(ctx, state, iteration, response.ToolCalls, logger)
		state.conversation = append(state.conversation, AgentMessage{
			Role:        RoleTool,
			ToolResults: results,
		})
	}

	// CAPPED
	summary.Outcome = OutcomeCapped
	summary.Capped = true
	logger.Warn().
		Int("max_iterations", r.maxIterations).
		Msg("Agent run reached iteration cap")
	return nil
}

// modelTurn calls the current provider with retry, failing over to the next
// provider when retries are exhausted on a retryable error.
func (r *Runner) modelTurn(ctx context.Context, state *runState, request LLMRequest, iteration int) (*LLMResponse, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		tracing.TracerAgent,
		"agent.model_turn",
		attribute.Int("iteration", iteration),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	var lastErr error
	attempts := 0

	for i := state.providerIndex; i < len(r.providers); i++ {
		provider := r.providers[i]
		span.SetAttributes(attribute.String("provider", provider.Provider()))

		response, n, err := r.callLLMWithRetry(ctx, provider, request, logger)
		attempts += n
		if err == nil {
			state.providerIndex = i
			return response, nil
		}

		lastErr = err
		if ctx.Err() != nil || !IsRetryableError(err) {
			break
		}
		if i+1 < len(r.providers) {
			logger.Warn().
				Str("provider", provider.Provider()).
				Err(err).
				Msg("Provider exhausted retries, failing over")
		}
	}

	remoteErr := &RemoteServiceError{Iteration: iteration, Attempts: attempts, Err: lastErr}
	tracing.RecordError(span, remoteErr)
	return nil, remoteErr
}

// callLLMWithRetry calls LLM with exponential backoff retry
func (r *Runner) callLLMWithRetry(ctx context.Context, provider LLMProvider, request LLMRequest, logger zerolog.Logger) (*LLMResponse, int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		attempts++
		response, err := r.callLLM(ctx, provider, request)
		if err == nil {
			return response, attempts, nil
		}

		lastErr = err

		// Don't retry on permanent errors or when the run itself is cancelled
		if ctx.Err() != nil || !IsRetryableError(err) {
			return nil, attempts, err
		}

		// Last attempt - don't wait
		if attempt == r.maxRetries-1 {
			break
		}

		delay := r.retryBaseDelay * time.Duration(1<<attempt)
		observability.RecordModelRetry(provider.Provider())
		logger.Info().
			Str("provider", provider.Provider()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after error")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempts, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, attempts, fmt.Errorf("max retries (%d) exceeded: %w", r.maxRetries, lastErr)
}

// callLLM makes a single LLM API call
func (r *Runner) callLLM(ctx context.Context, provider LLMProvider, request LLMRequest) (*LLMResponse, error) {
	callCtx := ctx
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	start := time.Now()
	response, err := provider.Call(callCtx, request)
	if err == nil && response == nil {
		err = errors.New("provider returned no response")
	}
	observability.RecordModelCall(provider.Provider(), time.Since(start), err == nil)

	return response, err
}

// dispatch executes every tool call of one turn in emission order.
func (r *Runner) dispatch(ctx context.Context, state *runState, iteration int, calls []ToolCall, logger zerolog.Logger) []ToolResult {
	results := make([]ToolResult, 0, len(calls))

	for _, call := range calls {
		input := call.Parameters
		if input == nil {
			input = map[string]interface{}{}
		}

		result := r.toolExecutor.Execute(ctx, call.Name, input, &toolexecutor.ExecutionContext{
			RunID:     state.runID,
			Iteration: iteration,
			ToolUseID: call.ID,
		})
		content := result.Content()

		state.summary.ToolUses = append(state.summary.ToolUses, ToolUse{
			Iteration: iteration,
			Tool:      call.Name,
			Input:     input,
			Result:    content,
		})
		r.trackFiles(&state.summary, call.Name, result)

		status := "success"
		if !result.OK() {
			status = string(result.Err.Kind)
			logger.Debug().
				Str("tool", call.Name).
				Str("kind", status).
				Str("error", result.Err.Message).
				Msg("Tool call failed")
		}
		observability.RecordToolAudit(ctx, call.Name, status, map[string]interface{}{
			"iteration":   iteration,
			"tool_use_id": call.ID,
		})

		results = append(results, ToolResult{
			ToolCallID: call.ID,
			Content:    content,
			IsError:    !result.OK(),
		})
	}

	return results
}

// trackFiles records successful writes in the summary's file sets.
func (r *Runner) trackFiles(summary *ExecutionSummary, toolName string, result toolexecutor.Result) {
	if !result.OK() {
		return
	}
	def := r.toolExecutor.GetTool(toolName)
	if def == nil || def.Name != "write_file" {
		return
	}

	path, _ := result.Output["path"].(string)
	if path == "" {
		return
	}
	summary.FilesModified.Add(path)
	if created, _ := result.Output["created"].(bool); created {
		summary.FilesCreated.Add(path)
	}
}

func (r *Runner) toolSpecs() []ToolSpec {
	catalog := r.toolExecutor.Catalog()
	specs := make([]ToolSpec, 0, len(catalog))
	for _, def := range catalog {
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema(),
		})
	}
	return specs
}
