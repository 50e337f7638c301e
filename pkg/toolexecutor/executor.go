package toolexecutor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/orchestrator/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Aliases     []string        `json:"-"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)

// Result is the outcome of one tool execution: exactly one of Output and Err is set.
type Result struct {
	Output   map[string]interface{} `json:"output,omitempty"`
	Err      *ToolError             `json:"error,omitempty"`
	Duration time.Duration          `json:"-"`
}

// OK reports whether the execution succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Content returns the mapping handed back to the decision service.
func (r Result) Content() map[string]interface{} {
	if r.Err != nil {
		return map[string]interface{}{"error": r.Err.Message}
	}
	if r.Output == nil {
		return map[string]interface{}{}
	}
	return r.Output
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	aliases map[string]string
	order   []string
	mu      sync.RWMutex
}

// New creates a new ToolExecutor
func New() *ToolExecutor {
	observability.EnsureRegistered()

	te := &ToolExecutor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
		aliases: make(map[string]string),
	}

	log.Debug().Msg("Tool executor initialized")

	return te
}

// RegisterTool registers a new tool
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := te.validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := te.generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	for _, alias := range def.Aliases {
		if _, exists := te.tools[alias]; exists {
			return fmt.Errorf("alias %s conflicts with a registered tool", alias)
		}
		if owner, exists := te.aliases[alias]; exists {
			return fmt.Errorf("alias %s already used by %s", alias, owner)
		}
	}

	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema
	te.order = append(te.order, def.Name)
	for _, alias := range def.Aliases {
		te.aliases[alias] = def.Name
	}

	log.Debug().Str("tool", def.Name).Strs("aliases", def.Aliases).Msg("Tool registered")

	return nil
}

// GetTool returns a tool definition by name or alias
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.lookup(name)
}

// ListTools returns all registered tool names in registration order
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	names := make([]string, len(te.order))
	copy(names, te.order)
	return names
}

// Catalog returns the registered definitions in registration order.
func (te *ToolExecutor) Catalog() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	catalog := make([]ToolDefinition, 0, len(te.order))
	for _, name := range te.order {
		catalog = append(catalog, *te.tools[name])
	}
	return catalog
}

// Execute executes a tool with the given parameters
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) (result Result) {
	startTime := time.Now()
	logger := log.With().Str("tool", toolName).Logger()
	if execCtx != nil {
		logger = logger.With().Str("run_id", execCtx.RunID).Int("iteration", execCtx.Iteration).Logger()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().Interface("panic", recovered).Msg("Tool handler panicked")
			result = Result{Err: NewError(KindIO, "tool %s failed: %v", toolName, recovered)}
		}
		result.Duration = time.Since(startTime)
		status := "success"
		if result.Err != nil {
			status = string(result.Err.Kind)
		}
		observability.RecordToolExecution(toolName, result.Duration, status)
	}()

	te.mu.RLock()
	tool := te.lookup(toolName)
	var schema *gojsonschema.Schema
	if tool != nil {
		schema = te.schemas[tool.Name]
	}
	te.mu.RUnlock()

	if tool == nil {
		logger.Warn().Msg("Unknown tool requested")
		return Result{Err: NewError(KindValidation, "Unknown tool: %s", toolName)}
	}

	params = applyDefaults(tool, params)

	if err := te.validateParameters(schema, params); err != nil {
		logger.Warn().Err(err).Msg("Parameter validation failed")
		return Result{Err: NewError(KindValidation, "parameter validation failed: %v", err)}
	}

	logger.Debug().Msg("Executing tool")

	output, err := tool.Handler(WithExecutionContext(ctx, execCtx), params)
	if err != nil {
		toolErr := Classify(err)
		logger.Warn().
			Str("kind", string(toolErr.Kind)).
			Dur("duration", time.Since(startTime)).
			Err(err).
			Msg("Tool execution failed")
		return Result{Err: toolErr}
	}

	logger.Debug().
		Dur("duration", time.Since(startTime)).
		Msg("Tool execution completed")

	return Result{Output: output}
}

func (te *ToolExecutor) lookup(name string) *ToolDefinition {
	if tool, ok := te.tools[name]; ok {
		return tool
	}
	if canonical, ok := te.aliases[name]; ok {
		return te.tools[canonical]
	}
	return nil
}

// applyDefaults returns a copy of params with declared defaults filled in.
func applyDefaults(tool *ToolDefinition, params map[string]interface{}) map[string]interface{} {
	filled := make(map[string]interface{}, len(params)+len(tool.Parameters))
	for key, value := range params {
		filled[key] = value
	}
	for _, param := range tool.Parameters {
		if _, ok := filled[param.Name]; !ok && param.Default != nil {
			filled[param.Name] = param.Default
		}
	}
	return filled
}

// validateToolDefinition validates a tool definition
func (te *ToolExecutor) validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// InputSchema returns the JSON Schema object describing the tool's parameters.
func (def ToolDefinition) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// generateJSONSchema compiles the tool's input schema
func (te *ToolExecutor) generateJSONSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	schemaMap := def.InputSchema()
	if required, _ := schemaMap["required"].([]string); len(required) == 0 {
		delete(schemaMap, "required")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// validateParameters validates parameters against a JSON Schema
func (te *ToolExecutor) validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}
