package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/harun/orchestrator/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() ToolDefinition {
	return ToolDefinition{
		Name:        "echo",
		Description: "Echo tool",
		Parameters: []ToolParameter{
			{
				Name:        "message",
				Type:        "string",
				Description: "Message to echo",
				Required:    true,
			},
			{
				Name:        "suffix",
				Type:        "string",
				Description: "Appended to the message",
				Default:     "!",
			},
		},
		Aliases: []string{"say"},
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{
				"message": fmt.Sprintf("%s%s", params["message"], params["suffix"]),
			}, nil
		},
	}
}

func TestToolExecutor_RegisterTool(t *testing.T) {
	te := New()

	err := te.RegisterTool(echoTool())
	assert.NoError(t, err)

	tool := te.GetTool("echo")
	require.NotNil(t, tool)
	assert.Equal(t, "echo", tool.Name)

	aliased := te.GetTool("say")
	require.NotNil(t, aliased)
	assert.Equal(t, "echo", aliased.Name)

	assert.Equal(t, []string{"echo"}, te.ListTools())
}

func TestToolExecutor_RegisterTool_Duplicate(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	err := te.RegisterTool(echoTool())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	clash := echoTool()
	clash.Name = "other"
	err = te.RegisterTool(clash)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alias say")
}

func TestToolExecutor_RegisterTool_InvalidDefinition(t *testing.T) {
	te := New()
	noop := func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) { return nil, nil }

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{
			name: "empty name",
			def:  ToolDefinition{Description: "Test", Handler: noop},
		},
		{
			name: "empty description",
			def:  ToolDefinition{Name: "test", Handler: noop},
		},
		{
			name: "nil handler",
			def:  ToolDefinition{Name: "test", Description: "Test"},
		},
		{
			name: "bad parameter type",
			def: ToolDefinition{
				Name:        "test",
				Description: "Test",
				Handler:     noop,
				Parameters:  []ToolParameter{{Name: "x", Type: "blob", Description: "x"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := te.RegisterTool(tt.def)
			assert.Error(t, err)
		})
	}
}

func TestToolExecutor_Catalog(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	second := ToolDefinition{
		Name:        "noop",
		Description: "Does nothing",
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return nil, nil
		},
	}
	require.NoError(t, te.RegisterTool(second))

	catalog := te.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, "echo", catalog[0].Name)
	assert.Equal(t, "noop", catalog[1].Name)

	schema := catalog[0].InputSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"message"}, schema["required"])
	properties := schema["properties"].(map[string]interface{})
	assert.Contains(t, properties, "message")
	assert.Contains(t, properties, "suffix")

	empty := catalog[1].InputSchema()
	assert.Equal(t, []string{}, empty["required"])
}

func TestToolExecutor_Execute_Success(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	result := te.Execute(context.Background(), "echo", map[string]interface{}{
		"message": "Hello, World",
	}, nil)

	assert.True(t, result.OK())
	assert.Nil(t, result.Err)
	assert.Equal(t, "Hello, World!", result.Output["message"])
	assert.Equal(t, result.Output, result.Content())
}

func TestToolExecutor_Execute_Alias(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	result := te.Execute(context.Background(), "say", map[string]interface{}{
		"message": "hi",
		"suffix":  "?",
	}, nil)

	require.True(t, result.OK())
	assert.Equal(t, "hi?", result.Output["message"])
}

func TestToolExecutor_Execute_DefaultsDoNotMutateInput(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	params := map[string]interface{}{"message": "x"}
	result := te.Execute(context.Background(), "echo", params, nil)

	require.True(t, result.OK())
	assert.NotContains(t, params, "suffix")
}

func TestToolExecutor_Execute_ToolNotFound(t *testing.T) {
	te := New()

	result := te.Execute(context.Background(), "nonexistent", map[string]interface{}{}, nil)

	assert.False(t, result.OK())
	assert.Equal(t, KindValidation, result.Err.Kind)
	assert.Equal(t, map[string]interface{}{"error": "Unknown tool: nonexistent"}, result.Content())
}

func TestToolExecutor_Execute_ValidationError(t *testing.T) {
	te := New()
	called := false
	def := echoTool()
	def.Handler = func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
		called = true
		return nil, nil
	}
	require.NoError(t, te.RegisterTool(def))

	t.Run("missing required", func(t *testing.T) {
		result := te.Execute(context.Background(), "echo", nil, nil)
		assert.False(t, result.OK())
		assert.Equal(t, KindValidation, result.Err.Kind)
		assert.Contains(t, result.Err.Message, "parameter validation failed")
	})

	t.Run("wrong type", func(t *testing.T) {
		result := te.Execute(context.Background(), "echo", map[string]interface{}{"message": 42}, nil)
		assert.False(t, result.OK())
		assert.Equal(t, KindValidation, result.Err.Kind)
	})

	assert.False(t, called)
}

func TestToolExecutor_Execute_HandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{name: "tool error kept", err: NewError(KindTimeout, "Command timed out after 30 seconds"), kind: KindTimeout},
		{name: "sandbox escape", err: fmt.Errorf("resolve: %w", sandbox.ErrOutsideRoot), kind: KindSandboxViolation},
		{name: "deadline", err: context.DeadlineExceeded, kind: KindTimeout},
		{name: "plain error", err: errors.New("disk full"), kind: KindIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := New()
			require.NoError(t, te.RegisterTool(ToolDefinition{
				Name:        "fail",
				Description: "Always fails",
				Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
					return nil, tt.err
				},
			}))

			result := te.Execute(context.Background(), "fail", nil, nil)
			require.False(t, result.OK())
			assert.Equal(t, tt.kind, result.Err.Kind)
			assert.Equal(t, tt.err.Error(), result.Content()["error"])
		})
	}
}

func TestToolExecutor_Execute_RecoversPanic(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "boom",
		Description: "Panics",
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			panic("unexpected")
		},
	}))

	result := te.Execute(context.Background(), "boom", nil, nil)
	require.False(t, result.OK())
	assert.Equal(t, KindIO, result.Err.Kind)
	assert.Contains(t, result.Err.Message, "unexpected")
}

func TestToolExecutor_Execute_PassesExecutionContext(t *testing.T) {
	te := New()
	var seen *ExecutionContext
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "ctx",
		Description: "Captures the execution context",
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			seen = ExecutionContextFrom(ctx)
			return map[string]interface{}{}, nil
		},
	}))

	execCtx := &ExecutionContext{RunID: "run-1", Iteration: 3, ToolUseID: "toolu_1"}
	result := te.Execute(context.Background(), "ctx", nil, execCtx)

	require.True(t, result.OK())
	assert.Equal(t, execCtx, seen)
}

func TestResult_ContentNilOutput(t *testing.T) {
	assert.Equal(t, map[string]interface{}{}, Result{}.Content())
}
