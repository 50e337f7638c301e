// Package toolexecutor holds the tool catalog and dispatches tool calls.
//
// Invariants:
// - Tool names are unique; aliases resolve to exactly one definition.
// - Parameters are schema-validated before the handler runs.
// - Execute never panics and never returns a Go error: every outcome is a Result.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name: "echo",
//		Description: "Echo input",
//		Parameters: []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
//			return map[string]interface{}{"text": params["text"]}, nil
//		},
//	})
//	result := exec.Execute(ctx, "echo", map[string]interface{}{"text": "hi"}, nil)
//	_ = result.Content()
package toolexecutor
