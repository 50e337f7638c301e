// Package agent runs the bounded turn loop between a decision service and the tool executor.
//
// Invariants:
// - Iterations never exceed the configured cap.
// - Tool calls of one turn are dispatched in emission order and answered in a single tool turn.
// - Tool calls route through toolexecutor only.
// - Only decision service failures end a run with an error; tool failures are fed back as results.
//
// Usage:
//
//	root, _ := sandbox.NewRoot("/path/to/repo")
//	runner, _ := agent.NewRunner(agent.Config{
//		SandboxRoot:  root,
//		AuthProfiles: []agent.AuthProfile{{ID: "default", Provider: "anthropic", APIKey: key}},
//	})
//	summary, err := runner.Run(ctx, agent.Task{Name: "docs", Definition: body})
//	_ = summary
package agent
