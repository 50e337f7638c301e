// Package plugin resolves agent descriptors to implementations and runs them
// through the uniform Execute entry point.
//
// Resolution order: the registry entry for the agent identifier, then the
// implementation name from AGENT.json, then the name derived from the
// identifier. An artifact whose AGENT.json names a main executable is
// launched with hashicorp/go-plugin and the implementation is dispensed by name.
//
// Usage:
//
//	registry := plugin.NewRegistry()
//	_ = registry.Register("synth-notes-generator", plugin.Factory{New: newNotesAgent})
//	loader := plugin.NewLoader(plugin.LoaderConfig{Registry: registry, APIKey: key})
//	result := loader.Run(ctx, plugin.AgentDescriptor{ID: "synth-notes-generator", Path: dir, Kind: plugin.KindPlugin}, task)
package plugin
