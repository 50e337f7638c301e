package cli

import (
	"fmt"

	"github.com/harun/orchestrator/pkg/coretools"
	"github.com/harun/orchestrator/pkg/sandbox"
	"github.com/harun/orchestrator/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var toolsRoot string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog",
	Long:  `Print the tools offered to the model, with their input schemas, as JSON.`,
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsRoot, "repo", ".", "sandbox root the tools are bound to")
	rootCmd.AddCommand(toolsCmd)
}

type catalogEntry struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

func runTools(cmd *cobra.Command, args []string) error {
	root, err := sandbox.NewRoot(toolsRoot)
	if err != nil {
		return fmt.Errorf("invalid repository: %w", err)
	}
	box, err := sandbox.NewHostSandbox(root, sandbox.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}

	executor := toolexecutor.New()
	if err := coretools.Register(executor, coretools.Options{Sandbox: box}); err != nil {
		return err
	}

	catalog := executor.Catalog()
	entries := make([]catalogEntry, 0, len(catalog))
	for _, def := range catalog {
		entries = append(entries, catalogEntry{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema(),
		})
	}
	return writeJSON(cmd.OutOrStdout(), entries)
}
