package cli

import (
	"github.com/harun/orchestrator/pkg/skill"
	"github.com/spf13/cobra"
)

var skillsDir string

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List available skills",
	Long: `List the skills found in the skills directory as JSON, with their
descriptions and the output locations their definitions name.`,
	RunE: runSkills,
}

func init() {
	skillsCmd.Flags().StringVar(&skillsDir, "dir", "", "skills directory (default from config)")
	rootCmd.AddCommand(skillsCmd)
}

func runSkills(cmd *cobra.Command, args []string) error {
	dir := skillsDir
	if dir == "" {
		dir = app.cfg.SkillsDir
	}

	summaries, err := skill.Summarize(dir)
	if summaries == nil && err != nil {
		return err
	}
	if err != nil {
		skillsLog := componentLogger("skills")
		skillsLog.Warn().Err(err).Msg("Some skills could not be loaded")
	}
	return writeJSON(cmd.OutOrStdout(), summaries)
}
