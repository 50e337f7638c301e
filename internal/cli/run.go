package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/harun/orchestrator/internal/config"
	"github.com/harun/orchestrator/pkg/agent"
	"github.com/harun/orchestrator/pkg/sandbox"
	"github.com/harun/orchestrator/pkg/skill"
	"github.com/spf13/cobra"
)

var (
	runSkill         string
	runRepos         []string
	runMaxIterations int
)

// providerFactory builds decision service clients; nil uses agent.ProviderFactory
var providerFactory agent.ProviderCreator

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a skill against a repository",
	Long: `Run a skill through the tool-use turn loop with the repository as the
sandbox root. The run summary is printed as JSON.

--repo may be repeated; repositories run one after another and each prints
its own summary.

--skill is either a directory containing SKILL.md or a skill name looked up
in the configured skills directory.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSkill, "skill", "", "skill directory or name (required)")
	runCmd.Flags().StringArrayVar(&runRepos, "repo", nil, "repository path used as the sandbox root (repeatable, default .)")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "iteration cap (default from config)")
	_ = runCmd.MarkFlagRequired("skill")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := componentLogger("run")
	for _, problem := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(problem).Msg("Configuration warning")
	}

	sk, err := resolveSkill(runSkill, cfg.SkillsDir)
	if err != nil {
		return err
	}

	repos := runRepos
	if len(repos) == 0 {
		repos = []string{"."}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var errs []error
	for _, repo := range repos {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := runRepo(ctx, cmd.OutOrStdout(), cfg, sk, repo); err != nil {
			log.Error().Str("repo", repo).Err(err).Msg("Run failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runRepo runs the skill with repo as the sandbox root and prints the summary
func runRepo(ctx context.Context, out io.Writer, cfg *config.Config, sk *skill.Skill, repo string) error {
	root, err := sandbox.NewRoot(repo)
	if err != nil {
		return fmt.Errorf("invalid repository %s: %w", repo, err)
	}

	runnerCfg := cfg.RunnerConfig()
	runnerCfg.SandboxRoot = root
	runnerCfg.ProviderFactory = providerFactory
	runnerCfg.Logger = baseLogger()
	if runMaxIterations > 0 {
		runnerCfg.MaxIterations = runMaxIterations
	}

	runner, err := agent.NewRunner(runnerCfg)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	runLog := componentLogger("run")
	runLog.Info().
		Str("skill", sk.Name).
		Str("repo", root.Dir()).
		Msg("Starting run")

	task := sk.Task(root.Dir(), skill.CollectRepoContext(root.Dir()))
	summary, runErr := runner.Run(ctx, task)

	if err := writeJSON(out, summary); err != nil {
		return err
	}

	if runErr != nil {
		var remoteErr *agent.RemoteServiceError
		if errors.As(runErr, &remoteErr) {
			return fmt.Errorf("run aborted at iteration %d: %w", remoteErr.Iteration, runErr)
		}
		return runErr
	}
	return nil
}

// resolveSkill loads a skill from a directory, or by name from skillsDir
func resolveSkill(ref, skillsDir string) (*skill.Skill, error) {
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		if _, err := os.Stat(filepath.Join(ref, skill.DefinitionFile)); err == nil {
			return skill.LoadDir(ref)
		}
	}
	return skill.Load(skillsDir, ref)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// commandContext returns the command context, or background outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
