package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with fresh flag state
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cfgFile, logLevel, metricsAddr = "", "", ""
	runSkill, runRepos, runMaxIterations = "", nil, 0
	pluginID, pluginPath, pluginTask, pluginDirs, pluginWatch = "", "", nil, nil, false
	toolsRoot, skillsDir = ".", ""
	resetFlags(rootCmd)

	cmd := GetRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags clears the parsed state cobra keeps between executions
func resetFlags(cmd *cobra.Command) {
	for _, name := range []string{"help", "version"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = f.Value.Set("false")
		}
	}
	for _, name := range []string{"help", "version", "config", "log-level", "metrics-addr", "skill", "repo", "max-iterations", "id", "path", "task", "dir", "watch"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
	}
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// writeConfig writes a config file with one anthropic profile
func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "orchestrator.json")
	content := `{
		"ai": {"profiles": [{"id": "main", "provider": "anthropic", "api_key": "sk-ant-test-key-123", "priority": 1}]},
		"agent": {"retry_base_delay_ms": 1},
		"plugins": {"dirs": []}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, _, err := executeCommand(t, "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "orchestrator version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		output, _, err := executeCommand(t, "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "Orchestrator")
		assert.Contains(t, output, "turn loop")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
		require.NotNil(t, cmd.PersistentFlags().Lookup("metrics-addr"))
	})

	t.Run("subcommands", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, want := range []string{"run", "plugin", "skills", "tools", "version"} {
			assert.True(t, names[want], "%s command should exist", want)
		}
	})
}

func TestVersionCommand(t *testing.T) {
	output, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "orchestrator version "+GetVersion()+"\n", output)
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestSetupBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0644))

	_, _, err := executeCommand(t, "--config", path, "tools", "--repo", t.TempDir())
	assert.Error(t, err)
}
