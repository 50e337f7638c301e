package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/orchestrator/pkg/skill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillsCommand(t *testing.T) {
	t.Run("lists skills", func(t *testing.T) {
		configPath := writeConfig(t)
		base := filepath.Dir(writeSkill(t))
		moc := filepath.Join(base, "moc")
		require.NoError(t, os.MkdirAll(moc, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(moc, skill.DefinitionFile), []byte("Write an index under docs/moc/.\n"), 0644))

		output, _, err := executeCommand(t, "--config", configPath, "skills", "--dir", base)
		require.NoError(t, err)

		var summaries []skill.Summary
		require.NoError(t, json.Unmarshal([]byte(output), &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "moc", summaries[0].Name)
		assert.Equal(t, "docs/moc", summaries[0].Output.Location)
		assert.True(t, summaries[0].Output.CreatesDirectory)
		assert.Equal(t, "release-notes", summaries[1].Name)
		assert.Equal(t, "Write release notes", summaries[1].Description)
	})

	t.Run("empty directory", func(t *testing.T) {
		configPath := writeConfig(t)
		output, _, err := executeCommand(t, "--config", configPath, "skills", "--dir", t.TempDir())
		require.NoError(t, err)
		assert.JSONEq(t, "[]", output)
	})

	t.Run("missing directory", func(t *testing.T) {
		configPath := writeConfig(t)
		_, _, err := executeCommand(t, "--config", configPath, "skills", "--dir", filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})
}
