package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// SkillFile marks a conversational agent directory
const SkillFile = "SKILL.md"

// Discovery scans agent directories and builds descriptors
type Discovery struct {
	metadata *MetadataLoader
	logger   zerolog.Logger
}

// NewDiscovery creates a discovery that reads metadata through the loader's cache
func NewDiscovery(loader *Loader) *Discovery {
	return &Discovery{
		metadata: loader.metadata,
		logger:   loader.logger.With().Str("component", "plugin-discovery").Logger(),
	}
}

// Discover scans each directory's immediate subdirectories. A subdirectory
// with AGENT.json is a plugin; one with only SKILL.md is conversational.
// Missing directories are skipped.
func (d *Discovery) Discover(dirs ...string) ([]AgentDescriptor, error) {
	var discovered []AgentDescriptor

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		descriptors, err := d.scanDirectory(dir)
		if err != nil {
			return nil, err
		}
		discovered = append(discovered, descriptors...)
	}

	sort.SliceStable(discovered, func(i, j int) bool {
		return discovered[i].ID < discovered[j].ID
	})

	d.logger.Info().Int("count", len(discovered)).Msg("Agent discovery completed")
	return discovered, nil
}

// scanDirectory scans a single directory for agents
func (d *Discovery) scanDirectory(dir string) ([]AgentDescriptor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Debug().Str("dir", dir).Msg("Directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var discovered []AgentDescriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		agentDir := filepath.Join(dir, entry.Name())
		descriptor, ok := d.describe(entry.Name(), agentDir)
		if !ok {
			continue
		}

		discovered = append(discovered, descriptor)
		d.logger.Debug().
			Str("id", descriptor.ID).
			Str("kind", string(descriptor.Kind)).
			Msg("Discovered agent")
	}

	return discovered, nil
}

func (d *Discovery) describe(id, dir string) (AgentDescriptor, bool) {
	descriptor := AgentDescriptor{ID: id, Path: dir}

	metadata, err := d.metadata.Load(dir)
	if err != nil {
		d.logger.Warn().Err(err).Str("dir", dir).Msg("Skipping agent with invalid metadata")
		return descriptor, false
	}

	if metadata != nil {
		descriptor.Kind = KindPlugin
		descriptor.Name = metadata.Name
		descriptor.Description = metadata.Description
		descriptor.Capabilities = metadata.Capabilities
		return descriptor, true
	}

	if _, err := os.Stat(filepath.Join(dir, SkillFile)); err == nil {
		descriptor.Kind = KindConversational
		return descriptor, true
	}

	return descriptor, false
}
