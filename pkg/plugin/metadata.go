package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Metadata is the parsed AGENT.json of a plugin artifact
type Metadata struct {
	Name         string   `json:"name,omitempty"`
	ClassName    string   `json:"class_name,omitempty"`
	Class        string   `json:"class,omitempty"`
	Version      string   `json:"version,omitempty"`
	Requires     string   `json:"requires,omitempty"`
	Description  string   `json:"description,omitempty"`
	Main         string   `json:"main,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ImplementationName returns the explicit implementation name, preferring
// class_name over class. Empty when neither is set.
func (m *Metadata) ImplementationName() string {
	if m == nil {
		return ""
	}
	if m.ClassName != "" {
		return m.ClassName
	}
	return m.Class
}

// CheckCompatibility verifies the requires constraint against the host version
func (m *Metadata) CheckCompatibility(hostVersion string) error {
	if m == nil || m.Requires == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", m.Requires, err)
	}

	version, err := semver.NewVersion(hostVersion)
	if err != nil {
		return fmt.Errorf("invalid host version %q: %w", hostVersion, err)
	}

	if !constraint.Check(version) {
		return fmt.Errorf("host version %s does not satisfy %s", hostVersion, m.Requires)
	}
	return nil
}

// MetadataLoader reads, validates and caches AGENT.json files per artifact directory
type MetadataLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
	cache        map[string]*Metadata
	mu           sync.RWMutex
}

// NewMetadataLoader creates a new metadata loader
func NewMetadataLoader(logger zerolog.Logger) *MetadataLoader {
	return &MetadataLoader{
		logger:       logger.With().Str("component", "metadata-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(MetadataSchema),
		cache:        make(map[string]*Metadata),
	}
}

// Load returns the metadata of the artifact directory, or nil when the
// directory has no AGENT.json. Results are cached until Invalidate.
func (m *MetadataLoader) Load(dir string) (*Metadata, error) {
	key := filepath.Clean(dir)

	m.mu.RLock()
	cached, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	metadata, err := m.read(key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[key] = metadata
	m.mu.Unlock()

	return metadata, nil
}

// Invalidate drops the cached metadata of an artifact directory
func (m *MetadataLoader) Invalidate(dir string) {
	m.mu.Lock()
	delete(m.cache, filepath.Clean(dir))
	m.mu.Unlock()
}

// Cached reports whether metadata for dir is cached
func (m *MetadataLoader) Cached(dir string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[filepath.Clean(dir)]
	return ok
}

func (m *MetadataLoader) read(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	metadata, err := ParseMetadata(data)
	if err != nil {
		return nil, err
	}

	if err := m.validateSchema(data); err != nil {
		return nil, fmt.Errorf("metadata schema validation failed: %w", err)
	}

	m.logger.Debug().
		Str("path", path).
		Str("implementation", metadata.ImplementationName()).
		Str("version", metadata.Version).
		Msg("Loaded metadata")

	return metadata, nil
}

// validateSchema validates the metadata against the JSON schema
func (m *MetadataLoader) validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(m.schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(messages, "; "))
	}

	return nil
}

// ParseMetadata parses AGENT.json bytes without schema validation
func ParseMetadata(data []byte) (*Metadata, error) {
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata JSON: %w", err)
	}
	return &metadata, nil
}
