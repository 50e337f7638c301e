// Package skill loads task definitions (SKILL.md directories) and collects
// the repository context handed to the turn loop.
package skill

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/harun/orchestrator/pkg/agent"
	"gopkg.in/yaml.v3"
)

const (
	// DefinitionFile holds the task instructions of a skill
	DefinitionFile = "SKILL.md"

	// TemplateFile is an optional structure reference
	TemplateFile = "template.md"

	// MaxFileSize is the maximum allowed SKILL.md or template size (10MB)
	MaxFileSize = 10 * 1024 * 1024
)

var (
	// ErrSkillNotFound is returned when the skill directory does not exist
	ErrSkillNotFound = errors.New("skill not found")

	// ErrNoDefinition is returned when the skill directory has no SKILL.md
	ErrNoDefinition = errors.New("SKILL.md not found")

	outputWrittenTo = regexp.MustCompile("(?i)output is written to[:\\s]+[`\"]?([^`\"\\s]+)")
)

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// OutputHints describe where a skill expects its output to land
type OutputHints struct {
	Location         string `json:"output_location,omitempty"`
	Filename         string `json:"output_filename,omitempty"`
	CreatesDirectory bool   `json:"creates_directory"`
}

// Skill is a loaded task definition
type Skill struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Path        string      `json:"path"`
	Definition  string      `json:"definition"`
	Template    string      `json:"template,omitempty"`
	Output      OutputHints `json:"output"`
}

// Load reads the skill named name under baseDir
func Load(baseDir, name string) (*Skill, error) {
	return LoadDir(filepath.Join(baseDir, name))
}

// LoadDir reads a skill directory. The full SKILL.md text, frontmatter
// included, becomes the definition; the frontmatter only supplies metadata.
func LoadDir(dir string) (*Skill, error) {
	name := filepath.Base(filepath.Clean(dir))

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: '%s' at %s", ErrSkillNotFound, name, dir)
	}

	definition, err := readLimited(filepath.Join(dir, DefinitionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for '%s'", ErrNoDefinition, name)
		}
		return nil, err
	}

	template, err := readLimited(filepath.Join(dir, TemplateFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	metadata, err := ParseFrontmatter(definition)
	if err != nil {
		return nil, fmt.Errorf("skill '%s': %w", name, err)
	}

	skill := &Skill{
		Name:        name,
		Description: metadata.Description,
		Path:        dir,
		Definition:  definition,
		Template:    template,
		Output:      ExtractOutputHints(definition),
	}
	if metadata.Name != "" {
		skill.Name = metadata.Name
	}

	return skill, nil
}

// List returns the names of the skill directories under baseDir, sorted
func List(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(baseDir, entry.Name(), DefinitionFile)); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ParseFrontmatter extracts the leading YAML block delimited by --- lines.
// A definition without frontmatter yields empty metadata.
func ParseFrontmatter(definition string) (Metadata, error) {
	var metadata Metadata

	content := strings.TrimPrefix(definition, "\ufeff")
	if !strings.HasPrefix(content, "---") {
		return metadata, nil
	}

	lines := strings.Split(content, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return metadata, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			block := strings.Join(lines[1:i], "\n")
			if err := yaml.Unmarshal([]byte(block), &metadata); err != nil {
				return metadata, fmt.Errorf("failed to parse frontmatter: %w", err)
			}
			return metadata, nil
		}
	}

	return metadata, fmt.Errorf("unterminated frontmatter")
}

// ExtractOutputHints looks for common output location phrases in a definition
func ExtractOutputHints(definition string) OutputHints {
	var hints OutputHints
	lower := strings.ToLower(definition)

	if strings.Contains(lower, "docs/moc/") {
		hints.Location = "docs/moc"
		hints.CreatesDirectory = true
	} else if match := outputWrittenTo.FindStringSubmatch(definition); match != nil {
		hints.Location = strings.Trim(match[1], "`\"")
	}

	if strings.Contains(lower, "project.md") {
		hints.Filename = "PROJECT.md"
	}

	return hints
}

// Describe renders the hints as a repository-relative target, or "" when
// the definition named no output location
func (h OutputHints) Describe() string {
	var target string
	switch {
	case h.Location != "" && h.Filename != "":
		target = path.Join(h.Location, h.Filename)
	case h.Location != "":
		target = h.Location
	case h.Filename != "":
		target = h.Filename
	default:
		return ""
	}
	if h.CreatesDirectory {
		target += " (create the directory if it does not exist)"
	}
	return target
}

// Summary is the listing entry for a skill
type Summary struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Path        string      `json:"path"`
	Output      OutputHints `json:"output"`
}

// Summarize loads every skill under baseDir. Skills that fail to load are
// skipped and reported in the returned error.
func Summarize(baseDir string) ([]Summary, error) {
	names, err := List(baseDir)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(names))
	var errs []error
	for _, name := range names {
		s, err := Load(baseDir, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, Summary{
			Name:        s.Name,
			Description: s.Description,
			Path:        s.Path,
			Output:      s.Output,
		})
	}
	return summaries, errors.Join(errs...)
}

// Task builds the turn loop task for running the skill against a repository
func (s *Skill) Task(repoPath, repoContext string) agent.Task {
	return agent.Task{
		Name:           s.Name,
		Definition:     s.Definition,
		Template:       s.Template,
		RepoName:       filepath.Base(filepath.Clean(repoPath)),
		RepoPath:       repoPath,
		RepoContext:    repoContext,
		ExpectedOutput: s.Output.Describe(),
	}
}

func readLimited(file string) (string, error) {
	info, err := os.Stat(file)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %s (%d bytes, max %d)", file, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return string(data), nil
}
