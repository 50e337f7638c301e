package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds every command and search run inside a sandbox root.
const DefaultTimeout = 30 * time.Second

// DefaultMaxOutput is the number of bytes kept per output stream (1 MiB)
const DefaultMaxOutput = 1 << 20

// Config defines sandbox configuration
type Config struct {
	// Timeout limits execution time of a single command
	Timeout time.Duration `json:"timeout"`

	// Env are extra environment variables passed to every command
	Env map[string]string `json:"env"`

	// InheritPath forwards the host PATH instead of the minimal default
	InheritPath bool `json:"inherit_path"`

	// MaxOutput caps the bytes kept from stdout and from stderr; the rest
	// is discarded and the result marked truncated
	MaxOutput int `json:"max_output"`
}

// ExecuteRequest represents a sandbox execution request
type ExecuteRequest struct {
	// Command is the command to execute
	Command string `json:"command"`

	// Args are the command arguments
	Args []string `json:"args"`

	// Env are environment variables
	Env map[string]string `json:"env"`

	// WorkingDir is relative to the sandbox root; empty means the root itself
	WorkingDir string `json:"working_dir"`

	// Stdin is the standard input
	Stdin []byte `json:"stdin"`

	// Timeout is the execution timeout
	Timeout time.Duration `json:"timeout"`
}

// ExecuteResult represents a sandbox execution result
type ExecuteResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`

	// Truncated is set when either stream exceeded the output cap
	Truncated bool `json:"truncated"`
}

// Sandbox runs commands confined to a root directory.
type Sandbox interface {
	// Execute runs a command in the sandbox
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)

	// Root returns the directory all execution is confined to
	Root() *Root
}

// DefaultConfig returns a default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		Env:         map[string]string{},
		InheritPath: true,
		MaxOutput:   DefaultMaxOutput,
	}
}

// ValidateConfig validates a sandbox configuration
func ValidateConfig(cfg Config) error {
	if cfg.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if cfg.MaxOutput < 0 {
		return ErrInvalidMaxOutput
	}
	return nil
}

// Root is a directory that every file path operation is confined to.
type Root struct {
	dir string
}

// NewRoot resolves dir to an absolute, symlink-free directory.
func NewRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrEmptyRoot
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, dir)
	}

	return &Root{dir: resolved}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Resolve maps a root-relative path to an absolute path inside the root.
// Absolute paths, parent-directory escapes and symlinks pointing outside the
// root fail with ErrOutsideRoot before any file is touched.
func (r *Root) Resolve(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		pathValue = "."
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("%w: %q is not a local path", ErrOutsideRoot, pathValue)
	}
	if filepath.IsAbs(pathValue) || strings.HasPrefix(pathValue, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrOutsideRoot, pathValue)
	}

	candidate := filepath.Clean(filepath.Join(r.dir, filepath.FromSlash(pathValue)))
	if !r.contains(candidate) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, pathValue)
	}

	// The target may not exist yet; check the deepest ancestor that does.
	existing := candidate
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", pathValue, err)
	}
	if !r.contains(resolved) {
		return "", fmt.Errorf("%w: %q resolves through a symlink outside the root", ErrOutsideRoot, pathValue)
	}

	return candidate, nil
}

// Rel returns the slash-separated path of abs relative to the root.
func (r *Root) Rel(abs string) string {
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Normalize returns the canonical root-relative form of a path argument.
func (r *Root) Normalize(pathValue string) (string, error) {
	abs, err := r.Resolve(pathValue)
	if err != nil {
		return "", err
	}
	return r.Rel(abs), nil
}

func (r *Root) contains(path string) bool {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
