package coretools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harun/orchestrator/pkg/sandbox"
	"github.com/harun/orchestrator/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
)

// MaxListedFiles caps the entries returned by list_files.
const MaxListedFiles = 100

// Options configures core tool registration.
type Options struct {
	// Sandbox confines every tool to its root and runs shell commands
	Sandbox *sandbox.HostSandbox

	// CommandTimeout bounds run_command; zero means sandbox.DefaultTimeout
	CommandTimeout time.Duration

	// SearchTimeout bounds search_files; zero means sandbox.DefaultTimeout
	SearchTimeout time.Duration
}

// Register registers the repository tools against one sandbox root.
func Register(executor *toolexecutor.ToolExecutor, opts Options) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}
	if opts.Sandbox == nil {
		return errors.New("sandbox is required")
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = sandbox.DefaultTimeout
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = sandbox.DefaultTimeout
	}

	tools := []toolexecutor.ToolDefinition{
		readFileTool(opts),
		writeFileTool(opts),
		listFilesTool(opts),
		searchFilesTool(opts),
		runCommandTool(opts),
	}

	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}

	log.Debug().
		Str("root", opts.Sandbox.Root().Dir()).
		Int("tools", len(tools)).
		Msg("Core tools registered")
	return nil
}

func readFileTool(opts Options) toolexecutor.ToolDefinition {
	root := opts.Sandbox.Root()
	return toolexecutor.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file in the repository. Use this to examine existing files.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative path to the file within the repository", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			pathValue := stringParam(params, "path")
			target, err := root.Resolve(pathValue)
			if err != nil {
				return nil, err
			}

			info, err := os.Stat(target)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, toolexecutor.NewError(toolexecutor.KindIO, "File not found: %s", pathValue)
				}
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
			if info.IsDir() {
				return nil, toolexecutor.NewError(toolexecutor.KindIO, "Not a file: %s", pathValue)
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
			if !utf8.Valid(data) {
				return nil, toolexecutor.NewError(toolexecutor.KindIO, "File is not valid UTF-8 text: %s", pathValue)
			}

			return map[string]interface{}{
				"content": string(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) toolexecutor.ToolDefinition {
	root := opts.Sandbox.Root()
	return toolexecutor.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the repository. Creates parent directories if needed. Use this to create or overwrite files.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative path where the file should be written", Required: true},
			{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			pathValue := stringParam(params, "path")
			target, err := root.Resolve(pathValue)
			if err != nil {
				return nil, err
			}
			if target == root.Dir() {
				return nil, toolexecutor.NewError(toolexecutor.KindValidation, "path must name a file")
			}
			content := stringParam(params, "content")

			created := false
			info, err := os.Stat(target)
			switch {
			case os.IsNotExist(err):
				created = true
			case err != nil:
				return nil, fmt.Errorf("failed to write file: %w", err)
			case info.IsDir():
				return nil, toolexecutor.NewError(toolexecutor.KindIO, "Not a file: %s", pathValue)
			}

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directories: %w", err)
			}
			if err := os.WriteFile(target, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}

			return map[string]interface{}{
				"success": true,
				"path":    root.Rel(target),
				"created": created,
			}, nil
		},
	}
}

func listFilesTool(opts Options) toolexecutor.ToolDefinition {
	root := opts.Sandbox.Root()
	return toolexecutor.ToolDefinition{
		Name:        "list_files",
		Description: "List files in the repository matching a glob pattern. Use this to explore the repository structure.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Glob pattern to match files (e.g., '*.py', '**/*.md'). Default is '*' for all files.", Default: "*"},
			{Name: "path", Type: "string", Description: "Starting path for the search (relative to repo root). Default is '.'.", Default: "."},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			pattern := stringParam(params, "pattern")
			if pattern == "" {
				pattern = "*"
			}
			pathValue := stringParam(params, "path")
			base, err := root.Resolve(pathValue)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(base); err != nil {
				if os.IsNotExist(err) {
					return nil, toolexecutor.NewError(toolexecutor.KindIO, "Path not found: %s", pathValue)
				}
				return nil, fmt.Errorf("failed to list files: %w", err)
			}

			matcher, err := newGlobMatcher(pattern)
			if err != nil {
				return nil, toolexecutor.NewError(toolexecutor.KindValidation, "invalid pattern %q: %v", pattern, err)
			}

			files := []string{}
			truncated := false
			walkErr := filepath.WalkDir(base, func(current string, entry fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if entry.IsDir() || !entry.Type().IsRegular() {
					return nil
				}
				rel, err := filepath.Rel(base, current)
				if err != nil {
					return err
				}
				if !matcher.match(filepath.ToSlash(rel)) {
					return nil
				}
				if len(files) == MaxListedFiles {
					truncated = true
					return fs.SkipAll
				}
				files = append(files, root.Rel(current))
				return nil
			})
			if walkErr != nil {
				return nil, fmt.Errorf("failed to list files: %w", walkErr)
			}

			return map[string]interface{}{
				"files":     files,
				"count":     len(files),
				"truncated": truncated,
			}, nil
		},
	}
}

func searchFilesTool(opts Options) toolexecutor.ToolDefinition {
	root := opts.Sandbox.Root()
	return toolexecutor.ToolDefinition{
		Name:        "search_files",
		Description: "Search for a text pattern in files. Returns list of files containing the pattern.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Text pattern to search for", Required: true},
			{Name: "file_pattern", Type: "string", Description: "Optional glob pattern to limit which files to search", Default: "*"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			pattern := stringParam(params, "pattern")
			if pattern == "" {
				return nil, toolexecutor.NewError(toolexecutor.KindValidation, "pattern is required")
			}
			filePattern := stringParam(params, "file_pattern")
			if filePattern == "" {
				filePattern = "*"
			}
			matcher, err := newGlobMatcher(filePattern)
			if err != nil {
				return nil, toolexecutor.NewError(toolexecutor.KindValidation, "invalid file_pattern %q: %v", filePattern, err)
			}

			expr, err := regexp.Compile(pattern)
			if err != nil {
				expr = regexp.MustCompile(regexp.QuoteMeta(pattern))
			}

			searchCtx, cancel := context.WithTimeout(ctx, opts.SearchTimeout)
			defer cancel()

			files, err := searchTree(searchCtx, root, expr, matcher)
			if err != nil {
				if errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
					return nil, toolexecutor.NewError(toolexecutor.KindTimeout,
						"Search timed out after %d seconds", int(opts.SearchTimeout.Seconds()))
				}
				return nil, fmt.Errorf("search failed: %w", err)
			}

			return map[string]interface{}{
				"files": files,
				"count": len(files),
			}, nil
		},
	}
}

func searchTree(ctx context.Context, root *sandbox.Root, expr *regexp.Regexp, matcher *globMatcher) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(root.Dir(), func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel := root.Rel(current)
		if !matcher.match(rel) {
			return nil
		}

		data, err := os.ReadFile(current)
		if err != nil {
			log.Debug().Err(err).Str("path", current).Msg("Skipping unreadable file")
			return nil
		}
		if expr.Match(data) {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

func runCommandTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "run_command",
		Description: "Execute a shell command in the repository directory. Use for git operations, running tests, etc.",
		Aliases:     []string{"run_bash"},
		Parameters: []toolexecutor.ToolParameter{
			{Name: "command", Type: "string", Description: "Shell command to execute", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			command := strings.TrimSpace(stringParam(params, "command"))
			if command == "" {
				return nil, toolexecutor.NewError(toolexecutor.KindValidation, "command is required")
			}

			res, err := opts.Sandbox.Execute(ctx, sandbox.ExecuteRequest{
				Command: "sh",
				Args:    []string{"-c", command},
				Timeout: opts.CommandTimeout,
			})
			if err != nil {
				if errors.Is(err, sandbox.ErrExecutionTimeout) {
					return nil, toolexecutor.NewError(toolexecutor.KindTimeout,
						"Command timed out after %d seconds", int(opts.CommandTimeout.Seconds()))
				}
				return nil, fmt.Errorf("command failed: %w", err)
			}

			output := map[string]interface{}{
				"stdout":     string(res.Stdout),
				"stderr":     string(res.Stderr),
				"returncode": res.ExitCode,
			}
			if res.Truncated {
				output["truncated"] = true
			}
			return output, nil
		},
	}
}

func stringParam(params map[string]interface{}, key string) string {
	value, _ := params[key].(string)
	return value
}
