package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultPath = "/usr/local/bin:/usr/bin:/bin"

// HostSandbox runs commands as host processes with the sandbox root as
// working directory.
type HostSandbox struct {
	config Config
	root   *Root
}

// NewHostSandbox creates a new host-based sandbox
func NewHostSandbox(root *Root, config Config) (*HostSandbox, error) {
	if root == nil {
		return nil, ErrEmptyRoot
	}
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxOutput == 0 {
		config.MaxOutput = DefaultMaxOutput
	}

	return &HostSandbox{
		config: config,
		root:   root,
	}, nil
}

// Root returns the sandbox root
func (h *HostSandbox) Root() *Root {
	return h.root
}

// GetConfig returns the sandbox configuration
func (h *HostSandbox) GetConfig() Config {
	return h.config
}

// RunShell runs one shell command line through sh -c.
func (h *HostSandbox) RunShell(ctx context.Context, line string) (ExecuteResult, error) {
	return h.Execute(ctx, ExecuteRequest{
		Command: "sh",
		Args:    []string{"-c", line},
	})
}

// Execute runs a command in the sandbox
func (h *HostSandbox) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if strings.TrimSpace(req.Command) == "" {
		return ExecuteResult{}, ErrEmptyCommand
	}

	workDir, err := h.root.Resolve(req.WorkingDir)
	if err != nil {
		return ExecuteResult{}, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = h.config.Timeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, req.Command, req.Args...)
	cmd.Dir = workDir
	cmd.Env = h.buildEnvironment(req.Env)
	configureProcess(cmd)

	stdout := &cappedBuffer{limit: h.config.MaxOutput}
	stderr := &cappedBuffer{limit: h.config.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if len(req.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(req.Stdin)
	}

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	// Check for timeout first
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		log.Warn().
			Str("command", req.Command).
			Dur("timeout", timeout).
			Msg("Command timed out in sandbox")
		return ExecuteResult{
			Stdout:    stdout.Bytes(),
			Stderr:    stderr.Bytes(),
			ExitCode:  -1,
			Duration:  duration,
			Truncated: stdout.truncated || stderr.truncated,
		}, ErrExecutionTimeout
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return ExecuteResult{}, fmt.Errorf("failed to run command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	log.Debug().
		Str("command", req.Command).
		Strs("args", req.Args).
		Int("exit_code", exitCode).
		Dur("duration", duration).
		Msg("Command executed in sandbox")

	return ExecuteResult{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		ExitCode:  exitCode,
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}, nil
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest
// without failing the writer
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// buildEnvironment builds the environment variables for the command
func (h *HostSandbox) buildEnvironment(env map[string]string) []string {
	path := defaultPath
	if h.config.InheritPath {
		if hostPath := os.Getenv("PATH"); hostPath != "" {
			path = hostPath
		}
	}

	// Start with minimal environment
	result := []string{
		"PATH=" + path,
		"HOME=" + h.root.Dir(),
	}

	for key, value := range h.config.Env {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	for key, value := range env {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}

	return result
}
