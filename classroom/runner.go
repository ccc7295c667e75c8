package classroom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner executes one GitHub CLI invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CommandError reports a failed or timed-out GitHub CLI invocation.
type CommandError struct {
	Args    []string
	Stderr  string
	Timeout bool
	Err     error
}

func (e *CommandError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("gh %s: command timed out", strings.Join(e.Args, " "))
	}
	if e.Stderr != "" {
		return fmt.Sprintf("gh %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("gh %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// CLIRunner runs the gh binary with a per-invocation timeout.
type CLIRunner struct {
	timeout time.Duration
}

func NewCLIRunner(timeout time.Duration) *CLIRunner {
	return &CLIRunner{timeout: timeout}
}

func (r *CLIRunner) Run(ctx context.Context, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "gh", args...)
	// gh classroom subcommands must authenticate through the CLI's own
	// login; an inherited GITHUB_TOKEN overrides it with the wrong scopes.
	cmd.Env = envWithoutToken(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", &CommandError{Args: args, Timeout: true, Err: runCtx.Err()}
		}
		return "", &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

func envWithoutToken(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "GITHUB_TOKEN=") {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}
