// Package cmdexec runs external commands on behalf of rules and the service
// and package backends, capturing stdout, stderr and the exit code.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelayAfterKill is the grace period for a child to exit after its
// context is cancelled before it is forcibly killed.
const waitDelayAfterKill = 500 * time.Millisecond

// DefaultTimeout bounds a single command when the caller's context has no deadline.
const DefaultTimeout = 10 * time.Minute

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	// Env entries are appended to the current process environment.
	Env []string
	// Stdin is fed to the process when non-empty.
	Stdin string
}

// Cmd is shorthand for a Command without extra environment.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command as a shell-like line for logs and ledger entries.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+1+len(c.Args))
	parts = append(parts, c.Env...)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// Argv returns the name followed by the arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// Result is the outcome of a command that was started.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports whether the command exited zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Runner abstracts process execution for testability.
// A non-zero exit status is reported through Result.ExitCode with a nil
// error; an error means the process could not be started or was cancelled.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ErrNotFound is returned when the executable cannot be located.
var ErrNotFound = errors.New("cmdexec: executable not found")

// Executor is the Runner backed by os/exec.
type Executor struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A zero timeout selects DefaultTimeout.
func NewExecutor(timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		timeout: timeout,
		logger:  logger.With("component", "cmdexec"),
	}
}

// Run executes cmd and waits for it to finish.
func (e *Executor) Run(ctx context.Context, cmd Command) (Result, error) {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s", ErrNotFound, cmd.Name)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.WaitDelay = waitDelayAfterKill
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	runErr := c.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("cmdexec: %s: %w", cmd.Name, ctx.Err())
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("cmdexec: %s: %w", cmd.Name, runErr)
	}

	e.logger.Debug("command finished",
		"command", cmd.String(),
		"exit_code", res.ExitCode,
		"duration", time.Since(start),
	)
	return res, nil
}
