// Package cmdexectest provides a scripted cmdexec.Runner for tests.
package cmdexectest

import (
	"context"
	"strings"
	"sync"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// Response is the canned outcome of a matched command.
type Response struct {
	Result cmdexec.Result
	Err    error
	// Then, when set, is called after the command is recorded. Tests use it
	// to mutate the fake state a real command would have changed.
	Then func()
}

// Runner matches each command line against registered prefixes, longest
// prefix first. Unmatched commands exit 127 like a missing shell command.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []string
}

// New returns an empty Runner.
func New() *Runner {
	return &Runner{responses: make(map[string]Response)}
}

// On registers a response for every command whose rendered line (without
// environment) starts with prefix.
func (r *Runner) On(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = resp
	return r
}

// OnOutput is shorthand for a command exiting with code and stdout.
func (r *Runner) OnOutput(prefix string, code int, stdout string) *Runner {
	return r.On(prefix, Response{Result: cmdexec.Result{ExitCode: code, Stdout: stdout}})
}

// Calls returns the rendered lines of all commands run so far.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Called reports whether any recorded command starts with prefix.
func (r *Runner) Called(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Run implements cmdexec.Runner.
func (r *Runner) Run(ctx context.Context, cmd cmdexec.Command) (cmdexec.Result, error) {
	if err := ctx.Err(); err != nil {
		return cmdexec.Result{ExitCode: -1}, err
	}
	line := strings.Join(cmd.Argv(), " ")

	r.mu.Lock()
	r.calls = append(r.calls, line)
	var (
		best  string
		resp  Response
		found bool
	)
	for prefix, candidate := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, resp, found = prefix, candidate, true
		}
	}
	r.mu.Unlock()

	if !found {
		return cmdexec.Result{ExitCode: 127, Stderr: cmd.Name + ": command not found"}, nil
	}
	if resp.Then != nil {
		resp.Then()
	}
	return resp.Result, resp.Err
}
