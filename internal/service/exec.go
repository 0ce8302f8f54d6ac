package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// commander wraps a runner with the logging shared by the backends.
type commander struct {
	runner cmdexec.Runner
	logger *slog.Logger
}

func newCommander(runner cmdexec.Runner, logger *slog.Logger, backend string) commander {
	return commander{
		runner: runner,
		logger: logger.With("component", "service", "backend", backend),
	}
}

// run executes name with args and returns the result and whether it exited zero.
func (c commander) run(ctx context.Context, name string, args ...string) (cmdexec.Result, bool) {
	res, err := c.runner.Run(ctx, cmdexec.Cmd(name, args...))
	if err != nil {
		c.logger.Debug("command failed to run", "command", name, "args", args, "error", err)
		return res, false
	}
	if !res.OK() {
		c.logger.Debug("command exited non-zero",
			"command", name,
			"args", args,
			"exit_code", res.ExitCode,
			"output", strings.TrimSpace(res.Output()),
		)
	}
	return res, res.OK()
}

// ok runs the command and reports only whether it exited zero.
func (c commander) ok(ctx context.Context, name string, args ...string) bool {
	_, ok := c.run(ctx, name, args...)
	return ok
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
