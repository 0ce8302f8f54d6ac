// Package pkgmgr installs, removes and queries software packages through the
// host's native package manager. A Helper selects one Backend from the OS
// type, falling back to probing for manager binaries.
package pkgmgr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// Backend is one package manager. Every method reports success as a bool;
// an unknown package is false, never an error.
type Backend interface {
	Name() string
	Install(ctx context.Context, pkg string) bool
	Remove(ctx context.Context, pkg string) bool
	Check(ctx context.Context, pkg string) bool
	CheckAvailable(ctx context.Context, pkg string) bool
	// CheckUpdate and Update act on the whole system when pkg is empty.
	CheckUpdate(ctx context.Context, pkg string) bool
	Update(ctx context.Context, pkg string) bool
}

// query runs a command and inspects its result.
type query func(ctx context.Context, m *manager, pkg string) bool

// manager is a Backend described by command builders and result checks.
type manager struct {
	name string
	// path is the binary whose presence marks the manager as usable.
	path string
	// lockProcess, when set, names the process whose presence means the
	// manager's database is locked by another instance.
	lockProcess string

	install     func(pkg string) cmdexec.Command
	remove      func(pkg string) cmdexec.Command
	update      func(pkg string) cmdexec.Command
	check       query
	available   query
	checkUpdate query

	runner   cmdexec.Runner
	logger   *slog.Logger
	waitLock func(ctx context.Context, process string) bool
}

func (m *manager) Name() string { return m.name }

func (m *manager) Install(ctx context.Context, pkg string) bool {
	return m.mutate(ctx, "install", pkg, m.install)
}

func (m *manager) Remove(ctx context.Context, pkg string) bool {
	return m.mutate(ctx, "remove", pkg, m.remove)
}

func (m *manager) Update(ctx context.Context, pkg string) bool {
	if m.update == nil {
		return false
	}
	return m.mutate(ctx, "update", pkg, m.update)
}

func (m *manager) Check(ctx context.Context, pkg string) bool {
	return m.check(ctx, m, pkg)
}

func (m *manager) CheckAvailable(ctx context.Context, pkg string) bool {
	return m.available(ctx, m, pkg)
}

func (m *manager) CheckUpdate(ctx context.Context, pkg string) bool {
	if m.checkUpdate == nil {
		return false
	}
	return m.checkUpdate(ctx, m, pkg)
}

func (m *manager) mutate(ctx context.Context, op, pkg string, build func(string) cmdexec.Command) bool {
	if m.lockProcess != "" && m.waitLock != nil && !m.waitLock(ctx, m.lockProcess) {
		m.logger.Debug("package manager busy, giving up", "op", op, "package", pkg, "process", m.lockProcess)
		return false
	}
	_, ok := m.run(ctx, build(pkg))
	if ok {
		m.logger.Debug("package operation succeeded", "op", op, "package", pkg)
	} else {
		m.logger.Debug("package operation failed", "op", op, "package", pkg)
	}
	return ok
}

func (m *manager) run(ctx context.Context, cmd cmdexec.Command) (cmdexec.Result, bool) {
	res, err := m.runner.Run(ctx, cmd)
	if err != nil {
		m.logger.Debug("command failed to run", "command", cmd.String(), "error", err)
		return res, false
	}
	if !res.OK() {
		m.logger.Debug("command exited non-zero",
			"command", cmd.String(),
			"exit_code", res.ExitCode,
			"output", strings.TrimSpace(res.Output()),
		)
	}
	return res, res.OK()
}

// exitZero builds a query that succeeds when the command exits zero.
func exitZero(build func(pkg string) cmdexec.Command) query {
	return func(ctx context.Context, m *manager, pkg string) bool {
		_, ok := m.run(ctx, build(pkg))
		return ok
	}
}

// exitCode builds a query that succeeds when the command exits with code,
// as yum and dnf check-update do with 100 when updates are pending.
func exitCode(code int, build func(pkg string) cmdexec.Command) query {
	return func(ctx context.Context, m *manager, pkg string) bool {
		res, err := m.runner.Run(ctx, build(pkg))
		return err == nil && res.ExitCode == code
	}
}

// withPkg appends pkg to args when it is not empty.
func withPkg(pkg string, args ...string) []string {
	if pkg == "" {
		return args
	}
	return append(args, pkg)
}
