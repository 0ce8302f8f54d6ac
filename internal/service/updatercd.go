package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// UpdateRCD drives SysV init on Debian style systems.
type UpdateRCD struct {
	cmd  commander
	root string
}

// NewUpdateRCD returns an update-rc.d backend. root prefixes /etc.
func NewUpdateRCD(runner cmdexec.Runner, logger *slog.Logger, root string) *UpdateRCD {
	return &UpdateRCD{cmd: newCommander(runner, logger, "update-rc.d"), root: root}
}

func (u *UpdateRCD) Name() string { return "update-rc.d" }

func (u *UpdateRCD) Enable(ctx context.Context, svc string) bool {
	if !u.cmd.ok(ctx, "update-rc.d", svc, "enable") {
		return false
	}
	u.cmd.ok(ctx, "service", svc, "start")
	return true
}

func (u *UpdateRCD) Disable(ctx context.Context, svc string) bool {
	if !u.cmd.ok(ctx, "update-rc.d", svc, "disable") {
		return false
	}
	u.cmd.ok(ctx, "service", svc, "stop")
	return true
}

// Audit looks for a start link such as /etc/rc2.d/S01ssh.
func (u *UpdateRCD) Audit(_ context.Context, svc string) bool {
	start := regexp.MustCompile(`^S[0-9]+` + regexp.QuoteMeta(svc) + `$`)
	dirs, _ := filepath.Glob(filepath.Join(u.root, "/etc", "rc[2-5].d"))
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if start.MatchString(e.Name()) {
				return true
			}
		}
	}
	return false
}

func (u *UpdateRCD) IsRunning(ctx context.Context, svc string) bool {
	return u.cmd.ok(ctx, "service", svc, "status")
}

func (u *UpdateRCD) Reload(ctx context.Context, svc string) bool {
	if !u.cmd.ok(ctx, "service", svc, "reload") && !u.cmd.ok(ctx, "service", svc, "restart") {
		return false
	}
	return u.IsRunning(ctx, svc)
}

func (u *UpdateRCD) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(u.root, "/etc/init.d"))
	if err != nil {
		return nil, fmt.Errorf("service: list init.d: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
