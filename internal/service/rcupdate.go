package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

const openrcRunlevel = "default"

// RCUpdate drives OpenRC.
type RCUpdate struct {
	cmd commander
}

// NewRCUpdate returns an OpenRC backend.
func NewRCUpdate(runner cmdexec.Runner, logger *slog.Logger) *RCUpdate {
	return &RCUpdate{cmd: newCommander(runner, logger, "rc-update")}
}

func (r *RCUpdate) Name() string { return "rc-update" }

func (r *RCUpdate) Enable(ctx context.Context, svc string) bool {
	if !r.cmd.ok(ctx, "rc-update", "add", svc, openrcRunlevel) {
		return false
	}
	r.cmd.ok(ctx, "rc-service", svc, "start")
	return true
}

func (r *RCUpdate) Disable(ctx context.Context, svc string) bool {
	if !r.cmd.ok(ctx, "rc-update", "del", svc, openrcRunlevel) {
		return false
	}
	r.cmd.ok(ctx, "rc-service", svc, "stop")
	return true
}

func (r *RCUpdate) Audit(ctx context.Context, svc string) bool {
	names, err := r.showRunlevel(ctx, openrcRunlevel)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == svc {
			return true
		}
	}
	return false
}

func (r *RCUpdate) IsRunning(ctx context.Context, svc string) bool {
	res, _ := r.cmd.run(ctx, "rc-service", svc, "status")
	return strings.Contains(res.Stdout, "started")
}

func (r *RCUpdate) Reload(ctx context.Context, svc string) bool {
	if !r.cmd.ok(ctx, "rc-service", svc, "reload") && !r.cmd.ok(ctx, "rc-service", svc, "restart") {
		return false
	}
	return r.IsRunning(ctx, svc)
}

func (r *RCUpdate) List(ctx context.Context) ([]string, error) {
	return r.showRunlevel(ctx, "-v")
}

// showRunlevel parses "rc-update show" lines of the form " sshd | default".
func (r *RCUpdate) showRunlevel(ctx context.Context, arg string) ([]string, error) {
	res, ok := r.cmd.run(ctx, "rc-update", "show", arg)
	if !ok {
		return nil, fmt.Errorf("service: rc-update show: exit status %d", res.ExitCode)
	}
	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		name, _, found := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}
