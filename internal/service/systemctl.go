package service

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

const systemctl = "systemctl"

// Systemctl drives systemd. Besides the Backend methods it manages unit
// files for the scheduler.
type Systemctl struct {
	cmd commander
}

// NewSystemctl returns a Systemctl backend.
func NewSystemctl(runner cmdexec.Runner, logger *slog.Logger) *Systemctl {
	return &Systemctl{cmd: newCommander(runner, logger, "systemctl")}
}

func (s *Systemctl) Name() string { return "systemctl" }

func (s *Systemctl) Enable(ctx context.Context, svc string) bool {
	if !s.cmd.ok(ctx, systemctl, "-q", "enable", svc) {
		return false
	}
	if !s.cmd.ok(ctx, systemctl, "start", svc) {
		s.cmd.logger.Warn("service enabled but failed to start", "service", svc)
	}
	return true
}

func (s *Systemctl) Disable(ctx context.Context, svc string) bool {
	if !s.cmd.ok(ctx, systemctl, "-q", "disable", svc) {
		return false
	}
	if !s.cmd.ok(ctx, systemctl, "stop", svc) {
		s.cmd.logger.Warn("service disabled but failed to stop", "service", svc)
	}
	return true
}

func (s *Systemctl) Audit(ctx context.Context, svc string) bool {
	res, _ := s.cmd.run(ctx, systemctl, "is-enabled", svc)
	return firstLine(res.Stdout) == "enabled"
}

func (s *Systemctl) IsRunning(ctx context.Context, svc string) bool {
	res, _ := s.cmd.run(ctx, systemctl, "is-active", svc)
	switch firstLine(res.Stdout) {
	case "active", "activating", "reloading":
		return true
	}
	return false
}

func (s *Systemctl) Reload(ctx context.Context, svc string) bool {
	if !s.cmd.ok(ctx, systemctl, "reload-or-restart", svc) {
		return false
	}
	return s.IsRunning(ctx, svc)
}

func (s *Systemctl) List(ctx context.Context) ([]string, error) {
	res, ok := s.cmd.run(ctx, systemctl, "list-unit-files", "--type=service", "--no-legend", "--no-pager")
	if !ok {
		return nil, fmt.Errorf("service: systemctl list-unit-files: %s", strings.TrimSpace(res.Output()))
	}
	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.TrimSuffix(fields[0], ".service"))
	}
	return out, nil
}

// IsAvailable returns true if systemctl is on PATH.
func (s *Systemctl) IsAvailable() bool {
	_, err := exec.LookPath(systemctl)
	return err == nil
}

// DaemonReload reloads unit files.
func (s *Systemctl) DaemonReload(ctx context.Context) error {
	return s.unitCmd(ctx, "daemon-reload")
}

// EnableNow enables and starts a unit.
func (s *Systemctl) EnableNow(ctx context.Context, unit string) error {
	return s.unitCmd(ctx, "enable", "--now", unit)
}

// DisableNow disables and stops a unit.
func (s *Systemctl) DisableNow(ctx context.Context, unit string) error {
	return s.unitCmd(ctx, "disable", "--now", unit)
}

func (s *Systemctl) unitCmd(ctx context.Context, args ...string) error {
	res, err := s.cmd.runner.Run(ctx, cmdexec.Cmd(systemctl, args...))
	if err != nil {
		return fmt.Errorf("service: systemctl %s: %w", args[0], err)
	}
	if !res.OK() {
		return fmt.Errorf("service: systemctl %s: %s: exit status %d", args[0], strings.TrimSpace(res.Output()), res.ExitCode)
	}
	return nil
}
