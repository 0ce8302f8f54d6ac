package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// Svcadm drives the Solaris service management facility.
type Svcadm struct {
	cmd commander
}

// NewSvcadm returns an SMF backend.
func NewSvcadm(runner cmdexec.Runner, logger *slog.Logger) *Svcadm {
	return &Svcadm{cmd: newCommander(runner, logger, "svcadm")}
}

func (s *Svcadm) Name() string { return "svcadm" }

func (s *Svcadm) Enable(ctx context.Context, svc string) bool {
	return s.cmd.ok(ctx, "svcadm", "enable", svc)
}

func (s *Svcadm) Disable(ctx context.Context, svc string) bool {
	return s.cmd.ok(ctx, "svcadm", "disable", svc)
}

func (s *Svcadm) Audit(ctx context.Context, svc string) bool {
	res, ok := s.cmd.run(ctx, "svcprop", "-p", "general/enabled", svc)
	return ok && firstLine(res.Stdout) == "true"
}

func (s *Svcadm) IsRunning(ctx context.Context, svc string) bool {
	res, ok := s.cmd.run(ctx, "svcs", "-H", "-o", "state", svc)
	if !ok {
		return false
	}
	switch firstLine(res.Stdout) {
	case "online", "legacy_run":
		return true
	}
	return false
}

func (s *Svcadm) Reload(ctx context.Context, svc string) bool {
	if !s.cmd.ok(ctx, "svcadm", "refresh", svc) {
		return false
	}
	return s.IsRunning(ctx, svc)
}

func (s *Svcadm) List(ctx context.Context) ([]string, error) {
	res, ok := s.cmd.run(ctx, "svcs", "-a", "-H", "-o", "fmri")
	if !ok {
		return nil, fmt.Errorf("service: svcs -a: exit status %d", res.ExitCode)
	}
	return strings.Fields(res.Stdout), nil
}
