package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

// Chkconfig drives SysV init on Red Hat style systems.
type Chkconfig struct {
	cmd commander
}

// NewChkconfig returns a Chkconfig backend.
func NewChkconfig(runner cmdexec.Runner, logger *slog.Logger) *Chkconfig {
	return &Chkconfig{cmd: newCommander(runner, logger, "chkconfig")}
}

func (c *Chkconfig) Name() string { return "chkconfig" }

func (c *Chkconfig) Enable(ctx context.Context, svc string) bool {
	if !c.cmd.ok(ctx, "chkconfig", svc, "on") {
		return false
	}
	c.cmd.ok(ctx, "service", svc, "start")
	return true
}

func (c *Chkconfig) Disable(ctx context.Context, svc string) bool {
	if !c.cmd.ok(ctx, "chkconfig", svc, "off") {
		return false
	}
	c.cmd.ok(ctx, "service", svc, "stop")
	return true
}

func (c *Chkconfig) Audit(ctx context.Context, svc string) bool {
	res, ok := c.cmd.run(ctx, "chkconfig", "--list", svc)
	return ok && strings.Contains(res.Stdout, ":on")
}

func (c *Chkconfig) IsRunning(ctx context.Context, svc string) bool {
	return c.cmd.ok(ctx, "service", svc, "status")
}

func (c *Chkconfig) Reload(ctx context.Context, svc string) bool {
	if !c.cmd.ok(ctx, "service", svc, "reload") && !c.cmd.ok(ctx, "service", svc, "restart") {
		return false
	}
	return c.IsRunning(ctx, svc)
}

func (c *Chkconfig) List(ctx context.Context) ([]string, error) {
	res, ok := c.cmd.run(ctx, "chkconfig", "--list")
	if !ok {
		return nil, fmt.Errorf("service: chkconfig --list: exit status %d", res.ExitCode)
	}
	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.Contains(line, ":") {
			continue
		}
		out = append(out, strings.TrimSuffix(fields[0], ":"))
	}
	return out, nil
}
