package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
)

const launchDaemonsDir = "/Library/LaunchDaemons"

// Launchctl drives launchd system daemons addressed by label.
type Launchctl struct {
	cmd commander
}

// NewLaunchctl returns a launchd backend.
func NewLaunchctl(runner cmdexec.Runner, logger *slog.Logger) *Launchctl {
	return &Launchctl{cmd: newCommander(runner, logger, "launchctl")}
}

func (l *Launchctl) Name() string { return "launchctl" }

func (l *Launchctl) Enable(ctx context.Context, label string) bool {
	if !l.cmd.ok(ctx, "launchctl", "enable", "system/"+label) {
		return false
	}
	if !l.loaded(ctx, label) {
		l.cmd.ok(ctx, "launchctl", "bootstrap", "system", launchDaemonsDir+"/"+label+".plist")
	}
	return true
}

func (l *Launchctl) Disable(ctx context.Context, label string) bool {
	if !l.cmd.ok(ctx, "launchctl", "disable", "system/"+label) {
		return false
	}
	if l.loaded(ctx, label) {
		l.cmd.ok(ctx, "launchctl", "bootout", "system/"+label)
	}
	return true
}

// Audit returns true when the label is loaded and not in the disabled list.
func (l *Launchctl) Audit(ctx context.Context, label string) bool {
	res, ok := l.cmd.run(ctx, "launchctl", "print-disabled", "system")
	if ok {
		for _, line := range strings.Split(res.Stdout, "\n") {
			key, val, found := strings.Cut(line, "=>")
			if !found || strings.Trim(strings.TrimSpace(key), `"`) != label {
				continue
			}
			switch strings.TrimSpace(val) {
			case "disabled", "true":
				return false
			}
		}
	}
	return l.loaded(ctx, label)
}

func (l *Launchctl) IsRunning(ctx context.Context, label string) bool {
	res, ok := l.cmd.run(ctx, "launchctl", "print", "system/"+label)
	return ok && strings.Contains(res.Stdout, "state = running")
}

func (l *Launchctl) Reload(ctx context.Context, label string) bool {
	if !l.cmd.ok(ctx, "launchctl", "kickstart", "-k", "system/"+label) {
		return false
	}
	return l.IsRunning(ctx, label)
}

func (l *Launchctl) List(ctx context.Context) ([]string, error) {
	res, ok := l.cmd.run(ctx, "launchctl", "list")
	if !ok {
		return nil, fmt.Errorf("service: launchctl list: exit status %d", res.ExitCode)
	}
	var out []string
	for i, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 3 {
			continue
		}
		out = append(out, fields[2])
	}
	return out, nil
}

func (l *Launchctl) loaded(ctx context.Context, label string) bool {
	return l.cmd.ok(ctx, "launchctl", "print", "system/"+label)
}
