package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/kveditor"
)

// RCConf drives BSD rc.d by editing <svc>_enable in rc.conf.
type RCConf struct {
	cmd    commander
	path   string
	logger *slog.Logger
}

// NewRCConf returns an rc.conf backend editing the file at path.
func NewRCConf(runner cmdexec.Runner, logger *slog.Logger, path string) *RCConf {
	c := newCommander(runner, logger, "rc.conf")
	return &RCConf{cmd: c, path: path, logger: c.logger}
}

func (r *RCConf) Name() string { return "rc.conf" }

func (r *RCConf) Enable(ctx context.Context, svc string) bool {
	if !r.setEnable(svc, "YES") {
		return false
	}
	r.cmd.ok(ctx, "service", svc, "onestart")
	return true
}

func (r *RCConf) Disable(ctx context.Context, svc string) bool {
	if !r.setEnable(svc, "NO") {
		return false
	}
	r.cmd.ok(ctx, "service", svc, "onestop")
	return true
}

func (r *RCConf) Audit(_ context.Context, svc string) bool {
	ed, err := r.editor(svc, "YES")
	if err != nil {
		return false
	}
	ok, err := ed.Report()
	return ok && err == nil
}

func (r *RCConf) IsRunning(ctx context.Context, svc string) bool {
	return r.cmd.ok(ctx, "service", svc, "onestatus")
}

func (r *RCConf) Reload(ctx context.Context, svc string) bool {
	if !r.cmd.ok(ctx, "service", svc, "onereload") && !r.cmd.ok(ctx, "service", svc, "onerestart") {
		return false
	}
	return r.IsRunning(ctx, svc)
}

func (r *RCConf) List(ctx context.Context) ([]string, error) {
	res, ok := r.cmd.run(ctx, "service", "-e")
	if !ok {
		return nil, fmt.Errorf("service: service -e: exit status %d", res.ExitCode)
	}
	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, filepath.Base(line))
		}
	}
	return out, nil
}

func (r *RCConf) editor(svc, value string) (*kveditor.Editor, error) {
	return kveditor.New(kveditor.Options{
		Path:    r.path,
		Dialect: kveditor.ClosedEq,
		Data:    kveditor.Single(map[string]string{svc + "_enable": `"` + value + `"`}),
		Logger:  r.logger,
	})
}

func (r *RCConf) setEnable(svc, value string) bool {
	ed, err := r.editor(svc, value)
	if err != nil {
		r.logger.Debug("invalid rc.conf key", "service", svc, "error", err)
		return false
	}
	if ok, err := ed.Report(); err != nil {
		r.logger.Warn("read rc.conf failed", "error", err)
		return false
	} else if ok {
		return true
	}
	if _, err := ed.Fix(); err != nil {
		r.logger.Warn("fix rc.conf failed", "error", err)
		return false
	}
	if _, err := ed.Commit(); err != nil {
		r.logger.Warn("write rc.conf failed", "error", err)
		return false
	}
	return true
}
