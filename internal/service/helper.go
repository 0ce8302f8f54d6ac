package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

// ErrNoServiceManager is returned when no known service manager marker exists.
var ErrNoServiceManager = errors.New("service: no supported service manager found")

// marker ties the filesystem evidence of a service manager to its backend.
type marker struct {
	name  string
	paths []string
	// all requires every path to exist instead of any of them.
	all bool
}

// markers are listed in primary preference order.
var markers = []marker{
	{name: "launchctl", paths: []string{"/sbin/launchd"}},
	{name: "systemctl", paths: []string{"/bin/systemctl", "/usr/bin/systemctl"}},
	{name: "chkconfig", paths: []string{"/sbin/chkconfig"}},
	{name: "rc-update", paths: []string{"/sbin/rc-update"}},
	{name: "update-rc.d", paths: []string{"/usr/sbin/update-rc.d"}},
	{name: "svcadm", paths: []string{"/usr/sbin/svcadm"}},
	{name: "rc.conf", paths: []string{"/etc/rc.conf", "/etc/rc.d/LOGIN"}, all: true},
}

// Options tunes service manager detection.
type Options struct {
	// Exists reports whether a marker path exists. Default: fsutil.Exists.
	Exists func(path string) bool
	// Root prefixes every filesystem path a backend inspects or edits.
	Root string
}

// Helper dispatches service operations to the detected backend and, on
// hybrid hosts with more than one manager, to a secondary backend.
type Helper struct {
	primary   Backend
	secondary Backend
	logger    *slog.Logger
	sync      func()
}

// New probes the host for service managers.
func New(runner cmdexec.Runner, logger *slog.Logger, opts Options) (*Helper, error) {
	if opts.Exists == nil {
		opts.Exists = fsutil.Exists
	}

	var found []Backend
	for _, m := range markers {
		if !m.present(opts) {
			continue
		}
		found = append(found, newBackend(m.name, runner, logger, opts.Root))
	}
	if len(found) == 0 {
		return nil, ErrNoServiceManager
	}

	h := NewWithBackends(found[0], nil, logger)
	if len(found) > 1 {
		h.secondary = found[1]
	}
	h.logger.Debug("service manager detected",
		"primary", h.primary.Name(),
		"hybrid", h.IsHybrid(),
	)
	return h, nil
}

// NewWithBackends builds a Helper from explicit backends. secondary may be nil.
func NewWithBackends(primary, secondary Backend, logger *slog.Logger) *Helper {
	return &Helper{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With("component", "service"),
		sync:      unix.Sync,
	}
}

func (m marker) present(opts Options) bool {
	for _, p := range m.paths {
		ok := opts.Exists(opts.Root + p)
		if m.all && !ok {
			return false
		}
		if !m.all && ok {
			return true
		}
	}
	return m.all
}

func newBackend(name string, runner cmdexec.Runner, logger *slog.Logger, root string) Backend {
	switch name {
	case "launchctl":
		return NewLaunchctl(runner, logger)
	case "systemctl":
		return NewSystemctl(runner, logger)
	case "chkconfig":
		return NewChkconfig(runner, logger)
	case "rc-update":
		return NewRCUpdate(runner, logger)
	case "update-rc.d":
		return NewUpdateRCD(runner, logger, root)
	case "svcadm":
		return NewSvcadm(runner, logger)
	default:
		return NewRCConf(runner, logger, root+"/etc/rc.conf")
	}
}

// Primary returns the preferred backend.
func (h *Helper) Primary() Backend { return h.primary }

// IsHybrid reports whether a secondary backend is in use.
func (h *Helper) IsHybrid() bool { return h.secondary != nil }

// EnableService enables svc and verifies it audits as enabled afterwards.
func (h *Helper) EnableService(ctx context.Context, svc string) bool {
	if !validName(svc) {
		h.logger.Debug("invalid service name", "service", svc)
		return false
	}
	ok := h.primary.Enable(ctx, svc)
	if h.secondary != nil {
		ok = h.secondary.Enable(ctx, svc) || ok
	}
	h.sync()
	if !ok || !h.AuditService(ctx, svc) {
		h.logger.Warn("service enable failed", "service", svc)
		return false
	}
	h.logger.Info("service enabled", "service", svc)
	return true
}

// DisableService disables svc and verifies it no longer audits as enabled.
func (h *Helper) DisableService(ctx context.Context, svc string) bool {
	if !validName(svc) {
		h.logger.Debug("invalid service name", "service", svc)
		return false
	}
	ok := h.primary.Disable(ctx, svc)
	if h.secondary != nil {
		ok = h.secondary.Disable(ctx, svc) || ok
	}
	h.sync()
	if !ok || h.AuditService(ctx, svc) {
		h.logger.Warn("service disable failed", "service", svc)
		return false
	}
	h.logger.Info("service disabled", "service", svc)
	return true
}

// AuditService returns true if svc is enabled at boot by any backend.
func (h *Helper) AuditService(ctx context.Context, svc string) bool {
	if !validName(svc) {
		return false
	}
	if h.primary.Audit(ctx, svc) {
		return true
	}
	return h.secondary != nil && h.secondary.Audit(ctx, svc)
}

// IsRunning returns true if svc runs under any backend.
func (h *Helper) IsRunning(ctx context.Context, svc string) bool {
	if !validName(svc) {
		return false
	}
	if h.primary.IsRunning(ctx, svc) {
		return true
	}
	return h.secondary != nil && h.secondary.IsRunning(ctx, svc)
}

// ReloadService reloads svc through the backend that knows it.
func (h *Helper) ReloadService(ctx context.Context, svc string) bool {
	if !validName(svc) {
		return false
	}
	if h.primary.Reload(ctx, svc) {
		return true
	}
	return h.secondary != nil && h.secondary.Reload(ctx, svc)
}

// ListServices returns the union of services known to the backends.
func (h *Helper) ListServices(ctx context.Context) ([]string, error) {
	list, err := h.primary.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list %s: %w", h.primary.Name(), err)
	}
	if h.secondary == nil {
		return list, nil
	}
	more, err := h.secondary.List(ctx)
	if err != nil {
		h.logger.Debug("secondary list failed", "backend", h.secondary.Name(), "error", err)
		return list, nil
	}
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s] = true
	}
	for _, s := range more {
		if !seen[s] {
			list = append(list, s)
			seen[s] = true
		}
	}
	return list, nil
}

func validName(svc string) bool {
	return svc != "" && !strings.ContainsAny(svc, " \t\n/;&|$`")
}
