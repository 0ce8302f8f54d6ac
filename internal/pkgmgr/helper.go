package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

var (
	// ErrNoPackageManager is returned when no supported manager is found.
	ErrNoPackageManager = errors.New("pkgmgr: no supported package manager found")
	// ErrNotRoot is returned by mutating operations run without root.
	ErrNotRoot = errors.New("pkgmgr: root privileges required")
)

// Defaults for waiting on a busy package manager.
const (
	DefaultLockRetries  = 12
	DefaultLockInterval = 5 * time.Second
)

// Options tunes manager selection.
type Options struct {
	// OSType is the pretty OS name, e.g. "Red Hat Enterprise Linux".
	OSType string
	// Root reports whether the process runs as root.
	Root bool
	// Exists reports whether a path exists. Default: fsutil.Exists.
	Exists func(path string) bool
	// Running reports whether a process with the given name runs.
	// Default: the process table through gopsutil.
	Running func(ctx context.Context, name string) (bool, error)

	LockRetries  int
	LockInterval time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (o *Options) ApplyDefaults() {
	if o.Exists == nil {
		o.Exists = fsutil.Exists
	}
	if o.Running == nil {
		o.Running = processRunning
	}
	if o.LockRetries <= 0 {
		o.LockRetries = DefaultLockRetries
	}
	if o.LockInterval <= 0 {
		o.LockInterval = DefaultLockInterval
	}
}

// Helper dispatches package operations to the selected backend.
type Helper struct {
	backend Backend
	root    bool
	logger  *slog.Logger
}

// New selects a backend by OS type and falls back to probing binaries.
func New(runner cmdexec.Runner, logger *slog.Logger, opts Options) (*Helper, error) {
	opts.ApplyDefaults()
	logger = logger.With("component", "pkgmgr")

	m := selectManager(opts)
	if m == nil {
		return nil, ErrNoPackageManager
	}
	m.runner = runner
	m.logger = logger.With("manager", m.name)
	m.waitLock = lockWaiter(opts, m.logger)

	logger.Debug("package manager selected", "manager", m.name, "os_type", opts.OSType)
	return NewWithBackend(m, opts.Root, logger), nil
}

// NewWithBackend builds a Helper around an explicit backend.
func NewWithBackend(b Backend, root bool, logger *slog.Logger) *Helper {
	return &Helper{backend: b, root: root, logger: logger}
}

func selectManager(opts Options) *manager {
	osType := strings.ToLower(opts.OSType)
	for _, om := range osManagers {
		if !strings.Contains(osType, om.fragment) {
			continue
		}
		for _, ctor := range constructors {
			if m := ctor(); m.name == om.manager && opts.Exists(m.path) {
				return m
			}
		}
		break
	}
	for _, ctor := range constructors {
		if m := ctor(); opts.Exists(m.path) {
			return m
		}
	}
	return nil
}

// ManagerName returns the selected manager's name.
func (h *Helper) ManagerName() string { return h.backend.Name() }

// Install installs pkg.
func (h *Helper) Install(ctx context.Context, pkg string) (bool, error) {
	if err := h.mutable(ctx, pkg); err != nil {
		return false, err
	}
	return h.backend.Install(ctx, pkg), nil
}

// Remove removes pkg.
func (h *Helper) Remove(ctx context.Context, pkg string) (bool, error) {
	if err := h.mutable(ctx, pkg); err != nil {
		return false, err
	}
	return h.backend.Remove(ctx, pkg), nil
}

// Update applies pending updates to pkg, or to the system when pkg is empty.
func (h *Helper) Update(ctx context.Context, pkg string) (bool, error) {
	if !h.root {
		return false, ErrNotRoot
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("pkgmgr: update: %w", err)
	}
	if pkg != "" && !validName(pkg) {
		return false, nil
	}
	return h.backend.Update(ctx, pkg), nil
}

// Check returns true if pkg is installed.
func (h *Helper) Check(ctx context.Context, pkg string) bool {
	return validName(pkg) && h.backend.Check(ctx, pkg)
}

// CheckAvailable returns true if pkg can be installed from configured sources.
func (h *Helper) CheckAvailable(ctx context.Context, pkg string) bool {
	return validName(pkg) && h.backend.CheckAvailable(ctx, pkg)
}

// CheckUpdate returns true if updates are pending for pkg, or for the
// system when pkg is empty.
func (h *Helper) CheckUpdate(ctx context.Context, pkg string) bool {
	if pkg != "" && !validName(pkg) {
		return false
	}
	return h.backend.CheckUpdate(ctx, pkg)
}

func (h *Helper) mutable(ctx context.Context, pkg string) error {
	if !h.root {
		return ErrNotRoot
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pkgmgr: %w", err)
	}
	if !validName(pkg) {
		return fmt.Errorf("pkgmgr: invalid package name %q", pkg)
	}
	return nil
}

func validName(pkg string) bool {
	return pkg != "" && !strings.HasPrefix(pkg, "-") && !strings.ContainsAny(pkg, " \t\n;&|$`<>")
}
