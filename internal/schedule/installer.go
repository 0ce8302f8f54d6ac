package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

// Installer installs and removes the scheduled report units.
type Installer struct {
	cfg     Config
	systemd SystemdController
	root    RootChecker
	logger  *slog.Logger
}

// NewInstaller creates an Installer with defaults applied.
func NewInstaller(cfg Config, systemd SystemdController, root RootChecker, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:     cfg,
		systemd: systemd,
		root:    root,
		logger:  logger.With("component", "schedule"),
	}
}

// Install writes the service and timer units, reloads systemd and enables
// the timer. Running it again rewrites the units.
func (ins *Installer) Install(ctx context.Context) error {
	if err := ins.cfg.Validate(); err != nil {
		return err
	}
	if !ins.root.IsRoot() {
		return errors.New("schedule: install requires root privileges")
	}
	if !ins.systemd.IsAvailable() {
		return errors.New("schedule: systemd is not available")
	}
	if _, err := os.Stat(ins.cfg.BinaryPath); err != nil {
		return fmt.Errorf("schedule: stonix binary: %w", err)
	}

	if err := os.MkdirAll(ins.cfg.UnitDir, 0o755); err != nil {
		return fmt.Errorf("schedule: create unit directory: %w", err)
	}
	units := []struct {
		name    string
		content string
	}{
		{ins.cfg.ServiceUnit(), GenerateServiceUnit(ins.cfg)},
		{ins.cfg.TimerUnit(), GenerateTimerUnit(ins.cfg)},
	}
	for _, u := range units {
		if err := fsutil.WriteFileAtomic(ins.cfg.UnitDir, u.name, []byte(u.content), 0o644); err != nil {
			return fmt.Errorf("schedule: write %s: %w", u.name, err)
		}
		ins.logger.Info("unit file written", "path", filepath.Join(ins.cfg.UnitDir, u.name))
	}

	if err := ins.systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("schedule: daemon-reload: %w", err)
	}
	if err := ins.systemd.EnableNow(ctx, ins.cfg.TimerUnit()); err != nil {
		return fmt.Errorf("schedule: enable %s: %w", ins.cfg.TimerUnit(), err)
	}
	ins.logger.Info("scheduled report enabled", "timer", ins.cfg.TimerUnit(), "on_calendar", ins.cfg.OnCalendar)
	return nil
}

// Uninstall disables the timer and removes both units. It is a no-op when
// the timer is not installed.
func (ins *Installer) Uninstall(ctx context.Context) error {
	if !ins.root.IsRoot() {
		return errors.New("schedule: uninstall requires root privileges")
	}
	timerPath := filepath.Join(ins.cfg.UnitDir, ins.cfg.TimerUnit())
	if _, err := os.Stat(timerPath); errors.Is(err, os.ErrNotExist) {
		ins.logger.Info("scheduled report is not installed, nothing to do")
		return nil
	}

	if err := ins.systemd.DisableNow(ctx, ins.cfg.TimerUnit()); err != nil {
		ins.logger.Info("disable timer", "error", err)
	}
	for _, name := range []string{ins.cfg.TimerUnit(), ins.cfg.ServiceUnit()} {
		p := filepath.Join(ins.cfg.UnitDir, name)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("schedule: remove %s: %w", name, err)
		}
		ins.logger.Info("unit file removed", "path", p)
	}
	if err := ins.systemd.DaemonReload(ctx); err != nil {
		return fmt.Errorf("schedule: daemon-reload: %w", err)
	}
	return nil
}
