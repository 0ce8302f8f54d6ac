package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type mockSystemdController struct {
	available       bool
	daemonReloadErr error
	enableErr       error
	disableErr      error

	daemonReloadCalls int
	enableCalls       []string
	disableCalls      []string
}

func (m *mockSystemdController) IsAvailable() bool { return m.available }

func (m *mockSystemdController) DaemonReload(context.Context) error {
	m.daemonReloadCalls++
	return m.daemonReloadErr
}

func (m *mockSystemdController) EnableNow(_ context.Context, unit string) error {
	m.enableCalls = append(m.enableCalls, unit)
	return m.enableErr
}

func (m *mockSystemdController) DisableNow(_ context.Context, unit string) error {
	m.disableCalls = append(m.disableCalls, unit)
	return m.disableErr
}

type mockRootChecker struct {
	isRoot bool
}

func (m *mockRootChecker) IsRoot() bool { return m.isRoot }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestInstaller places the binary and unit directory under t.TempDir().
func newTestInstaller(t *testing.T, systemd *mockSystemdController, root *mockRootChecker) (*Installer, Config) {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := Config{
		BinaryPath: filepath.Join(tmpDir, "usr", "local", "bin", "stonix"),
		ConfigPath: filepath.Join(tmpDir, "etc", "stonix", "config.yaml"),
		UnitDir:    filepath.Join(tmpDir, "etc", "systemd", "system"),
	}
	if err := os.MkdirAll(filepath.Dir(cfg.BinaryPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.BinaryPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyDefaults()
	return NewInstaller(cfg, systemd, root, testLogger()), cfg
}

func TestInstall_RejectsNonRoot(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: false})

	err := ins.Install(context.Background())
	if err == nil || !strings.Contains(err.Error(), "root privileges") {
		t.Fatalf("Install() error = %v, want root privileges error", err)
	}
	if _, err := os.Stat(cfg.UnitDir); !os.IsNotExist(err) {
		t.Errorf("unit directory created without root: %v", err)
	}
}

func TestInstall_RejectsNoSystemd(t *testing.T) {
	ins, _ := newTestInstaller(t, &mockSystemdController{}, &mockRootChecker{isRoot: true})
	err := ins.Install(context.Background())
	if err == nil || !strings.Contains(err.Error(), "systemd") {
		t.Fatalf("Install() error = %v, want systemd error", err)
	}
}

func TestInstall_MissingBinary(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})
	if err := os.Remove(cfg.BinaryPath); err != nil {
		t.Fatal(err)
	}
	if err := ins.Install(context.Background()); err == nil {
		t.Fatal("Install() = nil without a binary")
	}
}

func TestInstall_WritesUnitsAndEnablesTimer(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})

	if err := ins.Install(context.Background()); err != nil {
		t.Fatalf("Install() = %v", err)
	}

	svc, err := os.ReadFile(filepath.Join(cfg.UnitDir, "stonix-report.service"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(svc), "ExecStart="+cfg.BinaryPath+" report --config "+cfg.ConfigPath) {
		t.Errorf("service unit:\n%s", svc)
	}
	timer, err := os.ReadFile(filepath.Join(cfg.UnitDir, "stonix-report.timer"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(timer), "OnCalendar=daily") {
		t.Errorf("timer unit:\n%s", timer)
	}

	if systemd.daemonReloadCalls != 1 {
		t.Errorf("DaemonReload() called %d times, want 1", systemd.daemonReloadCalls)
	}
	if len(systemd.enableCalls) != 1 || systemd.enableCalls[0] != "stonix-report.timer" {
		t.Errorf("EnableNow() calls = %v", systemd.enableCalls)
	}
}

func TestInstall_EnableError(t *testing.T) {
	systemd := &mockSystemdController{available: true, enableErr: errors.New("unit masked")}
	ins, _ := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})
	err := ins.Install(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unit masked") {
		t.Fatalf("Install() error = %v", err)
	}
}

func TestUninstall(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, cfg := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})
	ctx := context.Background()

	if err := ins.Install(ctx); err != nil {
		t.Fatalf("Install() = %v", err)
	}
	systemd.disableErr = errors.New("not loaded")
	if err := ins.Uninstall(ctx); err != nil {
		t.Fatalf("Uninstall() = %v", err)
	}
	for _, name := range []string{"stonix-report.service", "stonix-report.timer"} {
		if _, err := os.Stat(filepath.Join(cfg.UnitDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still present: %v", name, err)
		}
	}
	if len(systemd.disableCalls) != 1 || systemd.daemonReloadCalls != 2 {
		t.Errorf("disable = %v, reloads = %d", systemd.disableCalls, systemd.daemonReloadCalls)
	}
}

func TestUninstall_NotInstalled(t *testing.T) {
	systemd := &mockSystemdController{available: true}
	ins, _ := newTestInstaller(t, systemd, &mockRootChecker{isRoot: true})
	if err := ins.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall() = %v", err)
	}
	if systemd.daemonReloadCalls != 0 || len(systemd.disableCalls) != 0 {
		t.Error("systemctl called for an absent timer")
	}
}

func TestUninstall_RejectsNonRoot(t *testing.T) {
	ins, _ := newTestInstaller(t, &mockSystemdController{available: true}, &mockRootChecker{})
	if err := ins.Uninstall(context.Background()); err == nil {
		t.Fatal("Uninstall() = nil for non-root")
	}
}
