package rules

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/csd-dev-tools/stonix/internal/cmdexec/cmdexectest"
	"github.com/csd-dev-tools/stonix/internal/environ"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockServices tracks enabled and running services.
type mockServices struct {
	enabled  map[string]bool
	running  map[string]bool
	reloaded []string
}

func newMockServices() *mockServices {
	return &mockServices{enabled: map[string]bool{}, running: map[string]bool{}}
}

func (m *mockServices) EnableService(_ context.Context, svc string) bool {
	m.enabled[svc] = true
	m.running[svc] = true
	return true
}

func (m *mockServices) DisableService(_ context.Context, svc string) bool {
	delete(m.enabled, svc)
	delete(m.running, svc)
	return true
}

func (m *mockServices) AuditService(_ context.Context, svc string) bool { return m.enabled[svc] }
func (m *mockServices) IsRunning(_ context.Context, svc string) bool    { return m.running[svc] }

func (m *mockServices) ReloadService(_ context.Context, svc string) bool {
	m.reloaded = append(m.reloaded, svc)
	return true
}

// mockPackages tracks installed packages.
type mockPackages struct {
	installed map[string]bool
	available map[string]bool
}

func newMockPackages() *mockPackages {
	return &mockPackages{installed: map[string]bool{}, available: map[string]bool{}}
}

func (m *mockPackages) Install(_ context.Context, pkg string) (bool, error) {
	if !m.available[pkg] {
		return false, nil
	}
	m.installed[pkg] = true
	return true, nil
}

func (m *mockPackages) Remove(_ context.Context, pkg string) (bool, error) {
	delete(m.installed, pkg)
	return true, nil
}

func (m *mockPackages) Check(_ context.Context, pkg string) bool          { return m.installed[pkg] }
func (m *mockPackages) CheckAvailable(_ context.Context, pkg string) bool { return m.available[pkg] }

// testEnv bundles a temporary host root with the collaborators a rule needs.
type testEnv struct {
	root     string
	runner   *cmdexectest.Runner
	services *mockServices
	packages *mockPackages
	ledger   *ledger.Ledger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l, err := ledger.Open(ledger.Config{DataDir: t.TempDir(), AllowUnprivileged: true}, testLogger())
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return &testEnv{
		root:     t.TempDir(),
		runner:   cmdexectest.New(),
		services: newMockServices(),
		packages: newMockPackages(),
		ledger:   l,
	}
}

func (e *testEnv) deps() rule.Deps {
	return rule.Deps{
		Logger:   testLogger(),
		Facts:    environ.Facts{Family: "linux", OSType: "Ubuntu", Platform: "ubuntu", EUID: 0},
		Ledger:   e.ledger,
		Runner:   e.runner,
		Services: func() (rule.ServiceManager, error) { return e.services, nil },
		Packages: func() (rule.PackageManager, error) { return e.packages, nil },
		Root:     e.root,
	}
}

// path returns p inside the test root.
func (e *testEnv) path(p string) string {
	return filepath.Join(e.root, p)
}

func (e *testEnv) write(t *testing.T, p, data string) {
	t.Helper()
	full := e.path(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) read(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(e.path(p))
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(data)
}
