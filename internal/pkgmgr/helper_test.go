package pkgmgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/csd-dev-tools/stonix/internal/cmdexec/cmdexectest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func existsIn(paths ...string) func(string) bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

func notRunning(context.Context, string) (bool, error) { return false, nil }

func newTestHelper(t *testing.T, r *cmdexectest.Runner, opts Options) *Helper {
	t.Helper()
	if opts.Running == nil {
		opts.Running = notRunning
	}
	h, err := New(r, testLogger(), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestNew_Selection(t *testing.T) {
	tests := []struct {
		name   string
		osType string
		paths  []string
		want   string
	}{
		{name: "ubuntu", osType: "Ubuntu", paths: []string{"/usr/bin/apt-get"}, want: AptGet},
		{name: "rhel", osType: "Red Hat Enterprise Linux", paths: []string{"/usr/bin/yum", "/usr/bin/dnf"}, want: Yum},
		{name: "fedora", osType: "Fedora", paths: []string{"/usr/bin/yum", "/usr/bin/dnf"}, want: Dnf},
		{name: "opensuse", osType: "openSUSE Leap", paths: []string{"/usr/bin/zypper"}, want: Zypper},
		{name: "gentoo", osType: "Gentoo", paths: []string{"/usr/bin/emerge"}, want: Portage},
		{name: "freebsd", osType: "FreeBSD", paths: []string{"/usr/sbin/pkg"}, want: Pkg},
		{name: "solaris", osType: "Solaris", paths: []string{"/usr/sbin/pkgadd"}, want: PkgAdd},
		{name: "unknown os probes dnf before yum", osType: "Rocky Linux", paths: []string{"/usr/bin/yum", "/usr/bin/dnf"}, want: Dnf},
		{name: "mapped binary missing falls back", osType: "CentOS", paths: []string{"/usr/bin/dnf"}, want: Dnf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHelper(t, cmdexectest.New(), Options{OSType: tt.osType, Exists: existsIn(tt.paths...)})
			if got := h.ManagerName(); got != tt.want {
				t.Errorf("ManagerName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_NoPackageManager(t *testing.T) {
	_, err := New(cmdexectest.New(), testLogger(), Options{OSType: "Ubuntu", Exists: existsIn()})
	if !errors.Is(err, ErrNoPackageManager) {
		t.Fatalf("New() error = %v, want ErrNoPackageManager", err)
	}
}

func TestInstall_RequiresRoot(t *testing.T) {
	r := cmdexectest.New()
	h := newTestHelper(t, r, Options{OSType: "Ubuntu", Exists: existsIn("/usr/bin/apt-get")})
	if _, err := h.Install(context.Background(), "acct"); !errors.Is(err, ErrNotRoot) {
		t.Fatalf("Install() error = %v, want ErrNotRoot", err)
	}
	if _, err := h.Remove(context.Background(), "acct"); !errors.Is(err, ErrNotRoot) {
		t.Fatalf("Remove() error = %v, want ErrNotRoot", err)
	}
	if len(r.Calls()) != 0 {
		t.Fatalf("commands run without root: %v", r.Calls())
	}
}

func TestAptGet_InstallAndCheck(t *testing.T) {
	r := cmdexectest.New().
		OnOutput("apt-get -y --assume-yes install acct", 0, "").
		OnOutput("dpkg -l acct", 0, "Desired=Unknown\n||/ Name Version\nii  acct 6.6.4 amd64 GNU Accounting\n").
		OnOutput("dpkg -l acc", 0, "ii  acct 6.6.4 amd64 GNU Accounting\n")
	h := newTestHelper(t, r, Options{OSType: "Debian GNU/Linux", Root: true, Exists: existsIn("/usr/bin/apt-get")})
	ctx := context.Background()

	ok, err := h.Install(ctx, "acct")
	if err != nil || !ok {
		t.Fatalf("Install() = %v, %v", ok, err)
	}
	if !h.Check(ctx, "acct") {
		t.Error("Check(acct) = false")
	}
	if h.Check(ctx, "acc") {
		t.Error("Check(acc) = true for a prefix")
	}
}

func TestAptGet_CheckUpdate(t *testing.T) {
	r := cmdexectest.New().OnOutput("apt-get -s -u upgrade", 0,
		"Reading package lists...\nInst openssl [3.0.2] (3.0.13 Ubuntu:22.04/jammy-updates)\nConf openssl\n")
	h := newTestHelper(t, r, Options{OSType: "Ubuntu", Exists: existsIn("/usr/bin/apt-get")})
	ctx := context.Background()
	if !h.CheckUpdate(ctx, "") {
		t.Error("CheckUpdate(\"\") = false")
	}
	if !h.CheckUpdate(ctx, "openssl") {
		t.Error("CheckUpdate(openssl) = false")
	}
	if h.CheckUpdate(ctx, "bash") {
		t.Error("CheckUpdate(bash) = true")
	}
}

func TestYum_CheckUpdateExitCode(t *testing.T) {
	r := cmdexectest.New().
		OnOutput("yum check-update -q kernel", 100, "kernel.x86_64 4.18.0 baseos\n").
		OnOutput("yum check-update -q bash", 0, "")
	h := newTestHelper(t, r, Options{OSType: "CentOS Linux", Exists: existsIn("/usr/bin/yum")})
	if !h.CheckUpdate(context.Background(), "kernel") {
		t.Error("CheckUpdate(kernel) = false")
	}
	if h.CheckUpdate(context.Background(), "bash") {
		t.Error("CheckUpdate(bash) = true")
	}
}

func TestInvalidPackageName(t *testing.T) {
	r := cmdexectest.New()
	h := newTestHelper(t, r, Options{OSType: "Ubuntu", Root: true, Exists: existsIn("/usr/bin/apt-get")})
	ctx := context.Background()
	for _, name := range []string{"", "-y", "a b", "x;rm"} {
		if h.Check(ctx, name) {
			t.Errorf("Check(%q) = true", name)
		}
		if _, err := h.Install(ctx, name); err == nil {
			t.Errorf("Install(%q) error = nil", name)
		}
	}
	if len(r.Calls()) != 0 {
		t.Fatalf("commands run for invalid names: %v", r.Calls())
	}
}

func TestLockWait(t *testing.T) {
	tests := []struct {
		name     string
		busyFor  int
		retries  int
		wantOK   bool
		wantRuns int
	}{
		{name: "free", busyFor: 0, retries: 3, wantOK: true, wantRuns: 1},
		{name: "freed after two polls", busyFor: 2, retries: 3, wantOK: true, wantRuns: 1},
		{name: "never freed", busyFor: 10, retries: 3, wantOK: false, wantRuns: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polls := 0
			running := func(_ context.Context, name string) (bool, error) {
				if name != "yum" {
					t.Errorf("polled process %q, want yum", name)
				}
				polls++
				return polls <= tt.busyFor, nil
			}
			r := cmdexectest.New().OnOutput("yum install -y acct", 0, "")
			h := newTestHelper(t, r, Options{
				OSType:       "Red Hat Enterprise Linux",
				Root:         true,
				Exists:       existsIn("/usr/bin/yum"),
				Running:      running,
				LockRetries:  tt.retries,
				LockInterval: time.Millisecond,
			})
			ok, err := h.Install(context.Background(), "acct")
			if err != nil {
				t.Fatalf("Install() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("Install() = %v, want %v", ok, tt.wantOK)
			}
			if got := len(r.Calls()); got != tt.wantRuns {
				t.Errorf("commands run = %d, want %d", got, tt.wantRuns)
			}
		})
	}
}
