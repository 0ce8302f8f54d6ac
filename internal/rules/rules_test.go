package rules

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func TestRegisteredRules(t *testing.T) {
	want := map[int]string{
		8:  "SecureSSH",
		13: "AuditNetworkSniffing",
		15: "SecureIPV4",
		42: "SecureATCRON",
		54: "EnableKernelAuditing",
		62: "AuditSSHKeys",
		78: "SecureJournald",
		89: "DisablePrelinking",
		92: "ConfigureLinuxFirewall",
		97: "ConfigureProcessAccounting",
	}
	names := rule.Default().Names()
	for num, name := range want {
		if names[num] != name {
			t.Errorf("rule %d = %q, want %q", num, names[num], name)
		}
	}
}

func TestDisablePrelinking_FixAndUndo(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "/etc/default/prelink", "# prelink\nPRELINKING=yes\nPRELINK_OPTS=-mR\n")
	env.write(t, prelinkCache, "cache")
	ctx := context.Background()

	r := NewDisablePrelinking(env.deps())
	if r.Report(ctx) {
		t.Fatal("Report() = true before fix")
	}
	if !r.Fix(ctx) {
		t.Fatalf("Fix() = false: %v", r.State().Details)
	}
	if !r.Report(ctx) {
		t.Fatalf("Report() after fix = false: %v", r.State().Details)
	}
	if got := env.read(t, "/etc/default/prelink"); !strings.Contains(got, "PRELINKING=no") || !strings.Contains(got, "PRELINK_OPTS=-mR") {
		t.Errorf("config = %q", got)
	}
	if _, err := os.Stat(env.path(prelinkCache)); !os.IsNotExist(err) {
		t.Errorf("prelink cache still present: %v", err)
	}

	if !r.Undo(ctx) {
		t.Fatalf("Undo() = false: %v", r.State().Details)
	}
	if got := env.read(t, "/etc/default/prelink"); got != "# prelink\nPRELINKING=yes\nPRELINK_OPTS=-mR\n" {
		t.Errorf("config after undo = %q", got)
	}
	if got := env.read(t, prelinkCache); got != "cache" {
		t.Errorf("cache after undo = %q", got)
	}
	events, err := env.ledger.FindRuleChanges(89)
	if err != nil || len(events) != 0 {
		t.Errorf("events after undo = %v, %v", events, err)
	}
}

func TestDisablePrelinking_PathByDistribution(t *testing.T) {
	env := newTestEnv(t)
	deps := env.deps()
	deps.Facts.OSType = "Red Hat Enterprise Linux"
	r := NewDisablePrelinking(deps)
	if got, want := r.configPath(), env.path("/etc/sysconfig/prelink"); got != want {
		t.Errorf("configPath() = %q, want %q", got, want)
	}
}

func TestDisablePrelinking_PrelinkedBinaries(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "/etc/default/prelink", "PRELINKING=no\n")
	env.write(t, prelinkBinary, "")
	env.runner.OnOutput("prelink -p", 0, "12 objects, 0 conflicts\n")

	r := NewDisablePrelinking(env.deps())
	if r.Report(context.Background()) {
		t.Fatal("Report() = true with prelinked binaries")
	}
	if d := strings.Join(r.State().Details, "\n"); !strings.Contains(d, "12 prelinked") {
		t.Errorf("details = %q", d)
	}
}

func TestConfigureProcessAccounting_EmptyPackageList(t *testing.T) {
	env := newTestEnv(t)
	r := NewConfigureProcessAccounting(env.deps())
	if err := r.packages.UpdateCurrValue("", true); err != nil {
		t.Fatal(err)
	}
	if r.Report(context.Background()) {
		t.Fatal("Report() = true with no packages configured")
	}
	if r.Fix(context.Background()) {
		t.Fatal("Fix() = true with no packages configured")
	}
}

func TestConfigureProcessAccounting_FixAndUndo(t *testing.T) {
	env := newTestEnv(t)
	env.packages.available["acct"] = true
	ctx := context.Background()

	r := NewConfigureProcessAccounting(env.deps())
	if r.Report(ctx) {
		t.Fatal("Report() = true before fix")
	}
	if !r.Fix(ctx) {
		t.Fatalf("Fix() = false: %v", r.State().Details)
	}
	if !env.packages.installed["acct"] || !env.services.enabled["acct"] {
		t.Fatalf("installed = %v, enabled = %v", env.packages.installed, env.services.enabled)
	}
	if !r.Report(ctx) {
		t.Fatalf("Report() after fix = false: %v", r.State().Details)
	}

	events, err := env.ledger.FindRuleChanges(97)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Kind() != ledger.KindPackage || events[1].Kind() != ledger.KindService {
		t.Fatalf("events = %+v", events)
	}

	if !r.Undo(ctx) {
		t.Fatalf("Undo() = false: %v", r.State().Details)
	}
	if env.packages.installed["acct"] || env.services.enabled["acct"] {
		t.Errorf("after undo installed = %v, enabled = %v", env.packages.installed, env.services.enabled)
	}
}

func TestConfigureProcessAccounting_NothingAvailable(t *testing.T) {
	env := newTestEnv(t)
	r := NewConfigureProcessAccounting(env.deps())
	if r.Fix(context.Background()) {
		t.Fatal("Fix() = true with no installable package")
	}
}

func TestSecureSSH(t *testing.T) {
	t.Run("missing config is compliant", func(t *testing.T) {
		env := newTestEnv(t)
		if !NewSecureSSH(env.deps()).Report(context.Background()) {
			t.Fatal("Report() = false without sshd_config")
		}
	})

	t.Run("fix reloads running daemon", func(t *testing.T) {
		env := newTestEnv(t)
		env.write(t, sshdConfig, "# sshd\nPermitRootLogin yes\nX11Forwarding yes\n")
		env.services.running["sshd"] = true
		ctx := context.Background()

		r := NewSecureSSH(env.deps())
		if r.Report(ctx) {
			t.Fatal("Report() = true before fix")
		}
		if !r.Fix(ctx) {
			t.Fatalf("Fix() = false: %v", r.State().Details)
		}
		if details := strings.Join(r.State().Details, "\n"); !strings.Contains(details, "set ") || !strings.Contains(details, "PermitRootLogin") {
			t.Errorf("fix details do not name the changed keys: %q", details)
		}
		got := env.read(t, sshdConfig)
		for _, want := range []string{"PermitRootLogin no", "X11Forwarding yes", "MaxAuthTries 5"} {
			if !strings.Contains(got, want) {
				t.Errorf("sshd_config missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "PermitRootLogin yes") {
			t.Errorf("old value kept:\n%s", got)
		}
		if len(env.services.reloaded) != 1 || env.services.reloaded[0] != "sshd" {
			t.Errorf("reloaded = %v", env.services.reloaded)
		}
		if !r.Report(ctx) {
			t.Errorf("Report() after fix = false: %v", r.State().Details)
		}
	})
}

func TestSecureIPV4_FixRecordsReload(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, sysctlConf, "kernel.sysrq = 0\nnet.ipv4.ip_forward = 1\n")
	env.runner.OnOutput("sysctl -p", 0, "")
	ctx := context.Background()

	r := NewSecureIPV4(env.deps())
	if r.Report(ctx) {
		t.Fatal("Report() = true before fix")
	}
	if !r.Fix(ctx) {
		t.Fatalf("Fix() = false: %v", r.State().Details)
	}
	if !env.runner.Called("sysctl -p " + env.path(sysctlConf)) {
		t.Errorf("calls = %v", env.runner.Calls())
	}
	got := env.read(t, sysctlConf)
	if !strings.Contains(got, "net.ipv4.ip_forward = 0") || !strings.Contains(got, "kernel.sysrq = 0") {
		t.Errorf("sysctl.conf =\n%s", got)
	}

	events, err := env.ledger.FindRuleChanges(15)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Kind() != ledger.KindCommand || events[1].Kind() != ledger.KindConf {
		t.Fatalf("events = %+v", events)
	}
}

func TestSecureIPV4_TuningDisabled(t *testing.T) {
	env := newTestEnv(t)
	r := NewSecureIPV4(env.deps())
	_ = r.tuning1.UpdateCurrValue(false, false)
	_ = r.tuning2.UpdateCurrValue(false, false)
	if !r.Report(context.Background()) {
		t.Fatal("Report() = false with all tuning disabled")
	}
}

func TestSecureIPV4_RouterKeepsForwarding(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, sysctlConf, "net.ipv4.ip_forward = 1\n")
	r := NewSecureIPV4(env.deps())
	_ = r.tuning2.UpdateCurrValue(false, false)
	if _, ok := r.desired()["net.ipv4.ip_forward"]; ok {
		t.Fatal("ip_forward desired with NETWORKTUNING2 off")
	}
}

func TestSecureJournald_CreatesConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := NewSecureJournald(env.deps())
	if r.Report(ctx) {
		t.Fatal("Report() = true without journald.conf")
	}
	if !r.Fix(ctx) {
		t.Fatalf("Fix() = false: %v", r.State().Details)
	}
	got := env.read(t, journaldConf)
	for _, want := range []string{"[Journal]", "Storage=persistent", "Compress=yes", "ForwardToSyslog=yes"} {
		if !strings.Contains(got, want) {
			t.Errorf("journald.conf missing %q:\n%s", want, got)
		}
	}
	if len(env.services.reloaded) != 1 || env.services.reloaded[0] != journaldService {
		t.Errorf("reloaded = %v", env.services.reloaded)
	}

	if !r.Undo(ctx) {
		t.Fatalf("Undo() = false: %v", r.State().Details)
	}
	if _, err := os.Stat(env.path(journaldConf)); !os.IsNotExist(err) {
		t.Errorf("journald.conf not removed by undo: %v", err)
	}
}

func TestSecureATCRON_FixAndUndo(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "/etc/cron.deny", "guest\n")
	env.write(t, "/etc/crontab", "# crontab\n")
	if err := os.Chmod(env.path("/etc/crontab"), 0o666); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	r := NewSecureATCRON(env.deps())
	r.uid, r.gid = os.Getuid(), os.Getgid()

	if r.Report(ctx) {
		t.Fatal("Report() = true before fix")
	}
	if !r.Fix(ctx) {
		t.Fatalf("Fix() = false: %v", r.State().Details)
	}
	if !r.Report(ctx) {
		t.Fatalf("Report() after fix = false: %v", r.State().Details)
	}
	if got := env.read(t, cronAllow); got != "root\n" {
		t.Errorf("cron.allow = %q", got)
	}
	if info, err := os.Stat(env.path("/etc/crontab")); err != nil || info.Mode().Perm() != 0o644 {
		t.Errorf("crontab mode = %v, %v", info.Mode(), err)
	}

	if !r.Undo(ctx) {
		t.Fatalf("Undo() = false: %v", r.State().Details)
	}
	if got := env.read(t, "/etc/cron.deny"); got != "guest\n" {
		t.Errorf("cron.deny after undo = %q", got)
	}
	if _, err := os.Stat(env.path(cronAllow)); !os.IsNotExist(err) {
		t.Errorf("cron.allow survived undo: %v", err)
	}
	if info, err := os.Stat(env.path("/etc/crontab")); err != nil || info.Mode().Perm() != 0o666 {
		t.Errorf("crontab mode after undo = %v, %v", info.Mode(), err)
	}
}

func writeKey(t *testing.T, env *testEnv, p string, passphrase []byte) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == nil {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", passphrase)
	}
	if err != nil {
		t.Fatal(err)
	}
	env.write(t, p, string(pem.EncodeToMemory(block)))
	if err := os.Chmod(env.path(p), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAuditSSHKeys(t *testing.T) {
	tests := []struct {
		name       string
		passphrase []byte
		mode       os.FileMode
		want       bool
	}{
		{"encrypted key", []byte("secret"), 0o600, true},
		{"unencrypted key", nil, 0o600, false},
		{"encrypted but readable", []byte("secret"), 0o644, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			writeKey(t, env, "/home/alice/.ssh/id_ed25519", tt.passphrase)
			if err := os.Chmod(env.path("/home/alice/.ssh/id_ed25519"), tt.mode); err != nil {
				t.Fatal(err)
			}
			env.write(t, "/home/alice/.ssh/id_ed25519.pub", "ssh-ed25519 AAAA test")
			env.write(t, "/home/alice/.ssh/known_hosts", "host ssh-ed25519 AAAA")

			r := NewAuditSSHKeys(env.deps())
			if got := r.Report(context.Background()); got != tt.want {
				t.Errorf("Report() = %v, want %v: %v", got, tt.want, r.State().Details)
			}
		})
	}
}

func TestAuditSSHKeys_FixSkipped(t *testing.T) {
	env := newTestEnv(t)
	r := NewAuditSSHKeys(env.deps())
	if !r.Fix(context.Background()) || !r.State().Skipped {
		t.Fatalf("Fix() state = %+v", r.State())
	}
}

func TestAuditNetworkSniffing(t *testing.T) {
	tests := []struct {
		name   string
		ifaces []netInterface
		err    error
		want   bool
	}{
		{"clean", []netInterface{{Name: "lo"}, {Name: "eth0"}}, nil, true},
		{"promiscuous", []netInterface{{Name: "lo"}, {Name: "eth0", Promiscuous: true}}, nil, false},
		{"list error", nil, errors.New("netlink: permission denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			r := NewAuditNetworkSniffing(env.deps())
			r.interfaces = func() ([]netInterface, error) { return tt.ifaces, tt.err }
			if got := r.Report(context.Background()); got != tt.want {
				t.Errorf("Report() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigureLinuxFirewall_Report(t *testing.T) {
	tests := []struct {
		name   string
		chains []inputChain
		want   bool
	}{
		{"no chains", nil, false},
		{"accept all", []inputChain{{Family: "inet", Table: "filter", Name: "input"}}, false},
		{"drop policy", []inputChain{{Family: "inet", Table: "filter", Name: "input"}, {Family: "inet", Table: "firewalld", Name: "filter_INPUT", Blocking: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			r := NewConfigureLinuxFirewall(env.deps())
			r.chains = func() ([]inputChain, error) { return tt.chains, nil }
			if got := r.Report(context.Background()); got != tt.want {
				t.Errorf("Report() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigureLinuxFirewall_FixEnablesUFW(t *testing.T) {
	env := newTestEnv(t)
	env.packages.installed["ufw"] = true
	env.runner.OnOutput("ufw --force enable", 0, "Firewall is active\n")
	env.runner.OnOutput("ufw disable", 0, "")
	ctx := context.Background()

	r := NewConfigureLinuxFirewall(env.deps())
	r.chains = func() ([]inputChain, error) { return nil, nil }
	if !r.Fix(ctx) {
		t.Fatalf("Fix() = false: %v", r.State().Details)
	}
	if !env.services.enabled["ufw"] || !env.runner.Called("ufw --force enable") {
		t.Fatalf("enabled = %v, calls = %v", env.services.enabled, env.runner.Calls())
	}

	if !r.Undo(ctx) {
		t.Fatalf("Undo() = false: %v", r.State().Details)
	}
	if env.services.enabled["ufw"] || !env.runner.Called("ufw disable") {
		t.Errorf("after undo enabled = %v, calls = %v", env.services.enabled, env.runner.Calls())
	}
}

func TestConfigureLinuxFirewall_NoFrontend(t *testing.T) {
	env := newTestEnv(t)
	r := NewConfigureLinuxFirewall(env.deps())
	r.chains = func() ([]inputChain, error) { return nil, nil }
	if r.Fix(context.Background()) {
		t.Fatal("Fix() = true without a firewall package")
	}
}
