package rules

import (
	"context"
	"maps"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/kveditor"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(15, "SecureIPV4", func(d rule.Deps) rule.Rule { return NewSecureIPV4(d) })
}

const sysctlConf = "/etc/sysctl.conf"

// Kernel parameters safe on every host.
var networkTuning1 = map[string]string{
	"net.ipv4.conf.all.secure_redirects":        "0",
	"net.ipv4.conf.all.accept_redirects":        "0",
	"net.ipv4.conf.all.rp_filter":               "1",
	"net.ipv4.conf.all.log_martians":            "1",
	"net.ipv4.conf.all.accept_source_route":     "0",
	"net.ipv4.conf.default.accept_redirects":    "0",
	"net.ipv4.conf.default.secure_redirects":    "0",
	"net.ipv4.conf.default.rp_filter":           "1",
	"net.ipv4.conf.default.accept_source_route": "0",
	"net.ipv4.tcp_syncookies":                   "1",
	"net.ipv4.icmp_echo_ignore_broadcasts":      "1",
	"net.ipv4.tcp_max_syn_backlog":              "4096",
}

// Kernel parameters that break routers and bridges.
var networkTuning2 = map[string]string{
	"net.ipv4.conf.default.send_redirects": "0",
	"net.ipv4.conf.all.send_redirects":     "0",
	"net.ipv4.ip_forward":                  "0",
}

// SecureIPV4 sets IPv4 kernel parameters in sysctl.conf and loads them.
type SecureIPV4 struct {
	rule.Base
	tuning1 *ci.Item
	tuning2 *ci.Item
}

// NewSecureIPV4 returns the rule.
func NewSecureIPV4(d rule.Deps) *SecureIPV4 {
	r := &SecureIPV4{Base: rule.NewBase(rule.Info{
		Number:       15,
		Name:         "SecureIPV4",
		Help:         "Configures IPv4 network parameters for routing, redirects and source routing in /etc/sysctl.conf.",
		Guidance:     []string{"NSA 2.5.1.1", "CCE-4155-8", "CCE-4151-7", "CCE-3561-8"},
		Mandatory:    true,
		RootRequired: true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux"}},
	}, d)}
	r.tuning1 = r.AddItem(ci.Config{
		Key:          "NETWORKTUNING1",
		Datatype:     ci.Bool,
		Default:      true,
		Simple:       true,
		Instructions: "Network parameter tuning that is safe for all systems. Set this to False to leave these parameters alone.",
	})
	r.tuning2 = r.AddItem(ci.Config{
		Key:          "NETWORKTUNING2",
		Datatype:     ci.Bool,
		Default:      true,
		Simple:       true,
		Instructions: "Additional network parameters. Set this to False if you are running a router or a bridge.",
	})
	return r
}

func (r *SecureIPV4) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *SecureIPV4) Fix(ctx context.Context) bool    { return r.RunFix(ctx, r.fix) }

func (r *SecureIPV4) desired() map[string]string {
	want := make(map[string]string)
	if r.tuning1.Bool() {
		maps.Copy(want, networkTuning1)
	}
	if r.tuning2.Bool() {
		maps.Copy(want, networkTuning2)
	}
	return want
}

func (r *SecureIPV4) editor() (*kveditor.Editor, error) {
	return newEditor(&r.Base, kveditor.Options{
		Path:    r.Path(sysctlConf),
		Dialect: kveditor.OpenEq,
		Data:    kveditor.Single(r.desired()),
	})
}

func (r *SecureIPV4) report(context.Context) (bool, error) {
	if len(r.desired()) == 0 {
		r.Detailf("all network tuning is disabled")
		return true, nil
	}
	ed, err := r.editor()
	if err != nil {
		return false, err
	}
	ok, err := ed.Report()
	if err != nil {
		return false, err
	}
	if !ok {
		for _, line := range describeDrift(ed) {
			r.Detailf("%s: %s", ed.Path(), line)
		}
	}
	return ok, nil
}

func (r *SecureIPV4) fix(ctx context.Context) (bool, error) {
	if !r.tuning1.Bool() && !r.tuning2.Bool() {
		return true, nil
	}
	path := r.Path(sysctlConf)
	if !exists(path) {
		if err := createFile(&r.Base, path, nil, 0o644); err != nil {
			return false, err
		}
	}
	ed, err := r.editor()
	if err != nil {
		return false, err
	}
	compliant, err := ed.Report()
	if err != nil {
		return false, err
	}
	if compliant {
		return true, nil
	}

	// Reloading after the file is reverted restores the previous values.
	reload := []string{"sysctl", "-p", path}
	if err := r.Record(ledger.Command{Argv: reload}); err != nil {
		return false, err
	}
	if err := applyEditor(&r.Base, ed); err != nil {
		return false, err
	}
	if _, ok := run(ctx, &r.Base, reload[0], reload[1:]...); !ok {
		r.Detailf("settings written but %s could not be loaded", path)
		return false, nil
	}
	return true, nil
}
