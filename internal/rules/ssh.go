package rules

import (
	"context"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/kveditor"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(8, "SecureSSH", func(d rule.Deps) rule.Rule { return NewSecureSSH(d) })
}

const sshdConfig = "/etc/ssh/sshd_config"

var sshdSettings = map[string]string{
	"SyslogFacility":                  "AUTHPRIV",
	"PermitRootLogin":                 "no",
	"MaxAuthTries":                    "5",
	"HostbasedAuthentication":         "no",
	"IgnoreRhosts":                    "yes",
	"PermitEmptyPasswords":            "no",
	"ChallengeResponseAuthentication": "no",
	"UsePAM":                          "yes",
	"Ciphers":                         "aes128-ctr,aes192-ctr,aes256-ctr",
	"PermitUserEnvironment":           "no",
}

// SecureSSH hardens the OpenSSH server configuration.
type SecureSSH struct {
	rule.Base
}

// NewSecureSSH returns the rule.
func NewSecureSSH(d rule.Deps) *SecureSSH {
	r := &SecureSSH{Base: rule.NewBase(rule.Info{
		Number:       8,
		Name:         "SecureSSH",
		Help:         "Configures the ssh daemon with secure authentication settings and reloads it.",
		Guidance:     []string{"CIS, NSA 3.5.2.1", "CCE 4325-7", "CCE 4726-6"},
		Mandatory:    true,
		RootRequired: true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux", "freebsd", "darwin"}},
	}, d)}
	r.AddEnableItem("SECURESSH", "To disable this rule set the value of SECURESSH to False.")
	return r
}

func (r *SecureSSH) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *SecureSSH) Fix(ctx context.Context) bool    { return r.RunFix(ctx, r.fix) }

func (r *SecureSSH) editor() (*kveditor.Editor, error) {
	return newEditor(&r.Base, kveditor.Options{
		Path:    r.Path(sshdConfig),
		Dialect: kveditor.Space,
		Data:    kveditor.Single(sshdSettings),
	})
}

func (r *SecureSSH) report(context.Context) (bool, error) {
	path := r.Path(sshdConfig)
	if !exists(path) {
		r.Detailf("%s not found; the ssh server is not installed", path)
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
			r.Detailf("%s: %s", path, line)
		}
	}
	return ok, nil
}

func (r *SecureSSH) fix(ctx context.Context) (bool, error) {
	if !exists(r.Path(sshdConfig)) {
		return true, nil
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
	if err := applyEditor(&r.Base, ed); err != nil {
		return false, err
	}

	sm, err := r.Services()
	if err != nil {
		r.Detailf("settings written but sshd was not reloaded: %v", err)
		return true, nil
	}
	for _, svc := range []string{"sshd", "ssh"} {
		if sm.IsRunning(ctx, svc) {
			if !sm.ReloadService(ctx, svc) {
				r.Detailf("failed to reload %s", svc)
				return false, nil
			}
			break
		}
	}
	return true, nil
}

// describeDrift renders an editor's drift for the details, or nothing on error.
func describeDrift(ed *kveditor.Editor) []string {
	patch, err := ed.Drift()
	if err != nil {
		return nil
	}
	return kveditor.DescribeDrift(patch)
}
