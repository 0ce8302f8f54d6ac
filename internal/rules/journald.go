package rules

import (
	"context"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/kveditor"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(78, "SecureJournald", func(d rule.Deps) rule.Rule { return NewSecureJournald(d) })
}

const (
	journaldConf    = "/etc/systemd/journald.conf"
	journaldSection = "Journal"
	journaldService = "systemd-journald"
)

var journaldSettings = map[string]string{
	"Storage":         "persistent",
	"Compress":        "yes",
	"ForwardToSyslog": "yes",
}

// SecureJournald makes the systemd journal persistent, compressed and
// forwarded to syslog.
type SecureJournald struct {
	rule.Base
}

// NewSecureJournald returns the rule.
func NewSecureJournald(d rule.Deps) *SecureJournald {
	r := &SecureJournald{Base: rule.NewBase(rule.Info{
		Number:       78,
		Name:         "SecureJournald",
		Help:         "Configures the [Journal] section of journald.conf for persistent, compressed storage forwarded to syslog.",
		Guidance:     []string{"CIS 4.2.2.1", "CIS 4.2.2.2", "CIS 4.2.2.3"},
		RootRequired: true,
		Applies: applicability.Spec{
			Type:   applicability.White,
			Family: []string{"linux"},
			// Distributions that ship without systemd by default.
			Expr: `!(host.platform in ["alpine", "gentoo", "slackware"])`,
		},
	}, d)}
	r.AddEnableItem("SECUREJOURNALD", "To disable this rule set the value of SECUREJOURNALD to False.")
	return r
}

func (r *SecureJournald) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *SecureJournald) Fix(ctx context.Context) bool    { return r.RunFix(ctx, r.fix) }

func (r *SecureJournald) editor() (*kveditor.Editor, error) {
	return newEditor(&r.Base, kveditor.Options{
		Type:    kveditor.TagConf,
		Path:    r.Path(journaldConf),
		Dialect: kveditor.ClosedEq,
		Tags:    map[string]kveditor.Values{journaldSection: kveditor.Single(journaldSettings)},
	})
}

func (r *SecureJournald) report(context.Context) (bool, error) {
	path := r.Path(journaldConf)
	if !exists(path) {
		r.Detailf("%s does not exist", path)
		return false, nil
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

func (r *SecureJournald) fix(ctx context.Context) (bool, error) {
	path := r.Path(journaldConf)
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
	if err := applyEditor(&r.Base, ed); err != nil {
		return false, err
	}

	sm, err := r.Services()
	if err != nil {
		r.Detailf("settings written but %s was not restarted: %v", journaldService, err)
		return true, nil
	}
	if !sm.ReloadService(ctx, journaldService) {
		r.Detailf("failed to restart %s", journaldService)
		return false, nil
	}
	return true, nil
}
