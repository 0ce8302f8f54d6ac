package rules

import (
	"context"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(97, "ConfigureProcessAccounting", func(d rule.Deps) rule.Rule { return NewConfigureProcessAccounting(d) })
}

// ConfigureProcessAccounting installs and enables process accounting. The
// package names double as service names.
type ConfigureProcessAccounting struct {
	rule.Base
	packages *ci.Item
}

// NewConfigureProcessAccounting returns the rule.
func NewConfigureProcessAccounting(d rule.Deps) *ConfigureProcessAccounting {
	r := &ConfigureProcessAccounting{Base: rule.NewBase(rule.Info{
		Number:       97,
		Name:         "ConfigureProcessAccounting",
		Help:         "Installs the process accounting package and enables its service.",
		Guidance:     []string{"CCE-RHEL7-CCE-TBD 3.2.15"},
		Mandatory:    true,
		RootRequired: true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux"}},
	}, d)}
	r.AddEnableItem("CONFIGUREPROCESSACCOUNTING", "To disable this rule, set the value of CONFIGUREPROCESSACCOUNTING to False.")
	r.packages = r.AddItem(ci.Config{
		Key:          "ACCOUNTINGPACKAGES",
		Datatype:     ci.List,
		Default:      []string{"psacct", "acct"},
		Instructions: "Space separated names of the process accounting packages and services to look for.",
	})
	return r
}

func (r *ConfigureProcessAccounting) Report(ctx context.Context) bool {
	return r.RunReport(ctx, r.report)
}

func (r *ConfigureProcessAccounting) Fix(ctx context.Context) bool {
	return r.RunFix(ctx, r.fix)
}

func (r *ConfigureProcessAccounting) report(ctx context.Context) (bool, error) {
	pkgs := r.packages.List()
	if len(pkgs) == 0 {
		r.Detailf("no process accounting packages configured")
		return false, nil
	}
	pm, err := r.Packages()
	if err != nil {
		return false, err
	}
	sm, err := r.Services()
	if err != nil {
		return false, err
	}

	compliant := true
	if !anyOf(pkgs, func(p string) bool { return pm.Check(ctx, p) }) {
		compliant = false
		r.Detailf("system accounting package is not installed")
	}
	if !anyOf(pkgs, func(p string) bool { return sm.AuditService(ctx, p) }) {
		compliant = false
		r.Detailf("system accounting service is not enabled")
	}
	return compliant, nil
}

func (r *ConfigureProcessAccounting) fix(ctx context.Context) (bool, error) {
	pkgs := r.packages.List()
	if len(pkgs) == 0 {
		r.Detailf("no process accounting packages configured")
		return false, nil
	}
	pm, err := r.Packages()
	if err != nil {
		return false, err
	}
	sm, err := r.Services()
	if err != nil {
		return false, err
	}

	if !anyOf(pkgs, func(p string) bool { return pm.Check(ctx, p) }) {
		installed := false
		for _, p := range pkgs {
			if !pm.CheckAvailable(ctx, p) {
				continue
			}
			ok, err := pm.Install(ctx, p)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			if err := r.Record(ledger.Package{Name: p, StartState: ledger.StateRemoved, EndState: ledger.StateInstalled}); err != nil {
				return false, err
			}
			r.Detailf("installed %s", p)
			installed = true
			break
		}
		if !installed {
			r.Detailf("failed to install system accounting package")
			return false, nil
		}
	}

	enabled := false
	for _, p := range pkgs {
		if !pm.Check(ctx, p) {
			continue
		}
		if sm.AuditService(ctx, p) {
			enabled = true
			continue
		}
		if !sm.EnableService(ctx, p) {
			r.Detailf("failed to enable service %s", p)
			continue
		}
		if err := r.Record(ledger.Service{Name: p, StartState: ledger.StateDisabled, EndState: ledger.StateEnabled}); err != nil {
			return false, err
		}
		r.Detailf("enabled service %s", p)
		enabled = true
	}
	if !enabled {
		r.Detailf("system accounting service could not be enabled")
	}
	return enabled, nil
}

func anyOf(items []string, pred func(string) bool) bool {
	for _, it := range items {
		if pred(it) {
			return true
		}
	}
	return false
}
