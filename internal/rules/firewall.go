package rules

import (
	"context"
	"fmt"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(92, "ConfigureLinuxFirewall", func(d rule.Deps) rule.Rule { return NewConfigureLinuxFirewall(d) })
}

// inputChain summarizes a filter chain hooked on input.
type inputChain struct {
	Family string
	Table  string
	Name   string
	// Blocking is set when the chain drops by policy or holds a drop or
	// reject verdict.
	Blocking bool
}

// firewallFrontends are the firewall services tried by the fix, in order.
// Each is enabled only when its package is installed.
var firewallFrontends = []struct {
	pkg, service string
	argv         []string
	undo         []string
}{
	{pkg: "firewalld", service: "firewalld"},
	{pkg: "ufw", service: "ufw", argv: []string{"ufw", "--force", "enable"}, undo: []string{"ufw", "disable"}},
	{pkg: "nftables", service: "nftables"},
}

// ConfigureLinuxFirewall checks that the kernel packet filter has an input
// chain that blocks unsolicited traffic and, when it does not, enables an
// installed firewall service.
type ConfigureLinuxFirewall struct {
	rule.Base
	chains func() ([]inputChain, error)
}

// NewConfigureLinuxFirewall returns the rule.
func NewConfigureLinuxFirewall(d rule.Deps) *ConfigureLinuxFirewall {
	r := &ConfigureLinuxFirewall{
		Base: rule.NewBase(rule.Info{
			Number:       92,
			Name:         "ConfigureLinuxFirewall",
			Help:         "Ensures a host firewall filters inbound traffic by enabling firewalld, ufw or nftables.",
			Guidance:     []string{"NIST 800-53 SC-7(5)", "CCE-RHEL7-CCE-TBD 4.7"},
			Mandatory:    true,
			RootRequired: true,
			Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux"}},
		}, d),
		chains: listInputChains,
	}
	r.AddEnableItem("CONFIGURELINUXFIREWALL", "To prevent the firewall from being enabled, set the value of CONFIGURELINUXFIREWALL to False.")
	return r
}

func (r *ConfigureLinuxFirewall) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *ConfigureLinuxFirewall) Fix(ctx context.Context) bool    { return r.RunFix(ctx, r.fix) }

func (r *ConfigureLinuxFirewall) report(context.Context) (bool, error) {
	chains, err := r.chains()
	if err != nil {
		return false, fmt.Errorf("read ruleset: %w", err)
	}
	if len(chains) == 0 {
		r.Detailf("no input filter chain is loaded")
		return false, nil
	}
	for _, c := range chains {
		if c.Blocking {
			return true, nil
		}
	}
	for _, c := range chains {
		r.Detailf("input chain %s %s/%s accepts all traffic", c.Family, c.Table, c.Name)
	}
	return false, nil
}

func (r *ConfigureLinuxFirewall) fix(ctx context.Context) (bool, error) {
	if ok, err := r.report(ctx); err != nil || ok {
		return ok, err
	}
	pm, err := r.Packages()
	if err != nil {
		return false, err
	}
	sm, err := r.Services()
	if err != nil {
		return false, err
	}

	for _, fw := range firewallFrontends {
		if !pm.Check(ctx, fw.pkg) {
			continue
		}
		if !sm.AuditService(ctx, fw.service) {
			if !sm.EnableService(ctx, fw.service) {
				r.Detailf("failed to enable %s", fw.service)
				return false, nil
			}
			if err := r.Record(ledger.Service{Name: fw.service, StartState: ledger.StateDisabled, EndState: ledger.StateEnabled}); err != nil {
				return false, err
			}
			r.Detailf("enabled %s", fw.service)
		}
		if len(fw.argv) > 0 {
			if _, ok := run(ctx, &r.Base, fw.argv[0], fw.argv[1:]...); !ok {
				r.Detailf("%v failed", fw.argv)
				return false, nil
			}
			if err := r.Record(ledger.Command{Argv: fw.undo}); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	r.Detailf("no supported firewall package is installed (tried firewalld, ufw, nftables)")
	return false, nil
}
