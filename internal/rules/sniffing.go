package rules

import (
	"context"
	"fmt"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(13, "AuditNetworkSniffing", func(d rule.Deps) rule.Rule { return NewAuditNetworkSniffing(d) })
}

// netInterface is the part of a network link the sniffing audit looks at.
type netInterface struct {
	Name        string
	Promiscuous bool
}

// AuditNetworkSniffing reports network interfaces in promiscuous mode. It
// never changes anything: a sniffer may be legitimate and only an operator
// can tell.
type AuditNetworkSniffing struct {
	rule.Base
	interfaces func() ([]netInterface, error)
}

// NewAuditNetworkSniffing returns the rule.
func NewAuditNetworkSniffing(d rule.Deps) *AuditNetworkSniffing {
	return &AuditNetworkSniffing{
		Base: rule.NewBase(rule.Info{
			Number:    13,
			Name:      "AuditNetworkSniffing",
			Help:      "Reports network interfaces running in promiscuous mode, which indicates a packet sniffer.",
			Guidance:  []string{"NSA 2.5.7"},
			AuditOnly: true,
			Applies:   applicability.Spec{Type: applicability.White, Family: []string{"linux"}},
		}, d),
		interfaces: listInterfaces,
	}
}

func (r *AuditNetworkSniffing) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *AuditNetworkSniffing) Fix(ctx context.Context) bool    { return r.RunFix(ctx, nil) }

func (r *AuditNetworkSniffing) report(context.Context) (bool, error) {
	ifaces, err := r.interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	compliant := true
	for _, ifc := range ifaces {
		if ifc.Promiscuous {
			compliant = false
			r.Detailf("interface %s is in promiscuous mode", ifc.Name)
		}
	}
	return compliant, nil
}
