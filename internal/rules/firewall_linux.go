//go:build linux

package rules

import (
	"fmt"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
)

func familyName(f nftables.TableFamily) string {
	switch f {
	case nftables.TableFamilyINet:
		return "inet"
	case nftables.TableFamilyIPv4:
		return "ip"
	case nftables.TableFamilyIPv6:
		return "ip6"
	default:
		return fmt.Sprintf("family-%d", f)
	}
}

// listInputChains reads the loaded nftables ruleset. iptables-nft rules are
// visible here too.
func listInputChains() ([]inputChain, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("nftables: %w", err)
	}
	chains, err := conn.ListChains()
	if err != nil {
		return nil, fmt.Errorf("nftables: list chains: %w", err)
	}

	var out []inputChain
	for _, c := range chains {
		if c.Type != nftables.ChainTypeFilter || c.Hooknum == nil || *c.Hooknum != *nftables.ChainHookInput {
			continue
		}
		ic := inputChain{Family: familyName(c.Table.Family), Table: c.Table.Name, Name: c.Name}
		if c.Policy != nil && *c.Policy == nftables.ChainPolicyDrop {
			ic.Blocking = true
		} else {
			rules, err := conn.GetRules(c.Table, c)
			if err != nil {
				return nil, fmt.Errorf("nftables: rules of %s: %w", c.Name, err)
			}
			ic.Blocking = hasBlockingVerdict(rules)
		}
		out = append(out, ic)
	}
	return out, nil
}

func hasBlockingVerdict(rules []*nftables.Rule) bool {
	for _, r := range rules {
		for _, e := range r.Exprs {
			switch v := e.(type) {
			case *expr.Verdict:
				if v.Kind == expr.VerdictDrop {
					return true
				}
			case *expr.Reject:
				return true
			}
		}
	}
	return false
}
