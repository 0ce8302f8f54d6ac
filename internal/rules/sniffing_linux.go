//go:build linux

package rules

import "github.com/vishvananda/netlink"

func listInterfaces() ([]netInterface, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}
	out := make([]netInterface, 0, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		out = append(out, netInterface{Name: attrs.Name, Promiscuous: attrs.Promisc != 0})
	}
	return out, nil
}
