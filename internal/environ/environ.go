// Package environ collects the host facts rules and collaborators base their
// decisions on.
package environ

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// FISMA categories, lowest first.
const (
	FISMALow  = "low"
	FISMAMed  = "med"
	FISMAHigh = "high"
)

// Facts describes the host. It is collected once and passed explicitly.
type Facts struct {
	// Family is the kernel family: linux, darwin, solaris or freebsd.
	Family string
	// OSType is the distribution's display name, e.g. "Red Hat Enterprise Linux".
	OSType string
	// OSVersion is the distribution version, e.g. "9.4".
	OSVersion string
	// Platform is the short distribution id, e.g. "redhat" or "ubuntu".
	Platform string
	// PlatformFamily groups related distributions, e.g. "rhel" or "debian".
	PlatformFamily string
	Hostname       string
	EUID           int
	// FISMA is the system's categorization, one of low, med or high.
	FISMA string
}

// IsRoot reports whether the process runs with an effective uid of 0.
func (f Facts) IsRoot() bool { return f.EUID == 0 }

// Map returns the facts keyed by lower-case name for expression evaluation.
func (f Facts) Map() map[string]any {
	return map[string]any{
		"family":          f.Family,
		"type":            f.OSType,
		"version":         f.OSVersion,
		"platform":        f.Platform,
		"platform_family": f.PlatformFamily,
		"hostname":        f.Hostname,
		"euid":            f.EUID,
		"fisma":           f.FISMA,
	}
}

// ValidFISMA reports whether level is a known FISMA category.
func ValidFISMA(level string) bool {
	return FISMARank(level) >= 0
}

// FISMARank orders FISMA categories; unknown levels rank -1.
func FISMARank(level string) int {
	switch level {
	case FISMALow:
		return 0
	case FISMAMed:
		return 1
	case FISMAHigh:
		return 2
	}
	return -1
}

// Collect gathers host facts. fisma is the configured system category.
func Collect(ctx context.Context, fisma string) (Facts, error) {
	if !ValidFISMA(fisma) {
		return Facts{}, fmt.Errorf("environ: invalid FISMA category %q", fisma)
	}
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Facts{}, fmt.Errorf("environ: host info: %w", err)
	}
	return fromInfo(info, os.Geteuid(), fisma), nil
}

func fromInfo(info *host.InfoStat, euid int, fisma string) Facts {
	return Facts{
		Family:         strings.ToLower(info.OS),
		OSType:         osType(info.OS, info.Platform),
		OSVersion:      info.PlatformVersion,
		Platform:       info.Platform,
		PlatformFamily: info.PlatformFamily,
		Hostname:       info.Hostname,
		EUID:           euid,
		FISMA:          fisma,
	}
}

var platformNames = map[string]string{
	"ubuntu":    "Ubuntu",
	"debian":    "Debian",
	"linuxmint": "Linux Mint",
	"redhat":    "Red Hat Enterprise Linux",
	"centos":    "CentOS",
	"rocky":     "Rocky Linux",
	"almalinux": "AlmaLinux",
	"oracle":    "Oracle Linux",
	"amazon":    "Amazon Linux",
	"fedora":    "Fedora",
	"opensuse":  "openSUSE",
	"suse":      "SUSE Linux Enterprise",
	"sles":      "SUSE Linux Enterprise",
	"gentoo":    "Gentoo",
	"darwin":    "Mac OS X",
	"solaris":   "Solaris",
	"freebsd":   "FreeBSD",
}

func osType(family, platform string) string {
	p := strings.ToLower(platform)
	if strings.HasPrefix(p, "opensuse") {
		p = "opensuse"
	}
	if name, ok := platformNames[p]; ok {
		return name
	}
	if name, ok := platformNames[strings.ToLower(family)]; ok {
		return name
	}
	if platform != "" {
		return platform
	}
	return family
}
