package rules

import (
	"context"
	"strconv"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/kveditor"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(89, "DisablePrelinking", func(d rule.Deps) rule.Rule { return NewDisablePrelinking(d) })
}

const (
	prelinkBinary = "/usr/sbin/prelink"
	prelinkCache  = "/etc/prelink.cache"
)

// DisablePrelinking turns off periodic prelinking and removes the prelink
// cache, since prelinked binaries defeat address space randomization and
// binary integrity checks.
type DisablePrelinking struct {
	rule.Base
	editor *kveditor.Editor
}

// NewDisablePrelinking returns the rule.
func NewDisablePrelinking(d rule.Deps) *DisablePrelinking {
	r := &DisablePrelinking{Base: rule.NewBase(rule.Info{
		Number:       89,
		Name:         "DisablePrelinking",
		Help:         "Disables prelinking of executables and removes the prelink cache.",
		Guidance:     []string{"CCE-RHEL7-CCE-TBA 2.1.3.1.2"},
		Mandatory:    true,
		RootRequired: true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux"}},
	}, d)}
	r.AddEnableItem("DISABLEPRELINKING", "To prevent prelinking from being disabled, set the value of DISABLEPRELINKING to False.")
	return r
}

func (r *DisablePrelinking) configPath() string {
	osType := strings.ToLower(r.Deps().Facts.OSType)
	if strings.Contains(osType, "debian") || strings.Contains(osType, "ubuntu") {
		return r.Path("/etc/default/prelink")
	}
	return r.Path("/etc/sysconfig/prelink")
}

func (r *DisablePrelinking) Report(ctx context.Context) bool {
	return r.RunReport(ctx, r.report)
}

func (r *DisablePrelinking) Fix(ctx context.Context) bool {
	return r.RunFix(ctx, r.fix)
}

func (r *DisablePrelinking) report(ctx context.Context) (bool, error) {
	path := r.configPath()
	ed, err := newEditor(&r.Base, kveditor.Options{
		Path:    path,
		Dialect: kveditor.ClosedEq,
		Data:    kveditor.Single(map[string]string{"PRELINKING": "no"}),
	})
	if err != nil {
		return false, err
	}
	r.editor = ed

	compliant := true
	if !exists(path) {
		compliant = false
		r.Detailf("%s does not exist", path)
	} else if ok, err := ed.Report(); err != nil {
		return false, err
	} else if !ok {
		compliant = false
		r.Detailf("%s does not have the correct settings", path)
	}

	if exists(r.Path(prelinkBinary)) {
		out, ok := run(ctx, &r.Base, "prelink", "-p")
		if fields := strings.Fields(out); ok && len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err != nil {
				r.Detailf("unexpected output from prelink -p; this does not affect compliance")
			} else if n > 0 {
				compliant = false
				r.Detailf("there are currently %d prelinked binaries", n)
			}
		}
	}
	return compliant, nil
}

func (r *DisablePrelinking) fix(ctx context.Context) (bool, error) {
	if r.editor == nil {
		if _, err := r.report(ctx); err != nil {
			return false, err
		}
	}
	path := r.editor.Path()
	if !exists(path) {
		if err := createFile(&r.Base, path, nil, 0o644); err != nil {
			return false, err
		}
	}
	if err := applyEditor(&r.Base, r.editor); err != nil {
		return false, err
	}

	cache := r.Path(prelinkCache)
	if exists(cache) {
		if err := deleteFile(&r.Base, cache); err != nil {
			return false, err
		}
	}
	return true, nil
}
