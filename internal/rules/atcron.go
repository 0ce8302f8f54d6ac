package rules

import (
	"context"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/fsutil"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(42, "SecureATCRON", func(d rule.Deps) rule.Rule { return NewSecureATCRON(d) })
}

const (
	cronAllow = "/etc/cron.allow"
	atAllow   = "/etc/at.allow"
)

// cronModes are the required modes of cron and at files that exist.
var cronModes = map[string]fs.FileMode{
	"/etc/crontab":      0o644,
	"/etc/anacrontab":   0o600,
	"/var/spool/cron":   0o700,
	"/etc/cron.hourly":  0o700,
	"/etc/cron.daily":   0o700,
	"/etc/cron.weekly":  0o700,
	"/etc/cron.monthly": 0o700,
	"/etc/cron.d":       0o700,
	cronAllow:           0o400,
	atAllow:             0o400,
}

// denyFiles must not exist once allow files are in place.
var denyFiles = []string{"/etc/cron.deny", "/etc/at.deny"}

// SecureATCRON restricts cron and at to users listed in allow files and
// locks down the ownership and modes of their configuration.
type SecureATCRON struct {
	rule.Base
	// uid and gid own every cron and at file; root unless overridden in tests.
	uid, gid int
}

// NewSecureATCRON returns the rule.
func NewSecureATCRON(d rule.Deps) *SecureATCRON {
	r := &SecureATCRON{Base: rule.NewBase(rule.Info{
		Number:       42,
		Name:         "SecureATCRON",
		Help:         "Restricts at and cron to root through allow files and secures the ownership and modes of their files.",
		Guidance:     []string{"CIS", "NSA(3.4)", "CCE-4644-1", "CCE-4543-5"},
		Mandatory:    true,
		RootRequired: true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux", "darwin", "freebsd", "solaris"}},
	}, d)}
	r.AddEnableItem("SECUREATCRON", "To disable this rule set the value of SECUREATCRON to False.")
	return r
}

func (r *SecureATCRON) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *SecureATCRON) Fix(ctx context.Context) bool    { return r.RunFix(ctx, r.fix) }

func (r *SecureATCRON) want(mode fs.FileMode) fsutil.Ownership {
	return fsutil.Ownership{UID: r.uid, GID: r.gid, Mode: mode}
}

func (r *SecureATCRON) report(context.Context) (bool, error) {
	compliant := true
	for _, p := range []string{cronAllow, atAllow} {
		if !exists(r.Path(p)) {
			compliant = false
			r.Detailf("%s does not exist", r.Path(p))
		}
	}
	for _, p := range denyFiles {
		if exists(r.Path(p)) {
			compliant = false
			r.Detailf("%s should not exist", r.Path(p))
		}
	}
	for _, p := range sortedPaths(cronModes) {
		path := r.Path(p)
		got, err := fsutil.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return false, err
		}
		if want := r.want(cronModes[p]); got != want {
			compliant = false
			r.Detailf("%s is %s, want %s", path, got, want)
		}
	}
	return compliant, nil
}

func (r *SecureATCRON) fix(context.Context) (bool, error) {
	for _, p := range []string{cronAllow, atAllow} {
		path := r.Path(p)
		if exists(path) {
			continue
		}
		if err := createFile(&r.Base, path, []byte("root\n"), cronModes[p]); err != nil {
			return false, err
		}
	}
	for _, p := range denyFiles {
		if path := r.Path(p); exists(path) {
			if err := deleteFile(&r.Base, path); err != nil {
				return false, err
			}
		}
	}

	success := true
	for _, p := range sortedPaths(cronModes) {
		path := r.Path(p)
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			continue
		}
		if err := setOwnership(&r.Base, path, r.want(cronModes[p])); err != nil {
			success = false
			r.Detailf("could not secure %s: %v", path, err)
		}
	}
	return success, nil
}

func sortedPaths(m map[string]fs.FileMode) []string {
	return slices.Sorted(maps.Keys(m))
}
