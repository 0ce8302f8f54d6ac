package rules

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/elastic/go-libaudit/v2/rule"
	"github.com/elastic/go-libaudit/v2/rule/flags"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/fsutil"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	stonixrule "github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	stonixrule.Register(54, "EnableKernelAuditing", func(d stonixrule.Deps) stonixrule.Rule { return NewEnableKernelAuditing(d) })
}

const (
	auditRulesDir  = "/etc/audit/rules.d"
	auditRulesFile = "/etc/audit/audit.rules"
	auditdService  = "auditd"
)

// auditRules are the audit rules every host must load.
var auditRules = []string{
	"-w /etc/localtime -p wa -k time-change",
	"-w /etc/group -p wa -k identity",
	"-w /etc/passwd -p wa -k identity",
	"-w /etc/gshadow -p wa -k identity",
	"-w /etc/shadow -p wa -k identity",
	"-w /etc/security/opasswd -p wa -k identity",
	"-w /etc/issue -p wa -k audit_rules_networkconfig_modification",
	"-w /etc/issue.net -p wa -k audit_rules_networkconfig_modification",
	"-w /etc/hosts -p wa -k audit_rules_networkconfig_modification",
	"-w /var/log/faillog -p wa -k logins",
	"-w /var/log/lastlog -p wa -k logins",
	"-w /var/run/utmp -p wa -k session",
	"-w /var/log/btmp -p wa -k session",
	"-w /var/log/wtmp -p wa -k session",
	"-w /etc/sudoers -p wa -k actions",
	"-w /sbin/insmod -p x -k modules",
	"-w /sbin/rmmod -p x -k modules",
	"-w /sbin/modprobe -p x -k modules",
	"-a always,exit -F arch=b64 -S chmod -S fchmod -S fchmodat -S chown -S fchown -S fchownat -S lchown -S setxattr -S lsetxattr -S fsetxattr -S removexattr -S lremovexattr -S fremovexattr -F auid>=1000 -F auid!=4294967295 -k perm_mod",
	"-a always,exit -F arch=b64 -S creat -S open -S openat -S truncate -S ftruncate -F exit=-EACCES -F auid>=1000 -F auid!=4294967295 -k access",
	"-a always,exit -F arch=b64 -S creat -S open -S openat -S truncate -S ftruncate -F exit=-EPERM -F auid>=1000 -F auid!=4294967295 -k access",
	"-a always,exit -F arch=b64 -S mount -F auid>=1000 -F auid!=4294967295 -k export",
	"-a always,exit -F arch=b64 -S rmdir -S unlink -S unlinkat -S rename -S renameat -F auid>=1000 -F auid!=4294967295 -k delete",
	"-a always,exit -F arch=b64 -S init_module -S delete_module -k modules",
	"-a always,exit -F arch=b64 -S settimeofday -S adjtimex -S clock_settime -k audit_time_rules",
	"-a always,exit -F arch=b64 -S sethostname -S setdomainname -k audit_rules_networkconfig_modification",
}

// controlPrefixes start auditctl control lines, which are not rules.
var controlPrefixes = []string{"-D", "-b ", "-f ", "-e ", "-r ", "-i", "--backlog_wait_time", "--loginuid-immutable"}

const invalidMarker = "# stonix: invalid audit rule: "

// EnableKernelAuditing installs a baseline of kernel audit rules and makes
// sure auditd runs. Rules are compared by their kernel wire format, so
// equivalent rules written differently are recognised.
type EnableKernelAuditing struct {
	stonixrule.Base
}

// NewEnableKernelAuditing returns the rule.
func NewEnableKernelAuditing(d stonixrule.Deps) *EnableKernelAuditing {
	r := &EnableKernelAuditing{Base: stonixrule.NewBase(stonixrule.Info{
		Number:       54,
		Name:         "EnableKernelAuditing",
		Help:         "Adds baseline kernel audit rules for identity, time, session, permission and module changes and enables auditd.",
		Guidance:     []string{"NSA 2.6.2", "CCE-RHEL7-CCE-TBD 3.2.1"},
		Mandatory:    true,
		RootRequired: true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux"}},
	}, d)}
	r.AddEnableItem("ENABLEKERNELAUDITING", "To disable this rule set the value of ENABLEKERNELAUDITING to False.")
	return r
}

func (r *EnableKernelAuditing) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *EnableKernelAuditing) Fix(ctx context.Context) bool    { return r.RunFix(ctx, r.fix) }

func (r *EnableKernelAuditing) rulesPath() string {
	if info, err := os.Stat(r.Path(auditRulesDir)); err == nil && info.IsDir() {
		return r.Path(auditRulesDir + "/audit.rules")
	}
	return r.Path(auditRulesFile)
}

// wireKey returns the kernel representation of an audit rule line.
func wireKey(line string) (string, error) {
	parsed, err := flags.Parse(line)
	if err != nil {
		return "", err
	}
	wf, err := rule.Build(parsed)
	if err != nil {
		return "", err
	}
	return string(wf), nil
}

func isControlLine(line string) bool {
	for _, p := range controlPrefixes {
		if line == strings.TrimSpace(p) || strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// rulesState is the parsed contents of a rules file.
type rulesState struct {
	lines   []string
	invalid map[int]error
	missing []string
}

func (r *EnableKernelAuditing) inspect(path string) (rulesState, error) {
	st := rulesState{invalid: make(map[int]error)}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return st, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > 0 {
		st.lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	have := make(map[string]bool)
	for i, raw := range st.lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || isControlLine(line) {
			continue
		}
		key, err := wireKey(line)
		if err != nil {
			st.invalid[i] = err
			continue
		}
		have[key] = true
	}
	for _, want := range auditRules {
		key, err := wireKey(want)
		if err != nil {
			return st, fmt.Errorf("baseline rule %q: %w", want, err)
		}
		if !have[key] {
			st.missing = append(st.missing, want)
		}
	}
	return st, nil
}

func (r *EnableKernelAuditing) report(ctx context.Context) (bool, error) {
	path := r.rulesPath()
	st, err := r.inspect(path)
	if err != nil {
		return false, err
	}
	compliant := true
	for i, err := range st.invalid {
		compliant = false
		r.Detailf("%s line %d is not a valid audit rule: %v", path, i+1, err)
	}
	if len(st.missing) > 0 {
		compliant = false
		r.Detailf("%s is missing %d audit rule(s)", path, len(st.missing))
		for _, m := range st.missing {
			r.Logger().Debug("missing audit rule", "rule", m)
		}
	}

	sm, err := r.Services()
	if err != nil {
		return false, err
	}
	if !sm.AuditService(ctx, auditdService) {
		compliant = false
		r.Detailf("%s is not enabled", auditdService)
	}
	return compliant, nil
}

func (r *EnableKernelAuditing) fix(ctx context.Context) (bool, error) {
	path := r.rulesPath()
	st, err := r.inspect(path)
	if err != nil {
		return false, err
	}
	if len(st.missing) > 0 || len(st.invalid) > 0 {
		if err := r.writeRules(path, st); err != nil {
			return false, err
		}
	}

	sm, err := r.Services()
	if err != nil {
		return false, err
	}
	if !sm.AuditService(ctx, auditdService) {
		if !sm.EnableService(ctx, auditdService) {
			r.Detailf("failed to enable %s", auditdService)
			return false, nil
		}
		if err := r.Record(ledger.Service{Name: auditdService, StartState: ledger.StateDisabled, EndState: ledger.StateEnabled}); err != nil {
			return false, err
		}
		r.Detailf("enabled %s", auditdService)
	} else if !sm.ReloadService(ctx, auditdService) {
		r.Detailf("rules written but %s could not be reloaded", auditdService)
	}
	return true, nil
}

// writeRules comments out invalid lines and appends the missing rules.
func (r *EnableKernelAuditing) writeRules(path string, st rulesState) error {
	lines := append([]string(nil), st.lines...)
	for i := range st.invalid {
		lines[i] = invalidMarker + lines[i]
	}
	lines = append(lines, st.missing...)
	data := []byte(strings.Join(lines, "\n") + "\n")

	if !exists(path) {
		if err := createFile(&r.Base, path, data, 0o600); err != nil {
			return err
		}
		return nil
	}

	perm := os.FileMode(0o600)
	if o, err := fsutil.Stat(path); err == nil {
		perm = o.Mode.Perm()
	}
	tmp := path + ".stonixtmp"
	if err := fsutil.WriteTemp(tmp, data, perm); err != nil {
		return err
	}
	id, err := r.NextEventID()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := r.Deps().Ledger.RecordFileChange(path, tmp, id); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := fsutil.ReplaceFile(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	r.Detailf("added %d audit rule(s) to %s", len(st.missing), path)
	return nil
}
