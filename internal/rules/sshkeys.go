package rules

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func init() {
	rule.Register(62, "AuditSSHKeys", func(d rule.Deps) rule.Rule { return NewAuditSSHKeys(d) })
}

const maxKeyFileSize = 64 << 10

// skippedSSHFiles never hold private keys.
var skippedSSHFiles = map[string]bool{
	"authorized_keys":  true,
	"authorized_keys2": true,
	"known_hosts":      true,
	"known_hosts.old":  true,
	"config":           true,
	"environment":      true,
}

// AuditSSHKeys reports private ssh keys that are stored without a
// passphrase or readable by other users.
type AuditSSHKeys struct {
	rule.Base
}

// NewAuditSSHKeys returns the rule.
func NewAuditSSHKeys(d rule.Deps) *AuditSSHKeys {
	return &AuditSSHKeys{Base: rule.NewBase(rule.Info{
		Number:       62,
		Name:         "AuditSSHKeys",
		Help:         "Reports private ssh keys in user home directories that are not protected by a passphrase or have loose permissions. Keys must be secured by their owners.",
		RootRequired: true,
		AuditOnly:    true,
		Applies:      applicability.Spec{Type: applicability.White, Family: []string{"linux", "darwin", "freebsd"}},
	}, d)}
}

func (r *AuditSSHKeys) Report(ctx context.Context) bool { return r.RunReport(ctx, r.report) }
func (r *AuditSSHKeys) Fix(ctx context.Context) bool    { return r.RunFix(ctx, nil) }

func (r *AuditSSHKeys) homes() []string {
	homes := []string{r.Path("/root"), r.Path("/var/root")}
	for _, base := range []string{"/home", "/Users", "/export/home"} {
		entries, err := os.ReadDir(r.Path(base))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				homes = append(homes, filepath.Join(r.Path(base), e.Name()))
			}
		}
	}
	return homes
}

func (r *AuditSSHKeys) report(ctx context.Context) (bool, error) {
	compliant := true
	for _, home := range r.homes() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		dir := filepath.Join(home, ".ssh")
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || skippedSSHFiles[e.Name()] || strings.HasSuffix(e.Name(), ".pub") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if !r.checkKey(path) {
				compliant = false
			}
		}
	}
	if compliant {
		r.Detailf("no unprotected private ssh keys found")
	}
	return compliant, nil
}

// checkKey returns false when path is a private key without a passphrase
// or with group or other permissions.
func (r *AuditSSHKeys) checkKey(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxKeyFileSize {
		return true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.Logger().Debug("unreadable file in .ssh", "path", path, "error", err)
		return true
	}
	if !bytes.Contains(data, []byte("PRIVATE KEY-----")) {
		return true
	}

	ok := true
	if info.Mode().Perm()&0o077 != 0 {
		ok = false
		r.Detailf("%s is accessible by other users (mode %04o)", path, info.Mode().Perm())
	}
	_, err = ssh.ParseRawPrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case err == nil:
		ok = false
		r.Detailf("%s is not protected by a passphrase", path)
	case errors.As(err, &missing):
	default:
		r.Logger().Debug("unparseable private key", "path", path, "error", err)
	}
	return ok
}
