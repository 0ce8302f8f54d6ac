// Package rules holds the compliance rules shipped with stonix. Each rule
// registers itself with the default rule registry.
package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/fsutil"
	"github.com/csd-dev-tools/stonix/internal/kveditor"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

// newEditor builds a kveditor that records its commits in the rule's ledger.
func newEditor(b *rule.Base, opts kveditor.Options) (*kveditor.Editor, error) {
	opts.Recorder = b.Deps().Ledger
	opts.Logger = b.Logger()
	return kveditor.New(opts)
}

// applyEditor fixes and commits a non-compliant editor under a new event id.
func applyEditor(b *rule.Base, ed *kveditor.Editor) error {
	ok, err := ed.Report()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	set, removed := editedKeys(ed.Fixables()), editedKeys(ed.Removeables())
	id, err := b.NextEventID()
	if err != nil {
		return err
	}
	ed.SetEventID(id)
	if _, err := ed.Fix(); err != nil {
		return err
	}
	if _, err := ed.Commit(); err != nil {
		return err
	}
	switch {
	case len(set) > 0 && len(removed) > 0:
		b.Detailf("updated %s: set %s, removed %s", ed.Path(), strings.Join(set, ", "), strings.Join(removed, ", "))
	case len(set) > 0:
		b.Detailf("updated %s: set %s", ed.Path(), strings.Join(set, ", "))
	case len(removed) > 0:
		b.Detailf("updated %s: removed %s", ed.Path(), strings.Join(removed, ", "))
	default:
		b.Detailf("updated %s", ed.Path())
	}
	return nil
}

// editedKeys lists the keys of an editor difference, prefixed with their
// section for tagconf files.
func editedKeys(diff map[string]kveditor.Values) []string {
	var keys []string
	for tag, vals := range diff {
		for key := range vals {
			if tag != "" {
				key = tag + "." + key
			}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// createFile creates path with data and records a creation event. It fails
// if the file already exists.
func createFile(b *rule.Base, path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return fmt.Errorf("create %s: %w", path, werr)
	}
	if err := b.Record(ledger.Creation{Path: path}); err != nil {
		os.Remove(path)
		return err
	}
	b.Detailf("created %s", path)
	return nil
}

// deleteFile archives path, records a deletion event and removes the file.
func deleteFile(b *rule.Base, path string) error {
	l := b.Deps().Ledger
	if l == nil {
		return rule.ErrNoLedger
	}
	id, err := b.NextEventID()
	if err != nil {
		return err
	}
	if err := l.RecordFileDelete(path, id); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	b.Detailf("removed %s", path)
	return nil
}

// setOwnership applies want to path and records a perm event when it differs.
func setOwnership(b *rule.Base, path string, want fsutil.Ownership) error {
	cur, err := fsutil.Stat(path)
	if err != nil {
		return err
	}
	if cur == want {
		return nil
	}
	if err := fsutil.Apply(path, want); err != nil {
		return err
	}
	if err := b.Record(ledger.Perm{Path: path, Start: cur, End: want}); err != nil {
		return err
	}
	b.Detailf("set %s to %s (was %s)", path, want, cur)
	return nil
}

// exists reports whether path exists, treating errors other than absence
// as existence so that callers do not overwrite unreadable files.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// run executes a command and returns its trimmed stdout.
func run(ctx context.Context, b *rule.Base, name string, args ...string) (string, bool) {
	runner := b.Deps().Runner
	if runner == nil {
		return "", false
	}
	res, err := runner.Run(ctx, cmdexec.Cmd(name, args...))
	if err != nil || !res.OK() {
		b.Logger().Debug("command failed", "command", name, "args", args, "exit_code", res.ExitCode, "error", err)
		return strings.TrimSpace(res.Stdout), false
	}
	return strings.TrimSpace(res.Stdout), true
}
