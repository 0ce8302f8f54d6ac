package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

const (
	archiveSuffix   = ".ovf"
	archiveTimeFmt  = "20060102T150405.000000000"
	snapshotPerm    = 0o600
	archiveDirPerms = 0o700
)

// RecordFileChange snapshots the current contents of path under id, archives
// the original and records a conf event. It must be called before tmpPath
// replaces path.
func (l *Ledger) RecordFileChange(path, tmpPath, id string) error {
	if _, _, err := ParseEventID(id); err != nil {
		return err
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return fmt.Errorf("ledger: record file change %s: %w", path, err)
	}
	if err := fsutil.CopyFile(path, l.snapshotPath(id), snapshotPerm); err != nil {
		return fmt.Errorf("ledger: snapshot %s: %w", path, err)
	}
	if _, err := l.ArchiveFile(path); err != nil {
		return err
	}
	return l.RecordChgEvent(id, FileConf{Path: path})
}

// RevertFileChange restores path from the snapshot taken for id.
func (l *Ledger) RevertFileChange(path, id string) error {
	snap := l.snapshotPath(id)
	data, err := os.ReadFile(snap)
	if err != nil {
		return fmt.Errorf("ledger: revert %s: %w", path, err)
	}
	tmp := path + ".stonixrevert"
	if err := fsutil.WriteTemp(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ledger: revert %s: %w", path, err)
	}
	if err := fsutil.ReplaceFile(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ledger: revert %s: %w", path, err)
	}
	l.logger.Info("file change reverted", "path", path, "event_id", id)
	return nil
}

// RecordFileDelete archives path and records a deletion event naming the
// archived copy that holds its current content. The caller deletes the file
// afterwards.
func (l *Ledger) RecordFileDelete(path, id string) error {
	if _, _, err := ParseEventID(id); err != nil {
		return err
	}
	archived, err := l.ArchiveFile(path)
	if err != nil {
		return err
	}
	return l.RecordChgEvent(id, Deletion{Path: path, Archive: archived})
}

// RevertFileDelete restores a deleted file from the archived copy named in d,
// including ownership and mode. Without an archive name the newest copy of
// the path is used.
func (l *Ledger) RevertFileDelete(d Deletion) error {
	path := d.Path
	archived := d.Archive
	if archived == "" {
		var err error
		if archived, err = l.newestArchive(path); err != nil {
			return err
		}
	}
	owner, err := fsutil.Stat(archived)
	if err != nil {
		return fmt.Errorf("ledger: restore %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ledger: restore %s: %w", path, err)
	}
	if err := fsutil.CopyFile(archived, path, owner.Mode); err != nil {
		return fmt.Errorf("ledger: restore %s: %w", path, err)
	}
	if err := fsutil.Apply(path, owner); err != nil {
		return fmt.Errorf("ledger: restore %s: %w", path, err)
	}
	l.logger.Info("deleted file restored", "path", path, "archive", archived)
	return nil
}

// ArchiveFile keeps a copy of path under the archive directory and returns
// the archived copy holding its current content. The first copy is
// <path>.ovf; later copies with different content get a timestamp suffix.
// Identical content is not archived twice: the existing copy is returned.
func (l *Ledger) ArchiveFile(path string) (string, error) {
	owner, err := fsutil.Stat(path)
	if err != nil {
		return "", fmt.Errorf("ledger: archive %s: %w", path, err)
	}
	base := l.archiveBase(path)
	if err := os.MkdirAll(filepath.Dir(base), archiveDirPerms); err != nil {
		return "", fmt.Errorf("ledger: archive %s: %w", path, err)
	}

	existing, err := l.archives(path)
	if err != nil {
		return "", err
	}
	dst := base
	if len(existing) > 0 {
		sum, err := fsutil.HashFile(path)
		if err != nil {
			return "", fmt.Errorf("ledger: archive %s: %w", path, err)
		}
		for _, a := range existing {
			if other, err := fsutil.HashFile(a); err == nil && other == sum {
				return a, nil
			}
		}
		dst = base + "." + l.now().UTC().Format(archiveTimeFmt)
	}

	if err := fsutil.CopyFile(path, dst, owner.Mode); err != nil {
		return "", fmt.Errorf("ledger: archive %s: %w", path, err)
	}
	if err := fsutil.Apply(dst, owner); err != nil {
		l.logger.Debug("archive ownership not preserved", "path", dst, "error", err)
	}
	l.logger.Debug("file archived", "path", path, "archive", dst)
	return dst, nil
}

func (l *Ledger) archiveBase(path string) string {
	return filepath.Join(l.cfg.ArchiveDir, filepath.Clean("/"+path)) + archiveSuffix
}

// archives lists the archived copies of path, oldest first.
func (l *Ledger) archives(path string) ([]string, error) {
	base := l.archiveBase(path)
	var out []string
	if _, err := os.Stat(base); err == nil {
		out = append(out, base)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ledger: list archives %s: %w", path, err)
	}
	stamped, err := filepath.Glob(base + ".*")
	if err != nil {
		return nil, fmt.Errorf("ledger: list archives %s: %w", path, err)
	}
	sort.Strings(stamped)
	return append(out, stamped...), nil
}

func (l *Ledger) newestArchive(path string) (string, error) {
	all, err := l.archives(path)
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "", fmt.Errorf("ledger: no archived copy of %s: %w", path, os.ErrNotExist)
	}
	return all[len(all)-1], nil
}

func (l *Ledger) snapshotPath(id string) string {
	return filepath.Join(l.cfg.SnapshotDir, id)
}
