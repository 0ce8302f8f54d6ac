// Package fsutil holds the small file primitives shared by the editors, the
// change ledger and the rules: atomic replacement, ownership/mode snapshots,
// content hashing and copies.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to dir/name atomically using a temp file and rename.
// Readers never observe a partially-written file.
func WriteFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	targetPath := filepath.Join(dir, name)
	tmpPath := filepath.Join(dir, ".tmp-"+name)

	if err := writeSynced(tmpPath, data, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// WriteTemp writes data to tmpPath and fsyncs it so that a later
// ReplaceFile can move it over the original in one step.
func WriteTemp(tmpPath string, data []byte, perm os.FileMode) error {
	if err := writeSynced(tmpPath, data, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fsutil: write %s: %w", tmpPath, err)
	}
	return nil
}

// ReplaceFile renames tmpPath over path. When path already exists its
// ownership and mode are carried over to the replacement first.
func ReplaceFile(tmpPath, path string) error {
	if st, err := Stat(path); err == nil {
		if err := Apply(tmpPath, st); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsutil: rename %s: %w", tmpPath, err)
	}
	return nil
}

func writeSynced(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
