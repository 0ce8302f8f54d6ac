// Package ledger records every change a rule's fix makes to the host so that
// undo can reverse it later. Events persist in a SQLite database; file
// contents are kept as snapshots and archived originals on disk.
package ledger

import (
	"errors"
	"path/filepath"
)

const (
	// DefaultDataDir is the root of the ledger's on-disk state.
	DefaultDataDir = "/var/db/stonix"

	// DefaultDBFile is the event database file name inside DataDir.
	DefaultDBFile = "eventlog.db"
)

// Config holds the ledger storage locations.
type Config struct {
	// DataDir is the root directory for ledger state.
	// Default: /var/db/stonix
	DataDir string `yaml:"data_dir"`

	// DBFile is the SQLite event database file name.
	// Default: eventlog.db
	DBFile string `yaml:"db_file"`

	// ArchiveDir holds archived originals of edited and deleted files.
	// Default: <DataDir>/archive
	ArchiveDir string `yaml:"archive_dir"`

	// SnapshotDir holds per-event pre-change copies of edited files.
	// Default: <DataDir>/snapshots
	SnapshotDir string `yaml:"snapshot_dir"`

	// AllowUnprivileged lets a non-root process open the ledger.
	AllowUnprivileged bool `yaml:"allow_unprivileged"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.DBFile == "" {
		c.DBFile = DefaultDBFile
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = filepath.Join(c.DataDir, "archive")
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = filepath.Join(c.DataDir, "snapshots")
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("ledger: config: DataDir is required")
	}
	if !filepath.IsAbs(c.DataDir) {
		return errors.New("ledger: config: DataDir must be an absolute path")
	}
	if c.DBFile == "" {
		return errors.New("ledger: config: DBFile is required")
	}
	if c.ArchiveDir == "" || c.SnapshotDir == "" {
		return errors.New("ledger: config: ArchiveDir and SnapshotDir are required")
	}
	return nil
}
