// Package schedule installs a systemd timer that runs a periodic stonix
// report.
package schedule

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultBinaryPath is the stonix binary the timer runs.
	DefaultBinaryPath = "/usr/local/bin/stonix"

	// DefaultConfigPath is passed to the scheduled run with --config.
	DefaultConfigPath = "/etc/stonix/config.yaml"

	// DefaultUnitDir is where unit files are written.
	DefaultUnitDir = "/etc/systemd/system"

	// DefaultUnitName is the base name of the service and timer units.
	DefaultUnitName = "stonix-report"

	// DefaultOnCalendar runs the report once a day.
	DefaultOnCalendar = "daily"

	// DefaultRandomizedDelay spreads runs of many hosts.
	DefaultRandomizedDelay = time.Hour
)

// Config holds the scheduled report options.
type Config struct {
	// Default: /usr/local/bin/stonix
	BinaryPath string `yaml:"binary_path"`

	// Default: /etc/stonix/config.yaml
	ConfigPath string `yaml:"config_path"`

	// Default: /etc/systemd/system
	UnitDir string `yaml:"unit_dir"`

	// UnitName is the base name of <name>.service and <name>.timer.
	// Default: stonix-report
	UnitName string `yaml:"unit_name"`

	// OnCalendar is a systemd calendar expression.
	// Default: daily
	OnCalendar string `yaml:"on_calendar"`

	// RandomizedDelay is the RandomizedDelaySec of the timer.
	// Default: 1h
	RandomizedDelay time.Duration `yaml:"randomized_delay"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BinaryPath == "" {
		c.BinaryPath = DefaultBinaryPath
	}
	if c.ConfigPath == "" {
		c.ConfigPath = DefaultConfigPath
	}
	if c.UnitDir == "" {
		c.UnitDir = DefaultUnitDir
	}
	if c.UnitName == "" {
		c.UnitName = DefaultUnitName
	}
	if c.OnCalendar == "" {
		c.OnCalendar = DefaultOnCalendar
	}
	if c.RandomizedDelay == 0 {
		c.RandomizedDelay = DefaultRandomizedDelay
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.BinaryPath) {
		return errors.New("schedule: config: BinaryPath must be an absolute path")
	}
	if !filepath.IsAbs(c.ConfigPath) {
		return errors.New("schedule: config: ConfigPath must be an absolute path")
	}
	if !filepath.IsAbs(c.UnitDir) {
		return errors.New("schedule: config: UnitDir must be an absolute path")
	}
	if c.UnitName == "" || strings.ContainsAny(c.UnitName, "/ \t\n") {
		return errors.New("schedule: config: UnitName must be a plain unit name")
	}
	if strings.TrimSpace(c.OnCalendar) == "" || strings.ContainsAny(c.OnCalendar, "\n") {
		return errors.New("schedule: config: OnCalendar must be a single-line calendar expression")
	}
	if c.RandomizedDelay < 0 {
		return errors.New("schedule: config: RandomizedDelay must not be negative")
	}
	return nil
}

// ServiceUnit returns the file name of the service unit.
func (c *Config) ServiceUnit() string { return c.UnitName + ".service" }

// TimerUnit returns the file name of the timer unit.
func (c *Config) TimerUnit() string { return c.UnitName + ".timer" }
