// Package config holds the configuration of the stonix program itself, read
// from a YAML file. Rule options live in stonix.conf and are handled by the
// ci package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/environ"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/observability/otel"
	"github.com/csd-dev-tools/stonix/internal/schedule"
)

const (
	// DefaultPath is the location of the program configuration.
	DefaultPath = "/etc/stonix/config.yaml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config is the top-level program configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	// Default: info
	LogLevel string `yaml:"log_level"`

	// DataDir is the root of the ledger's state. It is used as the ledger's
	// DataDir unless that is set explicitly.
	// Default: /var/db/stonix
	DataDir string `yaml:"data_dir"`

	// StonixConf is the path of the rule option file.
	// Default: /etc/stonix.conf
	StonixConf string `yaml:"stonix_conf"`

	// FISMA is the system's categorization: low, med or high.
	// Default: low
	FISMA string `yaml:"fisma"`

	Ledger   ledger.Config   `yaml:"ledger"`
	Rules    RulesConfig     `yaml:"rules"`
	Commands CommandsConfig  `yaml:"commands"`
	OTel     otel.Config     `yaml:"otel"`
	Schedule schedule.Config `yaml:"schedule"`
}

// RulesConfig narrows the rules a run considers. Entries are rule numbers
// or names.
type RulesConfig struct {
	// Include limits runs without explicit rule arguments to these rules.
	Include []string `yaml:"include"`

	// Exclude removes rules from every run.
	Exclude []string `yaml:"exclude"`
}

// Validate checks that no entry is blank.
func (c *RulesConfig) Validate() error {
	for _, list := range [][]string{c.Include, c.Exclude} {
		for _, ref := range list {
			if strings.TrimSpace(ref) == "" {
				return errors.New("config: rules: empty rule reference")
			}
		}
	}
	return nil
}

// CommandsConfig controls external command execution.
type CommandsConfig struct {
	// Timeout bounds every command a rule runs.
	// Default: 10m
	Timeout time.Duration `yaml:"timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *CommandsConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = cmdexec.DefaultTimeout
	}
}

// Validate checks that configuration values are acceptable.
func (c *CommandsConfig) Validate() error {
	if c.Timeout < time.Second {
		return errors.New("config: commands: Timeout must be at least 1s")
	}
	return nil
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DataDir == "" {
		c.DataDir = ledger.DefaultDataDir
	}
	if c.StonixConf == "" {
		c.StonixConf = ci.DefaultPath
	}
	if c.FISMA == "" {
		c.FISMA = environ.FISMALow
	}
	if c.Ledger.DataDir == "" {
		c.Ledger.DataDir = c.DataDir
	}
	c.Ledger.ApplyDefaults()
	c.Commands.ApplyDefaults()
	c.OTel.ApplyDefaults()
	c.Schedule.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q (must be debug, info, warn or error)", c.LogLevel)
	}
	if !environ.ValidFISMA(c.FISMA) {
		return fmt.Errorf("config: invalid fisma %q (must be low, med or high)", c.FISMA)
	}
	if !filepath.IsAbs(c.StonixConf) {
		return errors.New("config: stonix_conf must be an absolute path")
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if err := c.Commands.Validate(); err != nil {
		return err
	}
	if err := c.OTel.Validate(); err != nil {
		return err
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseConfig reads a YAML configuration file, applies defaults and
// validates it. A missing file yields the defaults.
func ParseConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
