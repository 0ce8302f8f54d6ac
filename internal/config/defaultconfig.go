package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

// GenerateDefaultConfig produces a commented config.yaml with the default
// values.
func GenerateDefaultConfig() string {
	return `# stonix configuration
# Rule options are kept separately in stonix_conf.

log_level: info
data_dir: /var/db/stonix
stonix_conf: /etc/stonix.conf
fisma: low

rules:
  # include: [SecureSSH, 15]
  exclude: []

commands:
  timeout: 10m

otel:
  enabled: false
  # endpoint: localhost:4318
  # protocol: otlphttp

schedule:
  on_calendar: daily
  randomized_delay: 1h
`
}

// WriteDefault writes the default configuration to path unless a file is
// already there. It reports whether it wrote the file.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("config: stat %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("config: create %s: %w", dir, err)
	}
	if err := fsutil.WriteFileAtomic(dir, filepath.Base(path), []byte(GenerateDefaultConfig()), 0o644); err != nil {
		return false, fmt.Errorf("config: write %s: %w", path, err)
	}
	return true, nil
}
