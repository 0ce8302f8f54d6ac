package ci

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

const (
	// DefaultPath is the location of stonix.conf.
	DefaultPath = "/etc/stonix.conf"

	// EnvPrefix prefixes environment overrides: STONIX_<RULE>_<KEY>.
	EnvPrefix = "STONIX"

	confVersion    = "100"
	commentsSuffix = "_UserComments"
)

// Section is one rule's block in stonix.conf.
type Section struct {
	Name  string
	Help  string
	Items []*Item
}

// Store reads item values from stonix.conf with environment overrides.
type Store struct {
	path   string
	v      *viper.Viper
	logger *slog.Logger
}

// Load reads the INI file at path. A missing file yields an empty store so
// every item keeps its default.
func Load(path string, logger *slog.Logger) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s := &Store{
		path:   path,
		v:      v,
		logger: logger.With("component", "ci"),
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("stonix.conf not found, using defaults", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("ci: read %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file the store was loaded from.
func (s *Store) Path() string { return s.path }

// Apply loads the stored value and user comment of every item in section.
// Values that fail coercion or validation are logged and ignored.
func (s *Store) Apply(section string, items []*Item) {
	for _, it := range items {
		key := strings.ToLower(section + "." + it.Key())
		if s.v.IsSet(key) {
			raw := s.v.GetString(key)
			if err := it.UpdateCurrValue(raw, true); err != nil {
				s.logger.Warn("ignoring invalid configuration value",
					"rule", section,
					"key", it.Key(),
					"value", raw,
					"error", err,
				)
			}
		}
		if comment := s.v.GetString(key + strings.ToLower(commentsSuffix)); comment != "" {
			it.SetUserComment(comment)
		}
	}
}

// Render produces stonix.conf contents. In simple form only items marked
// simple, items changed from their default and items carrying a user
// comment are written.
func Render(sections []Section, simple bool) string {
	var b strings.Builder
	b.WriteString("# STONIX.CONF\n[MAIN]\nversion = " + confVersion + "\n")

	for _, sec := range sections {
		var items []*Item
		for _, it := range sec.Items {
			if simple && !it.Simple() && it.IsDefault() && it.UserComment() == "" {
				continue
			}
			items = append(items, it)
		}
		if len(items) == 0 {
			continue
		}

		b.WriteString("\n[" + sec.Name + "]\n")
		if !simple {
			writeComment(&b, sec.Help)
		}
		for _, it := range items {
			writeComment(&b, it.Instructions())
			fmt.Fprintf(&b, "%s = %s\n", it.Key(), it.FormatValue(it.Value()))
			fmt.Fprintf(&b, "%s%s = %s\n", it.Key(), commentsSuffix, oneLine(it.UserComment()))
		}
	}
	return b.String()
}

// Write renders sections and replaces the file at path atomically.
func Write(path string, sections []Section, simple bool) error {
	data := Render(sections, simple)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ci: write %s: %w", path, err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), []byte(data), 0o644); err != nil {
		return fmt.Errorf("ci: write %s: %w", path, err)
	}
	return nil
}

func writeComment(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			b.WriteString("#\n")
			continue
		}
		b.WriteString("# " + line + "\n")
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
