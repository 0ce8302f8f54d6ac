// Package kveditor audits and rewrites key/value configuration files such as
// sshd_config, sysctl.conf or journald.conf. It compares a file against a
// desired mapping, rewrites only the lines that differ and commits the result
// atomically while recording the change for undo.
package kveditor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/csd-dev-tools/stonix/internal/fsutil"
)

// Type selects between flat files and files made of [tag] sections.
type Type string

const (
	Conf    Type = "conf"
	TagConf Type = "tagconf"
)

// Intent states whether the desired keys must be present or absent.
type Intent string

const (
	Present    Intent = "present"
	NotPresent Intent = "notpresent"
)

// ErrFileNotFound is returned by Fix and Commit when the target file is
// missing. Callers create the file themselves and record a creation event.
var ErrFileNotFound = errors.New("kveditor: file not found")

// Values maps a key to its desired values. A single value means the key
// appears once; several values mean a repeatable directive written once per
// value. With NotPresent in the space dialect only the listed values are
// unwanted, and an empty value matches any value of the key; in the eq
// dialects the key must be absent whatever its value.
type Values map[string][]string

// Single builds Values from one value per key.
func Single(m map[string]string) Values {
	v := make(Values, len(m))
	for k, val := range m {
		v[k] = []string{val}
	}
	return v
}

// ChangeRecorder records a pending file replacement in the change ledger.
type ChangeRecorder interface {
	RecordFileChange(path, tmpPath, id string) error
}

// Options configures an Editor.
type Options struct {
	Type    Type
	Path    string
	TmpPath string // default: Path + ".stonixtmp"
	Dialect Dialect
	Intent  Intent

	// Data holds the desired keys of a Conf file.
	Data Values
	// Tags holds the desired keys per section of a TagConf file.
	Tags map[string]Values

	Recorder ChangeRecorder
	Logger   *slog.Logger
}

// Editor holds the desired state of one file and the outcome of the last report.
type Editor struct {
	typ      Type
	path     string
	tmpPath  string
	dialect  Dialect
	intent   Intent
	desired  map[string]Values
	recorder ChangeRecorder
	eventID  string
	logger   *slog.Logger

	exists      bool
	fixables    map[string]Values
	removeables map[string]Values
	malformed   []int
	observed    map[string]map[string][]string
	fixed       []string
	changed     bool
}

// New validates opts and returns an Editor.
func New(opts Options) (*Editor, error) {
	if opts.Path == "" {
		return nil, errors.New("kveditor: path is required")
	}
	if !opts.Dialect.Valid() {
		return nil, fmt.Errorf("kveditor: invalid dialect %q", opts.Dialect)
	}
	if opts.Intent == "" {
		opts.Intent = Present
	}
	if opts.Intent != Present && opts.Intent != NotPresent {
		return nil, fmt.Errorf("kveditor: invalid intent %q", opts.Intent)
	}
	if opts.TmpPath == "" {
		opts.TmpPath = opts.Path + ".stonixtmp"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	desired := make(map[string]Values)
	switch opts.Type {
	case Conf, "":
		opts.Type = Conf
		if len(opts.Tags) > 0 {
			return nil, errors.New("kveditor: Tags set for a conf file")
		}
		desired[""] = opts.Data
	case TagConf:
		if len(opts.Data) > 0 {
			return nil, errors.New("kveditor: Data set for a tagconf file")
		}
		for tag, vals := range opts.Tags {
			if tag == "" {
				return nil, errors.New("kveditor: empty tag name")
			}
			desired[tag] = vals
		}
	default:
		return nil, fmt.Errorf("kveditor: invalid type %q", opts.Type)
	}
	for _, vals := range desired {
		for key, list := range vals {
			if key == "" || strings.ContainsAny(key, " \t=") {
				return nil, fmt.Errorf("kveditor: invalid key %q", key)
			}
			if len(list) == 0 {
				return nil, fmt.Errorf("kveditor: key %q has no values", key)
			}
		}
	}

	return &Editor{
		typ:      opts.Type,
		path:     opts.Path,
		tmpPath:  opts.TmpPath,
		dialect:  opts.Dialect,
		intent:   opts.Intent,
		desired:  desired,
		recorder: opts.Recorder,
		logger:   opts.Logger.With("component", "kveditor", "path", opts.Path),
	}, nil
}

// Path returns the edited file.
func (e *Editor) Path() string { return e.path }

// SetEventID sets the ledger id under which Commit records the change.
// An empty id disables recording.
func (e *Editor) SetEventID(id string) { e.eventID = id }

// Fixables returns the values that must be written, keyed by tag ("" for
// conf files), as computed by the last Report.
func (e *Editor) Fixables() map[string]Values { return e.fixables }

// Removeables returns the values that must be removed, as computed by the
// last Report.
func (e *Editor) Removeables() map[string]Values { return e.removeables }

// Report compares the file against the desired state and returns true when
// it is compliant.
func (e *Editor) Report() (bool, error) {
	e.fixables = make(map[string]Values)
	e.removeables = make(map[string]Values)
	e.observed = make(map[string]map[string][]string)
	e.malformed = nil
	e.fixed = nil
	e.changed = false

	lines, exists, err := readLines(e.path)
	if err != nil {
		return false, err
	}
	e.exists = exists
	if !exists {
		if e.intent == Present {
			for tag, vals := range e.desired {
				e.fixables[tag] = cloneValues(vals)
			}
			e.logger.Debug("file missing", "fixables", len(e.fixables))
			return false, nil
		}
		return true, nil
	}

	doc := e.parse(lines)
	e.malformed = doc.malformed
	for tag, vals := range e.desired {
		sec := doc.sections[tag]
		occ := map[string][]occurrence(nil)
		if sec != nil {
			occ = sec.keys
		}
		obs := make(map[string][]string)
		for key := range vals {
			for _, o := range occ[key] {
				obs[key] = append(obs[key], o.value)
			}
		}
		e.observed[tag] = obs

		for key, want := range vals {
			have := occ[key]
			if e.intent == Present {
				if missing := missingValues(want, have); len(missing) > 0 {
					addValues(e.fixables, tag, key, missing)
				}
				continue
			}
			if hit := presentValues(want, have, e.dialect != Space); len(hit) > 0 {
				addValues(e.removeables, tag, key, hit)
			}
		}
	}

	compliant := len(e.fixables) == 0 && len(e.removeables) == 0 && len(e.malformed) == 0
	if !compliant {
		e.logger.Debug("file not compliant",
			"fixables", describe(e.fixables),
			"removeables", describe(e.removeables),
			"malformed_lines", len(e.malformed),
		)
	}
	return compliant, nil
}

// Fix computes the corrected file contents from the last Report. Lines that
// are not affected, including comments, are preserved in place. Malformed
// lines are commented out.
func (e *Editor) Fix() (bool, error) {
	if e.fixables == nil {
		if _, err := e.Report(); err != nil {
			return false, err
		}
	}
	if !e.exists {
		if e.intent == NotPresent {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s", ErrFileNotFound, e.path)
	}

	lines, exists, err := readLines(e.path)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", ErrFileNotFound, e.path)
	}

	doc := e.parse(lines)
	ed := newEdits()
	var appendix []string

	for _, tag := range sortedKeys(e.fixables) {
		vals := e.fixables[tag]
		sec := doc.sections[tag]
		var add []string
		for _, key := range sortedKeys(vals) {
			want := e.desired[tag][key]
			if sec == nil {
				for _, v := range vals[key] {
					add = append(add, e.dialect.format(key, v))
				}
				continue
			}
			have := sec.keys[key]
			if len(want) == 1 && len(have) > 0 {
				ed.replace[have[0].line] = e.dialect.format(key, want[0])
				for _, o := range have[1:] {
					ed.drop[o.line] = true
				}
				continue
			}
			for _, v := range vals[key] {
				add = append(add, e.dialect.format(key, v))
			}
		}
		switch {
		case sec != nil:
			ed.insert[sec.insertAt] = append(ed.insert[sec.insertAt], add...)
		case tag == "":
			appendix = append(appendix, add...)
		default:
			if last, ok := lastLine(lines, appendix); ok && strings.TrimSpace(last) != "" {
				appendix = append(appendix, "")
			}
			appendix = append(appendix, formatTag(tag))
			appendix = append(appendix, add...)
		}
	}

	for tag, vals := range e.removeables {
		sec := doc.sections[tag]
		if sec == nil {
			continue
		}
		for key, remove := range vals {
			for _, o := range sec.keys[key] {
				if e.dialect != Space || matchesAny(o.value, remove) {
					ed.drop[o.line] = true
				}
			}
		}
	}

	for _, i := range doc.malformed {
		ed.replace[i] = "# " + lines[i]
	}

	e.fixed = ed.apply(lines)
	e.fixed = append(e.fixed, appendix...)
	e.changed = !equalLines(lines, e.fixed)
	return true, nil
}

// Commit writes the fixed contents to the temporary path, records the
// change and moves the temporary file over the original. It is a no-op when
// Fix produced no change.
func (e *Editor) Commit() (bool, error) {
	if !e.changed {
		if !e.exists && e.intent == Present {
			return false, fmt.Errorf("%w: %s", ErrFileNotFound, e.path)
		}
		return true, nil
	}

	st, err := fsutil.Stat(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrFileNotFound, e.path)
		}
		return false, fmt.Errorf("kveditor: %w", err)
	}

	data := strings.Join(e.fixed, "\n")
	if len(e.fixed) > 0 {
		data += "\n"
	}
	if err := fsutil.WriteTemp(e.tmpPath, []byte(data), st.Mode.Perm()); err != nil {
		return false, fmt.Errorf("kveditor: %w", err)
	}
	if e.recorder != nil && e.eventID != "" {
		if err := e.recorder.RecordFileChange(e.path, e.tmpPath, e.eventID); err != nil {
			os.Remove(e.tmpPath)
			return false, fmt.Errorf("kveditor: record change: %w", err)
		}
	}
	if err := fsutil.ReplaceFile(e.tmpPath, e.path); err != nil {
		os.Remove(e.tmpPath)
		return false, fmt.Errorf("kveditor: %w", err)
	}

	e.logger.Info("file updated", "event_id", e.eventID)
	e.changed = false
	e.fixables = nil
	e.removeables = nil
	return true, nil
}

func readLines(path string) ([]string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kveditor: read %s: %w", path, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}, true, nil
	}
	return strings.Split(text, "\n"), true, nil
}

// missingValues returns the desired values not satisfied by the current
// occurrences. A single-valued key is unsatisfied when any occurrence
// holds another value.
func missingValues(want []string, have []occurrence) []string {
	if len(want) == 1 {
		if len(have) == 0 {
			return want
		}
		for _, o := range have {
			if o.value != want[0] {
				return want
			}
		}
		return nil
	}
	var missing []string
	for _, w := range want {
		found := false
		for _, o := range have {
			if o.value == w {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, w)
		}
	}
	return missing
}

// presentValues returns the undesired values that occur in the file. With
// keyOnly any occurrence of the key matches.
func presentValues(unwanted []string, have []occurrence, keyOnly bool) []string {
	if keyOnly && len(have) > 0 {
		return unwanted
	}
	var hit []string
	for _, u := range unwanted {
		for _, o := range have {
			if u == "" || o.value == u {
				hit = append(hit, u)
				break
			}
		}
	}
	return hit
}

func matchesAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" || p == value {
			return true
		}
	}
	return false
}

func addValues(m map[string]Values, tag, key string, vals []string) {
	if m[tag] == nil {
		m[tag] = make(Values)
	}
	m[tag][key] = append(m[tag][key], vals...)
}

func cloneValues(v Values) Values {
	out := make(Values, len(v))
	for k, list := range v {
		out[k] = append([]string(nil), list...)
	}
	return out
}

func describe(m map[string]Values) string {
	var parts []string
	for _, tag := range sortedKeys(m) {
		for _, key := range sortedKeys(m[tag]) {
			name := key
			if tag != "" {
				name = tag + "." + key
			}
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ",")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lastLine(lines, appendix []string) (string, bool) {
	if len(appendix) > 0 {
		return appendix[len(appendix)-1], true
	}
	if len(lines) > 0 {
		return lines[len(lines)-1], true
	}
	return "", false
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
