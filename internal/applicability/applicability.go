// Package applicability decides whether a rule applies to the current host.
package applicability

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"

	"github.com/csd-dev-tools/stonix/internal/environ"
)

// List types.
const (
	White = "white"
	Black = "black"
)

// Version list markers.
const (
	AtLeast = "+"
	AtMost  = "-"
	Range   = "r"
)

// Spec describes where a rule applies.
//
// With Type black (the default) a rule applies everywhere except on hosts
// matching Family or OS; with Type white it applies only to matching hosts.
// OS maps a regular expression over the OS type to a version list:
// ["10.11"] or ["9", "10"] match exactly, ["10.11", "+"] means that version
// or newer, ["10.11", "-"] that version or older and ["7", "r", "9"] an
// inclusive range. An empty list matches every version.
type Spec struct {
	Type   string              `yaml:"type"`
	Family []string            `yaml:"family"`
	OS     map[string][]string `yaml:"os"`
	// NoRoot makes the rule inapplicable when running as root.
	NoRoot bool `yaml:"noroot"`
	// FISMA is the lowest system category the rule applies to.
	FISMA string `yaml:"fisma"`
	// Expr is an optional CEL expression over the host facts map named
	// "host"; it must evaluate to true for the rule to apply.
	Expr string `yaml:"expr"`
}

// Checker evaluates Specs against one host.
type Checker struct {
	facts  environ.Facts
	env    *cel.Env
	logger *slog.Logger

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewChecker creates a Checker for facts.
func NewChecker(facts environ.Facts, logger *slog.Logger) (*Checker, error) {
	env, err := cel.NewEnv(
		cel.Variable("host", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("applicability: create CEL environment: %w", err)
	}
	return &Checker{
		facts:    facts,
		env:      env,
		logger:   logger.With("component", "applicability"),
		programs: make(map[string]cel.Program),
	}, nil
}

// Facts returns the host facts the checker evaluates against.
func (c *Checker) Facts() environ.Facts { return c.facts }

// Applicable reports whether spec admits the host.
func (c *Checker) Applicable(spec Spec) bool {
	white := spec.Type == White
	applies := !white

	if slices.Contains(spec.Family, c.facts.Family) {
		applies = white
	}
	for pattern, versions := range spec.OS {
		re, err := regexp.Compile(pattern)
		if err != nil {
			c.logger.Warn("invalid OS pattern", "pattern", pattern, "error", err)
			continue
		}
		if re.MatchString(c.facts.OSType) && VersionMatches(c.facts.OSVersion, versions) {
			applies = white
		}
	}

	if spec.NoRoot && c.facts.IsRoot() {
		applies = false
	}
	if spec.FISMA != "" && environ.FISMARank(spec.FISMA) > environ.FISMARank(c.facts.FISMA) {
		applies = false
	}
	if applies && spec.Expr != "" {
		applies = c.eval(spec.Expr)
	}
	return applies
}

func (c *Checker) eval(expr string) bool {
	prg, err := c.program(expr)
	if err != nil {
		c.logger.Warn("applicability expression rejected", "expr", expr, "error", err)
		return false
	}
	out, _, err := prg.Eval(map[string]any{"host": c.facts.Map()})
	if err != nil {
		c.logger.Warn("applicability expression failed", "expr", expr, "error", err)
		return false
	}
	result, ok := out.Value().(bool)
	if !ok {
		c.logger.Warn("applicability expression is not boolean", "expr", expr, "type", fmt.Sprintf("%T", out.Value()))
		return false
	}
	return result
}

func (c *Checker) program(expr string) (cel.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok := c.programs[expr]; ok {
		return prg, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, err
	}
	c.programs[expr] = prg
	return prg, nil
}

// VersionMatches reports whether version satisfies a version list. Ordered
// forms never match a version that is not a version number; plain lists fall
// back to exact string equality.
func VersionMatches(version string, list []string) bool {
	switch {
	case len(list) == 0:
		return true
	case len(list) == 2 && list[1] == AtLeast:
		c, ok := compare(version, list[0])
		return ok && c >= 0
	case len(list) == 2 && list[1] == AtMost:
		c, ok := compare(version, list[0])
		return ok && c <= 0
	case len(list) == 3 && list[1] == Range:
		lo, okLo := compare(version, list[0])
		hi, okHi := compare(version, list[2])
		return okLo && okHi && lo >= 0 && hi <= 0
	}
	for _, v := range list {
		if version == v {
			return true
		}
		if c, ok := compare(version, v); ok && c == 0 {
			return true
		}
	}
	return false
}

// compare orders two versions semantically. ok is false when either is not
// a version number.
func compare(a, b string) (c int, ok bool) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, false
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, false
	}
	return va.Compare(vb), true
}
