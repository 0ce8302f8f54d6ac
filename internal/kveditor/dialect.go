package kveditor

import (
	"fmt"
	"strings"
)

// Dialect is the syntax of a key/value line.
type Dialect string

const (
	// Space separates key and value with whitespace: "key value".
	Space Dialect = "space"
	// OpenEq uses a padded equals sign: "key = value".
	OpenEq Dialect = "openeq"
	// ClosedEq uses a bare equals sign: "key=value".
	ClosedEq Dialect = "closedeq"
)

// Valid reports whether d is a known dialect.
func (d Dialect) Valid() bool {
	switch d {
	case Space, OpenEq, ClosedEq:
		return true
	}
	return false
}

// lineKind classifies a source line.
type lineKind int

const (
	lineOther lineKind = iota
	lineKV
	lineMalformed
)

// split parses a non-comment line into key and value.
func (d Dialect) split(line string) (key, value string, kind lineKind) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", lineOther
	}
	switch d {
	case Space:
		fields := strings.Fields(trimmed)
		key = fields[0]
		value = strings.Join(fields[1:], " ")
		return key, value, lineKV
	default:
		idx := strings.Index(trimmed, "=")
		if idx < 0 {
			return "", "", lineOther
		}
		key = strings.TrimSpace(trimmed[:idx])
		value = strings.TrimSpace(trimmed[idx+1:])
		if key == "" {
			return "", "", lineMalformed
		}
		return key, value, lineKV
	}
}

// format renders key and value in this dialect.
func (d Dialect) format(key, value string) string {
	switch d {
	case Space:
		if value == "" {
			return key
		}
		return key + " " + value
	case OpenEq:
		return key + " = " + value
	default:
		return key + "=" + value
	}
}

// parseTag returns the section name of a "[tag]" header line.
func parseTag(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(trimmed[1 : len(trimmed)-1]), true
}

func formatTag(tag string) string {
	return fmt.Sprintf("[%s]", tag)
}
