// Package ci implements configuration items: the typed, validated options a
// rule exposes to administrators through stonix.conf.
package ci

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Datatype is the type of an item's value.
type Datatype string

const (
	Bool   Datatype = "bool"
	String Datatype = "string"
	Int    Datatype = "int"
	Float  Datatype = "float"
	List   Datatype = "list"
)

// ErrInvalidValue is returned when a value has the wrong type or fails validation.
var ErrInvalidValue = errors.New("ci: invalid value")

// Config describes an item. Default may be nil to use the datatype's zero value.
type Config struct {
	Key          string
	Datatype     Datatype
	Default      any
	Instructions string
	// Simple items are written to stonix.conf even in the short form.
	Simple bool
	// ValidValues restricts string values and list entries.
	ValidValues []string
	// MaxSelections caps the length of a list value when greater than zero.
	MaxSelections int
	// Pattern is a regular expression a string value must match in full.
	Pattern string
	// Delimiter splits list values given as strings; empty means whitespace.
	Delimiter string
}

// Item is a configuration item. Its current value always passes validation.
type Item struct {
	cfg         Config
	pattern     *regexp.Regexp
	def         any
	curr        any
	userComment string
}

// New validates cfg and returns an item whose current value is the default.
func New(cfg Config) (*Item, error) {
	if cfg.Key == "" {
		return nil, errors.New("ci: key is required")
	}
	if strings.ContainsAny(cfg.Key, " \t=[]") {
		return nil, fmt.Errorf("ci: invalid key %q", cfg.Key)
	}
	it := &Item{cfg: cfg}
	if cfg.Pattern != "" {
		if cfg.Datatype != String {
			return nil, fmt.Errorf("ci: %s: pattern only applies to string items", cfg.Key)
		}
		re, err := regexp.Compile("^(?:" + cfg.Pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("ci: %s: compile pattern: %w", cfg.Key, err)
		}
		it.pattern = re
	}

	def := cfg.Default
	if def == nil {
		var err error
		if def, err = zero(cfg.Datatype); err != nil {
			return nil, fmt.Errorf("ci: %s: %w", cfg.Key, err)
		}
	}
	v, err := it.coerce(def, false)
	if err != nil {
		return nil, fmt.Errorf("ci: %s: default: %w", cfg.Key, err)
	}
	if !it.Validate(v) {
		return nil, fmt.Errorf("ci: %s: default %v: %w", cfg.Key, v, ErrInvalidValue)
	}
	it.def = v
	it.curr = v
	return it, nil
}

// MustNew is New for package-level item definitions that are known valid.
func MustNew(cfg Config) *Item {
	it, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return it
}

func zero(dt Datatype) (any, error) {
	switch dt {
	case Bool:
		return false, nil
	case String:
		return "", nil
	case Int:
		return 0, nil
	case Float:
		return 0.0, nil
	case List:
		return []string{}, nil
	}
	return nil, fmt.Errorf("unknown datatype %q", dt)
}

func (it *Item) Key() string             { return it.cfg.Key }
func (it *Item) Datatype() Datatype      { return it.cfg.Datatype }
func (it *Item) Instructions() string    { return it.cfg.Instructions }
func (it *Item) Simple() bool            { return it.cfg.Simple }
func (it *Item) ValidValues() []string   { return it.cfg.ValidValues }
func (it *Item) Default() any            { return it.def }
func (it *Item) Value() any              { return it.curr }
func (it *Item) UserComment() string     { return it.userComment }
func (it *Item) SetUserComment(c string) { it.userComment = strings.TrimSpace(c) }

// Bool returns the current value of a bool item.
func (it *Item) Bool() bool {
	b, _ := it.curr.(bool)
	return b
}

// String returns the current value of a string item.
func (it *Item) String() string {
	s, _ := it.curr.(string)
	return s
}

// Int returns the current value of an int item.
func (it *Item) Int() int {
	n, _ := it.curr.(int)
	return n
}

// Float returns the current value of a float item.
func (it *Item) Float() float64 {
	f, _ := it.curr.(float64)
	return f
}

// List returns a copy of the current value of a list item.
func (it *Item) List() []string {
	l, _ := it.curr.([]string)
	return slices.Clone(l)
}

// IsDefault reports whether the current value equals the default.
func (it *Item) IsDefault() bool {
	return it.FormatValue(it.curr) == it.FormatValue(it.def)
}

// UpdateCurrValue sets the current value. With coerce, strings are converted
// to the item's datatype; bool accepts yes/true and no/false in any case.
// An invalid value leaves the current value untouched.
func (it *Item) UpdateCurrValue(value any, coerce bool) error {
	v, err := it.coerce(value, coerce)
	if err != nil {
		return fmt.Errorf("ci: %s: %w", it.cfg.Key, err)
	}
	if !it.Validate(v) {
		return fmt.Errorf("ci: %s: %v: %w", it.cfg.Key, value, ErrInvalidValue)
	}
	it.curr = v
	return nil
}

// Validate reports whether an already typed value satisfies the item's rules.
func (it *Item) Validate(value any) bool {
	switch v := value.(type) {
	case string:
		if it.cfg.Datatype != String {
			return false
		}
		if it.pattern != nil && !it.pattern.MatchString(v) {
			return false
		}
		if len(it.cfg.ValidValues) > 0 && !slices.Contains(it.cfg.ValidValues, v) {
			return false
		}
		return true
	case []string:
		if it.cfg.Datatype != List {
			return false
		}
		if it.cfg.MaxSelections > 0 && len(v) > it.cfg.MaxSelections {
			return false
		}
		if len(it.cfg.ValidValues) > 0 {
			for _, entry := range v {
				if !slices.Contains(it.cfg.ValidValues, entry) {
					return false
				}
			}
		}
		return true
	case bool:
		return it.cfg.Datatype == Bool
	case int:
		return it.cfg.Datatype == Int
	case float64:
		return it.cfg.Datatype == Float
	}
	return false
}

// FormatValue renders a typed value the way stonix.conf stores it.
func (it *Item) FormatValue(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "True"
		}
		return "False"
	case []string:
		sep := it.cfg.Delimiter
		if sep == "" {
			sep = " "
		}
		return strings.Join(v, sep)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (it *Item) coerce(value any, coerce bool) (any, error) {
	switch it.cfg.Datatype {
	case Bool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if !coerce {
				break
			}
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "yes", "true":
				return true, nil
			case "no", "false":
				return false, nil
			}
			return nil, fmt.Errorf("%q is not a boolean: %w", v, ErrInvalidValue)
		}
	case String:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			if coerce && v != nil {
				return fmt.Sprint(v), nil
			}
		}
	case Int:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case string:
			if !coerce {
				break
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer: %w", v, ErrInvalidValue)
			}
			return n, nil
		}
	case Float:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			if !coerce {
				break
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number: %w", v, ErrInvalidValue)
			}
			return f, nil
		}
	case List:
		switch v := value.(type) {
		case []string:
			return slices.Clone(v), nil
		case []any:
			out := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("list entry %v is not a string: %w", e, ErrInvalidValue)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			if !coerce {
				break
			}
			return it.split(v), nil
		}
	default:
		return nil, fmt.Errorf("unknown datatype %q", it.cfg.Datatype)
	}
	return nil, fmt.Errorf("%T for %s item: %w", value, it.cfg.Datatype, ErrInvalidValue)
}

func (it *Item) split(s string) []string {
	if it.cfg.Delimiter == "" {
		return strings.Fields(s)
	}
	out := []string{}
	for _, part := range strings.Split(s, it.cfg.Delimiter) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
