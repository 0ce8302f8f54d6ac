package applicability

import (
	"io"
	"log/slog"
	"testing"

	"github.com/csd-dev-tools/stonix/internal/environ"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rhel(version string, euid int) environ.Facts {
	return environ.Facts{
		Family:    "linux",
		OSType:    "Red Hat Enterprise Linux",
		OSVersion: version,
		Platform:  "redhat",
		EUID:      euid,
		FISMA:     environ.FISMAMed,
	}
}

func TestVersionMatches(t *testing.T) {
	tests := []struct {
		version string
		list    []string
		want    bool
	}{
		{"9.4", nil, true},
		{"9.4", []string{"9.4"}, true},
		{"9.4", []string{"9.4.0"}, true},
		{"9.4", []string{"8", "9.3"}, false},
		{"10.11", []string{"10.11", "+"}, true},
		{"10.9", []string{"10.11", "+"}, false},
		{"10.9", []string{"10.11", "-"}, true},
		{"8.2", []string{"7", "r", "9"}, true},
		{"9.1", []string{"7", "r", "9"}, false},
		{"22.04", []string{"20.04", "+"}, true},
		{"buster", []string{"buster"}, true},
		{"buster", []string{"bullseye"}, false},
		{"buster", []string{"10", "+"}, false},
		{"buster", []string{"10", "-"}, false},
		{"10", []string{"9", "+"}, true},
		{"10", []string{"9", "-"}, false},
		{"9", []string{"10", "r", "buster"}, false},
	}
	for _, tt := range tests {
		if got := VersionMatches(tt.version, tt.list); got != tt.want {
			t.Errorf("VersionMatches(%q, %v) = %v, want %v", tt.version, tt.list, got, tt.want)
		}
	}
}

func TestApplicable(t *testing.T) {
	tests := []struct {
		name  string
		facts environ.Facts
		spec  Spec
		want  bool
	}{
		{"black default applies", rhel("9.4", 0), Spec{}, true},
		{"white default does not apply", rhel("9.4", 0), Spec{Type: White}, false},
		{"white family match", rhel("9.4", 0), Spec{Type: White, Family: []string{"linux"}}, true},
		{"black family match", rhel("9.4", 0), Spec{Family: []string{"linux"}}, false},
		{"white os match", rhel("9.4", 0), Spec{Type: White, OS: map[string][]string{"Red Hat": {"8", "+"}}}, true},
		{"white os version miss", rhel("7.9", 0), Spec{Type: White, OS: map[string][]string{"Red Hat": {"8", "+"}}}, false},
		{"black os match", rhel("9.4", 0), Spec{OS: map[string][]string{"Red Hat|CentOS": nil}}, false},
		{"noroot as root", rhel("9.4", 0), Spec{NoRoot: true}, false},
		{"noroot as user", rhel("9.4", 1000), Spec{NoRoot: true}, true},
		{"fisma high on med system", rhel("9.4", 0), Spec{FISMA: environ.FISMAHigh}, false},
		{"fisma low on med system", rhel("9.4", 0), Spec{FISMA: environ.FISMALow}, true},
		{"expr true", rhel("9.4", 0), Spec{Expr: `host.platform == "redhat" && host.euid == 0`}, true},
		{"expr false", rhel("9.4", 0), Spec{Expr: `host.family == "darwin"`}, false},
		{"expr not boolean", rhel("9.4", 0), Spec{Expr: `host.family`}, false},
		{"expr syntax error", rhel("9.4", 0), Spec{Expr: `host.family ==`}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChecker(tt.facts, testLogger())
			if err != nil {
				t.Fatalf("NewChecker() error = %v", err)
			}
			if got := c.Applicable(tt.spec); got != tt.want {
				t.Errorf("Applicable() = %v, want %v", got, tt.want)
			}
		})
	}
}
