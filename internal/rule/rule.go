// Package rule defines the report/fix/undo lifecycle shared by every
// compliance rule, the collaborators a rule depends on and the registry the
// runner draws rules from.
package rule

import (
	"context"

	"github.com/csd-dev-tools/stonix/internal/ci"
)

// Phase is the lifecycle position of a rule within one run.
type Phase string

const (
	PhaseNew      Phase = "new"
	PhaseReported Phase = "reported"
	PhaseFixed    Phase = "fixed"
	PhaseUndone   Phase = "undone"
)

// State is the outcome of the most recent lifecycle call.
type State struct {
	Phase Phase
	// Compliant is the result of the last report.
	Compliant bool
	// Success is the result of the last fix or undo.
	Success bool
	// Skipped is set when a fix was not attempted.
	Skipped bool
	// Details holds human-readable findings of the last call.
	Details []string
}

// Rule is one compliance check with optional remediation.
type Rule interface {
	Number() int
	Name() string
	HelpText() string
	// Applicable reports whether the rule applies to this host.
	Applicable() bool
	AuditOnly() bool
	ConfigItems() []*ci.Item

	// Report inspects the host without changing it and returns compliance.
	Report(ctx context.Context) bool
	// Fix remediates the host, recording every change, and returns success.
	Fix(ctx context.Context) bool
	// Undo reverses the changes recorded by the last fix.
	Undo(ctx context.Context) bool

	State() State
}
