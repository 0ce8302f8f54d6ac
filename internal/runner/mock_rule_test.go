package runner

import (
	"context"

	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

// mockRule becomes compliant once fixed unless fixFails is set.
type mockRule struct {
	number     int
	name       string
	applicable bool
	compliant  bool
	fixFails   bool
	fixSkipped bool
	// onReport runs at the start of every Report.
	onReport func()

	calls []string
	state rule.State
}

func newMockRule(number int, name string, compliant bool) *mockRule {
	return &mockRule{number: number, name: name, applicable: true, compliant: compliant}
}

func (m *mockRule) Number() int             { return m.number }
func (m *mockRule) Name() string            { return m.name }
func (m *mockRule) HelpText() string        { return "" }
func (m *mockRule) Applicable() bool        { return m.applicable }
func (m *mockRule) AuditOnly() bool         { return false }
func (m *mockRule) ConfigItems() []*ci.Item { return nil }
func (m *mockRule) State() rule.State       { return m.state }

func (m *mockRule) Report(context.Context) bool {
	if m.onReport != nil {
		m.onReport()
	}
	m.calls = append(m.calls, "report")
	m.state = rule.State{Phase: rule.PhaseReported, Compliant: m.compliant}
	if !m.compliant {
		m.state.Details = []string{m.name + " is not compliant"}
	}
	return m.compliant
}

func (m *mockRule) Fix(context.Context) bool {
	m.calls = append(m.calls, "fix")
	m.state = rule.State{Phase: rule.PhaseFixed}
	switch {
	case m.fixSkipped:
		m.state.Skipped = true
		m.state.Success = true
		m.state.Details = []string{"fix disabled"}
	case m.fixFails:
		m.state.Details = []string{"fix failed"}
	default:
		m.compliant = true
		m.state.Success = true
	}
	return m.state.Success
}

func (m *mockRule) Undo(context.Context) bool {
	m.calls = append(m.calls, "undo")
	m.state = rule.State{Phase: rule.PhaseUndone, Success: true}
	return true
}
