package rule

import (
	"context"
	"errors"
	"sync"

	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/ledger"
)

// mockLedger keeps events in memory in insertion order.
type mockLedger struct {
	mu       sync.Mutex
	events   []ledger.Event
	reverted []string
	cleared  []int
	// failRevert makes RevertFileChange fail for these paths.
	failRevert map[string]bool
}

func (m *mockLedger) RecordChgEvent(id string, p ledger.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, _, err := ledger.ParseEventID(id)
	if err != nil {
		return err
	}
	m.events = append(m.events, ledger.Event{ID: id, Rule: rule, Payload: p})
	return nil
}

func (m *mockLedger) RecordFileChange(path, _ string, id string) error {
	return m.RecordChgEvent(id, ledger.FileConf{Path: path})
}

func (m *mockLedger) RevertFileChange(path, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRevert[path] {
		return errors.New("snapshot missing")
	}
	m.reverted = append(m.reverted, id)
	return nil
}

func (m *mockLedger) RecordFileDelete(path, id string) error {
	return m.RecordChgEvent(id, ledger.Deletion{Path: path})
}

func (m *mockLedger) RevertFileDelete(d ledger.Deletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reverted = append(m.reverted, "delete:"+d.Path)
	return nil
}

func (m *mockLedger) FindRuleChanges(rule int) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Event
	for _, ev := range m.events {
		if ev.Rule == rule {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockLedger) DeleteEntry(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.events {
		if ev.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return ledger.ErrEventNotFound
}

func (m *mockLedger) ClearRule(rule int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, rule)
	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.Rule != rule {
			kept = append(kept, ev)
		}
	}
	m.events = kept
	return nil
}

// mockServices tracks enabled services.
type mockServices struct {
	enabled map[string]bool
}

func (m *mockServices) EnableService(_ context.Context, svc string) bool {
	m.enabled[svc] = true
	return true
}

func (m *mockServices) DisableService(_ context.Context, svc string) bool {
	delete(m.enabled, svc)
	return true
}

func (m *mockServices) AuditService(_ context.Context, svc string) bool { return m.enabled[svc] }
func (m *mockServices) IsRunning(_ context.Context, svc string) bool    { return m.enabled[svc] }
func (m *mockServices) ReloadService(_ context.Context, _ string) bool  { return true }

// mockStore sets every bool item named in values.
type mockStore struct {
	values map[string]string
}

func (m *mockStore) Apply(_ string, items []*ci.Item) {
	for _, it := range items {
		if v, ok := m.values[it.Key()]; ok {
			_ = it.UpdateCurrValue(v, true)
		}
	}
}
