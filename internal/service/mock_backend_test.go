package service

import (
	"context"
	"sync"
)

// mockBackend is a hand-written Backend keeping enabled/running state in memory.
type mockBackend struct {
	mu      sync.Mutex
	name    string
	enabled map[string]bool
	running map[string]bool
	// refuse makes Enable and Disable report failure without changing state.
	refuse bool
	calls  []string
}

func newMockBackend(name string) *mockBackend {
	return &mockBackend{
		name:    name,
		enabled: make(map[string]bool),
		running: make(map[string]bool),
	}
}

func (m *mockBackend) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Enable(_ context.Context, svc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("enable " + svc)
	if m.refuse {
		return false
	}
	m.enabled[svc] = true
	m.running[svc] = true
	return true
}

func (m *mockBackend) Disable(_ context.Context, svc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("disable " + svc)
	if m.refuse {
		return false
	}
	delete(m.enabled, svc)
	delete(m.running, svc)
	return true
}

func (m *mockBackend) Audit(_ context.Context, svc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[svc]
}

func (m *mockBackend) IsRunning(_ context.Context, svc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[svc]
}

func (m *mockBackend) Reload(_ context.Context, svc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("reload " + svc)
	return m.running[svc]
}

func (m *mockBackend) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for svc := range m.enabled {
		out = append(out, svc)
	}
	return out, nil
}
