package engine

import "sync"

// Manager hands out one engine per user and owns their lifecycle.
// Engines for different users run fully independently.
type Manager struct {
	deps Deps
	cfg  Config

	mu      sync.Mutex
	engines map[string]*Engine
	closed  bool
}

// NewManager validates the shared configuration once and returns a
// manager that lazily creates per-user engines.
func NewManager(deps Deps, cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		deps:    deps,
		cfg:     cfg,
		engines: make(map[string]*Engine),
	}, nil
}

// ForUser returns the engine owning the given user, creating it on first
// use. Returns ErrClosed after Close.
func (m *Manager) ForUser(userID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if e, ok := m.engines[userID]; ok {
		return e, nil
	}
	e, err := New(userID, m.deps, m.cfg)
	if err != nil {
		return nil, err
	}
	m.engines[userID] = e
	return e, nil
}

// Close shuts down every engine. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, e := range m.engines {
		e.Close()
	}
	m.engines = nil
}
