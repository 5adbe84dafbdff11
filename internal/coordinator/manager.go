package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"cartbridge/internal/cart"
	"cartbridge/internal/catalog"
)

// StoreFactory builds the backing store for one session.
type StoreFactory func(ctx context.Context, sessionID string) (cart.Store, error)

// Manager hands out one lazily built coordinator per session. Coordinators
// are kept for the manager's lifetime; session expiry is the caller's
// concern (cookie TTL upstream).
type Manager struct {
	factory        StoreFactory
	offlineFactory StoreFactory // optional: offline slot per session
	catalog        *catalog.Cache
	cfg            Config
	hooks          Hooks
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Coordinator
}

// NewManager creates an empty session registry.
func NewManager(factory StoreFactory, cache *catalog.Cache, cfg Config, hooks Hooks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory:  factory,
		catalog:  cache,
		cfg:      cfg,
		hooks:    hooks,
		logger:   logger,
		sessions: make(map[string]*Coordinator),
	}
}

// WithOfflineFactory registers a per-session offline cart slot whose
// contents carry over onto the backing cart when it first becomes ready.
func (m *Manager) WithOfflineFactory(factory StoreFactory) *Manager {
	m.offlineFactory = factory
	return m
}

// ForSession returns the session's coordinator, building store and
// coordinator on first use.
func (m *Manager) ForSession(ctx context.Context, sessionID string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if co, ok := m.sessions[sessionID]; ok {
		return co, nil
	}
	store, err := m.factory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	co := New(store, m.catalog, m.cfg, m.hooks,
		m.logger.With(slog.String("session", sessionID)))
	if m.offlineFactory != nil {
		offline, err := m.offlineFactory(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		co.WithOfflineCarryOver(offline)
	}
	m.sessions[sessionID] = co
	return co, nil
}

// Sessions reports how many coordinators are live.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
