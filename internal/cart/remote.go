package cart

import (
	"context"
	"log/slog"
	"sync"

	"cartbridge/internal/model"
)

// RemoteStore delegates mutations to the storefront backend's own
// session-scoped cart. The in-memory snapshot is never authoritative: it
// is refreshed by re-fetching after every successful mutation, and readers
// between mutation and refresh see the last-known copy (eventual, not
// strict, consistency). A failed remote call leaves the snapshot
// untouched, all-or-nothing.
type RemoteStore struct {
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	lastKnown model.CartState
	hydrated  bool
}

// NewRemoteStore creates a store bound to one backend cart session.
func NewRemoteStore(backend Backend, logger *slog.Logger) *RemoteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteStore{backend: backend, logger: logger}
}

// Ready reports whether the backend session answers. The first successful
// fetch doubles as hydration of the last-known snapshot.
func (s *RemoteStore) Ready(ctx context.Context) bool {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	state, err := s.backend.GetCart(ctx)
	if err != nil {
		return false
	}

	s.mu.Lock()
	s.lastKnown = state
	s.hydrated = true
	s.mu.Unlock()
	return true
}

// AddLineItem posts the add and refreshes from the backend.
func (s *RemoteStore) AddLineItem(ctx context.Context, item model.CartLineItem) (model.CartState, error) {
	if item.Quantity < 1 {
		return model.CartState{}, model.NewValidationError("quantity", "must be >= 1")
	}
	if err := s.backend.AddItems(ctx, []model.CartLineItem{item}); err != nil {
		return s.snapshotLocked(), err
	}
	return s.refresh(ctx)
}

// SetQuantity delegates the change and refreshes. quantity <= 0 removes.
func (s *RemoteStore) SetQuantity(ctx context.Context, variantID string, quantity int) (model.CartState, error) {
	if quantity < 0 {
		quantity = 0
	}
	if err := s.backend.ChangeItem(ctx, variantID, quantity); err != nil {
		return s.snapshotLocked(), err
	}
	return s.refresh(ctx)
}

// RemoveLineItem removes a line entirely.
func (s *RemoteStore) RemoveLineItem(ctx context.Context, variantID string) (model.CartState, error) {
	return s.SetQuantity(ctx, variantID, 0)
}

// Snapshot returns the last-known backend state. No network call: between
// a mutation and its refresh this may lag the backend by design.
func (s *RemoteStore) Snapshot(ctx context.Context) (model.CartState, error) {
	return s.snapshotLocked(), nil
}

// refresh re-fetches the authoritative cart after a successful mutation.
// A failed refresh keeps the pre-mutation snapshot rather than guessing.
func (s *RemoteStore) refresh(ctx context.Context) (model.CartState, error) {
	state, err := s.backend.GetCart(ctx)
	if err != nil {
		s.logger.Warn("cart refresh after mutation failed, snapshot is stale",
			slog.String("error", err.Error()))
		return s.snapshotLocked(), nil
	}
	s.mu.Lock()
	s.lastKnown = state
	s.hydrated = true
	s.mu.Unlock()
	return state.Clone(), nil
}

func (s *RemoteStore) snapshotLocked() model.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnown.Clone()
}
