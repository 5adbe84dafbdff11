package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cartbridge/internal/model"
)

// schema holds one full cart snapshot per session. The store is the sole
// writer of its slot; every mutation persists the complete state in the
// same call, so a crash can lose at most the in-flight mutation.
const schema = `
CREATE TABLE IF NOT EXISTS carts (
	session_id TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// OpenDB opens (creating if needed) the local cart database and ensures
// the schema exists.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening cart db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cart schema: %w", err)
	}
	return db, nil
}

// LocalStore keeps cart state in memory and mirrors every mutation
// synchronously into a SQLite slot keyed by session id.
type LocalStore struct {
	db        *sql.DB
	sessionID string
	logger    *slog.Logger

	mu    sync.Mutex
	state model.CartState
	ready bool
}

// NewLocalStore hydrates the store from its durable slot. A missing or
// corrupt slot hydrates as an empty cart, never a fatal error.
func NewLocalStore(db *sql.DB, sessionID string, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LocalStore{db: db, sessionID: sessionID, logger: logger}
	s.hydrate()
	return s
}

func (s *LocalStore) hydrate() {
	var raw string
	err := s.db.QueryRow(
		`SELECT state FROM carts WHERE session_id = ?`, s.sessionID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First visit for this session.
	case err != nil:
		s.logger.Warn("cart hydration failed, starting empty",
			slog.String("session", s.sessionID), slog.String("error", err.Error()))
	default:
		var state model.CartState
		if jsonErr := json.Unmarshal([]byte(raw), &state); jsonErr != nil {
			s.logger.Warn("corrupt cart slot, starting empty",
				slog.String("session", s.sessionID), slog.String("error", jsonErr.Error()))
		} else {
			s.state = state
		}
	}
	s.ready = true
}

// Ready reports whether hydration completed and the database answers.
func (s *LocalStore) Ready(ctx context.Context) bool {
	s.mu.Lock()
	hydrated := s.ready
	s.mu.Unlock()
	if !hydrated {
		return false
	}
	return s.db.PingContext(ctx) == nil
}

// AddLineItem merges the item and persists the full state before the
// in-memory cart is updated. A persist failure leaves state unchanged.
func (s *LocalStore) AddLineItem(ctx context.Context, item model.CartLineItem) (model.CartState, error) {
	if item.Quantity < 1 {
		return model.CartState{}, model.NewValidationError("quantity", "must be >= 1")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.Merge(item)
	if err := s.persist(ctx, next); err != nil {
		return s.state.Clone(), err
	}
	s.state = next
	return s.state.Clone(), nil
}

// SetQuantity applies the single mutation primitive and persists.
func (s *LocalStore) SetQuantity(ctx context.Context, variantID string, quantity int) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	next.SetQuantity(variantID, quantity)
	if err := s.persist(ctx, next); err != nil {
		return s.state.Clone(), err
	}
	s.state = next
	return s.state.Clone(), nil
}

// RemoveLineItem removes a line entirely.
func (s *LocalStore) RemoveLineItem(ctx context.Context, variantID string) (model.CartState, error) {
	return s.SetQuantity(ctx, variantID, 0)
}

// Snapshot returns a deep copy of the current state.
func (s *LocalStore) Snapshot(ctx context.Context) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

// persist writes the full cart JSON into the session's slot. Called with
// the store lock held.
func (s *LocalStore) persist(ctx context.Context, state model.CartState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return model.NewInternalError(err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carts (session_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		s.sessionID, string(raw), time.Now().UTC())
	if err != nil {
		return model.NewInternalError(fmt.Errorf("persisting cart: %w", err))
	}
	return nil
}
