// Package cart owns canonical cart state. Two backing modes share one
// interface: a local durable store this process exclusively writes, and a
// remote-authoritative store delegating to the storefront backend's own
// session-scoped cart.
package cart

import (
	"context"

	"cartbridge/internal/model"
)

// Store is the canonical cart mutation surface. Mutations are atomic with
// respect to readers: Snapshot never observes a half-applied change, and a
// failed mutation leaves state untouched.
type Store interface {
	// AddLineItem merges an item into the cart. An existing variant's
	// quantity is summed (not replaced) and its display metadata refreshed;
	// a new variant is appended preserving insertion order.
	AddLineItem(ctx context.Context, item model.CartLineItem) (model.CartState, error)

	// SetQuantity sets a line's quantity. quantity <= 0 removes the line;
	// this is the single removal primitive.
	SetQuantity(ctx context.Context, variantID string, quantity int) (model.CartState, error)

	// RemoveLineItem removes a line. Alias for SetQuantity(variantID, 0).
	RemoveLineItem(ctx context.Context, variantID string) (model.CartState, error)

	// Snapshot returns a read-only deep copy of the current state. Safe to
	// call while a mutation is in flight.
	Snapshot(ctx context.Context) (model.CartState, error)

	// Ready reports whether the backing resource is usable. Polled by the
	// sync coordinator during initialization.
	Ready(ctx context.Context) bool
}

// Backend abstracts the remote cart endpoints consumed by the
// remote-authoritative store. Implemented by the storefront client.
type Backend interface {
	// GetCart fetches the session's cart from the backend.
	GetCart(ctx context.Context) (model.CartState, error)

	// AddItems posts new items to the backend cart. Non-2xx responses are
	// reported as ErrMutationRejected.
	AddItems(ctx context.Context, items []model.CartLineItem) error

	// ChangeItem sets the backend quantity for a variant (0 removes).
	ChangeItem(ctx context.Context, variantID string, quantity int) error
}
