// Package coordinator orchestrates cart operations against whichever
// backing store is configured: bounded readiness polling, add-and-sync
// with metadata enrichment, and fallback-to-redirect when the interactive
// cart cannot be reached.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cartbridge/internal/cart"
	"cartbridge/internal/catalog"
	"cartbridge/internal/model"
	"cartbridge/internal/permalink"
)

// State of the session-scoped cart resource.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Outcome of an AddAndSync attempt.
type Outcome string

const (
	// OutcomeAdded: the item landed in the cart and the snapshot refreshed.
	OutcomeAdded Outcome = "added"

	// OutcomeRedirect: the backing cart could not be reached; the shopper
	// must be navigated to RedirectURL, which carries their intent.
	OutcomeRedirect Outcome = "redirect"

	// OutcomeRejected: the backend refused the mutation (e.g. sold out).
	// Cart state is unchanged; the control should offer a retry.
	OutcomeRejected Outcome = "rejected"
)

// AddResult reports what happened to one purchase intent.
type AddResult struct {
	Outcome     Outcome
	State       model.CartState
	Line        model.CartLineItem
	RedirectURL string
	Err         error
}

// Hooks are delegated side effects fired on cart activity: the UI layer
// opens drawers and shows confirmations, this package only signals.
// All fields optional.
type Hooks struct {
	OnCartChanged  func(model.CartState)
	OnAddSucceeded func(model.CartLineItem)
	OnAddFailed    func(error)
	OnRedirect     func(url string)
}

// Config tunes the readiness poll and the fallback link target.
type Config struct {
	// PollInterval between readiness checks. Default 50ms.
	PollInterval time.Duration

	// ReadyTimeout bounds the whole readiness wait. Default 3s.
	ReadyTimeout time.Duration

	// CartBaseURL is the storefront cart page used for permalinks and
	// fallback redirects.
	CartBaseURL string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 3 * time.Second
	}
	return c
}

// Coordinator drives one session's cart. It is the only component that
// decides between the interactive path and the degraded redirect path.
type Coordinator struct {
	store   cart.Store
	offline cart.Store // optional: locally persisted cart to carry over
	catalog *catalog.Cache
	hooks   Hooks
	cfg     Config
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	inflight   *attempt // non-nil while a readiness poll runs
	generation int      // bumps on every reset; stale polls must not promote
}

// attempt tracks one readiness poll. Joiners block on done and then read
// err, which the poll owner sets before closing done. Each attempt owns
// its result so a joiner can never observe a stale outcome from an
// earlier poll.
type attempt struct {
	done chan struct{}
	err  error
}

// New creates a coordinator over the given store.
func New(store cart.Store, cache *catalog.Cache, cfg Config, hooks Hooks, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		catalog: cache,
		hooks:   hooks,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// WithOfflineCarryOver registers a locally persisted cart slot. Fallback
// adds record the requested line there, and the slot's lines fold into
// the backing cart whenever it next becomes ready, so intent recorded
// while the backend was unreachable survives instead of vanishing.
func (c *Coordinator) WithOfflineCarryOver(offline cart.Store) *Coordinator {
	c.offline = offline
	return c
}

// CurrentState returns the coordinator's lifecycle state.
func (c *Coordinator) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EnsureReady resolves immediately when Ready, joins an in-flight
// readiness poll when Initializing, and otherwise polls the backing store
// at PollInterval bounded by ReadyTimeout. A timeout fails only this
// attempt: state returns to Uninitialized so a later call can try again,
// and the caller proceeds on the degraded path instead of blocking.
func (c *Coordinator) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateInitializing:
		a := c.inflight
		c.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	a := &attempt{done: make(chan struct{})}
	c.state = StateInitializing
	c.inflight = a
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	err := c.poll(ctx)

	c.mu.Lock()
	a.err = err
	if c.inflight == a {
		c.inflight = nil
	}
	promoted := err == nil && c.generation == gen
	if promoted {
		c.state = StateReady
	} else {
		// The attempt failed, or the session moved on mid-poll (a
		// fallback bumped the generation). Either way the next call
		// starts a fresh attempt.
		c.state = StateUninitialized
	}
	c.mu.Unlock()
	close(a.done)

	if promoted && c.offline != nil {
		c.carryOver(ctx)
	}
	return err
}

// poll waits for the backing resource to report ready.
func (c *Coordinator) poll(ctx context.Context) error {
	deadline := time.NewTimer(c.cfg.ReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.cfg.PollInterval)
	defer tick.Stop()

	if c.store.Ready(ctx) {
		return nil
	}
	for {
		select {
		case <-tick.C:
			if c.store.Ready(ctx) {
				return nil
			}
		case <-deadline.C:
			c.logger.Warn("cart backend not ready within timeout",
				slog.Duration("timeout", c.cfg.ReadyTimeout))
			return model.NewBackendUnreachableError(
				errors.New("readiness poll timed out"))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AddAndSync records one purchase intent. Deliberately not idempotent:
// each call is an additional intent, so a second identical call doubles
// the quantity (merge-by-sum). Callers debounce duplicate clicks by
// disabling the triggering control, not by relying on the store.
func (c *Coordinator) AddAndSync(ctx context.Context, variantID string, quantity int) AddResult {
	if quantity < 1 {
		err := model.NewValidationError("quantity", "must be >= 1")
		return AddResult{Outcome: OutcomeRejected, Err: err}
	}

	item := c.enrich(ctx, model.CartLineItem{VariantID: variantID, Quantity: quantity})

	if err := c.EnsureReady(ctx); err != nil {
		return c.fallback(ctx, item, err)
	}

	state, err := c.store.AddLineItem(ctx, item)
	if err != nil {
		if errors.Is(err, model.ErrMutationRejected) || errors.Is(err, model.ErrInvalidRequest) {
			// Backend answered and said no: state unchanged, retryable.
			c.fireAddFailed(err)
			return AddResult{Outcome: OutcomeRejected, State: state, Err: err}
		}
		return c.fallback(ctx, item, err)
	}

	snapshot, snapErr := c.store.Snapshot(ctx)
	if snapErr != nil {
		snapshot = state
	}

	c.fireCartChanged(snapshot)
	if c.hooks.OnAddSucceeded != nil {
		c.hooks.OnAddSucceeded(item)
	}
	return AddResult{Outcome: OutcomeAdded, State: snapshot, Line: item}
}

// SetQuantityAndSync applies a quantity change (0 removes) and refreshes.
func (c *Coordinator) SetQuantityAndSync(ctx context.Context, variantID string, quantity int) (model.CartState, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return model.CartState{}, err
	}
	state, err := c.store.SetQuantity(ctx, variantID, quantity)
	if err != nil {
		return state, err
	}
	c.fireCartChanged(state)
	return state, nil
}

// Snapshot returns the current cart view without requiring readiness; an
// unready backing store yields the last-known (possibly empty) state.
func (c *Coordinator) Snapshot(ctx context.Context) (model.CartState, error) {
	return c.store.Snapshot(ctx)
}

// CheckoutLink builds the permalink for the current cart.
func (c *Coordinator) CheckoutLink(ctx context.Context) (string, error) {
	state, err := c.store.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return permalink.Build(state, c.cfg.CartBaseURL), nil
}

// fallback records the intent in the offline slot when one is configured
// and builds the single-item redirect carrying it. The coordinator drops
// back to Uninitialized; a still-pending poll result is ignored via the
// generation counter, so a late success can never promote state the
// shopper has navigated away from.
func (c *Coordinator) fallback(ctx context.Context, item model.CartLineItem, cause error) AddResult {
	c.mu.Lock()
	c.generation++
	if c.inflight == nil {
		c.state = StateUninitialized
	}
	c.mu.Unlock()

	if c.offline != nil {
		// The shopper's request may already be canceled; the slot write
		// must still land.
		if _, err := c.offline.AddLineItem(context.WithoutCancel(ctx), item); err != nil {
			c.logger.Warn("recording offline intent failed",
				slog.String("variant", item.VariantID),
				slog.String("error", err.Error()))
		}
	}

	url := permalink.BuildSingle(item.VariantID, item.Quantity, c.cfg.CartBaseURL)
	c.logger.Warn("cart backend unavailable, falling back to redirect",
		slog.String("variant", item.VariantID),
		slog.Int("quantity", item.Quantity),
		slog.String("url", url),
		slog.String("error", cause.Error()))

	c.fireAddFailed(cause)
	if c.hooks.OnRedirect != nil {
		c.hooks.OnRedirect(url)
	}
	return AddResult{Outcome: OutcomeRedirect, RedirectURL: url, Line: item, Err: cause}
}

// enrich fills display metadata from the catalog when the variant is
// known. A catalog miss degrades silently for this line; the add still
// proceeds with bare id and quantity.
func (c *Coordinator) enrich(ctx context.Context, item model.CartLineItem) model.CartLineItem {
	if c.catalog == nil {
		return item
	}
	product, v, err := c.catalog.FindVariant(ctx, item.VariantID)
	if err != nil {
		return item
	}
	item.ProductTitle = product.Title
	item.VariantTitle = v.Title
	item.UnitPrice = v.Price
	item.ImageURL = v.ImageURL
	return item
}

// carryOver folds offline-persisted lines into the freshly ready backing
// cart, applying Remove → Update → Add, then clears the offline slot.
// Runs on each transition to readiness; an empty slot is a no-op.
func (c *Coordinator) carryOver(ctx context.Context) {
	offlineState, err := c.offline.Snapshot(ctx)
	if err != nil || len(offlineState.Lines) == 0 {
		return
	}
	current, err := c.store.Snapshot(ctx)
	if err != nil {
		return
	}

	desired := cart.MergeLines(current.Lines, offlineState.Lines)
	diff := cart.DiffLines(current.Lines, desired)

	for _, id := range diff.ToRemove {
		if _, err := c.store.RemoveLineItem(ctx, id); err != nil {
			c.logger.Warn("carry-over remove failed", slog.String("variant", id))
			return
		}
	}
	for _, up := range diff.ToUpdate {
		if _, err := c.store.SetQuantity(ctx, up.VariantID, up.NewQuantity); err != nil {
			c.logger.Warn("carry-over update failed", slog.String("variant", up.VariantID))
			return
		}
	}
	for _, line := range diff.ToAdd {
		if _, err := c.store.AddLineItem(ctx, line); err != nil {
			c.logger.Warn("carry-over add failed", slog.String("variant", line.VariantID))
			return
		}
	}

	// Offline intent is now owned by the backing cart.
	for _, line := range offlineState.Lines {
		c.offline.RemoveLineItem(ctx, line.VariantID)
	}
	c.logger.Info("offline cart carried over",
		slog.Int("lines", len(offlineState.Lines)))

	if state, err := c.store.Snapshot(ctx); err == nil {
		c.fireCartChanged(state)
	}
}

func (c *Coordinator) fireCartChanged(state model.CartState) {
	if c.hooks.OnCartChanged != nil {
		c.hooks.OnCartChanged(state)
	}
}

func (c *Coordinator) fireAddFailed(err error) {
	if c.hooks.OnAddFailed != nil {
		c.hooks.OnAddFailed(err)
	}
}
