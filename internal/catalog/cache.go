// Package catalog provides a process-wide product catalog cache with
// request coalescing over a single upstream fetch.
package catalog

import (
	"context"
	"log/slog"
	"sync"

	"cartbridge/internal/model"
)

// Fetcher loads the full catalog from the storefront backend.
// Implementations page through the catalog (up to 250 products per page)
// and return the complete set.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]model.Product, error)
}

// Cache memoizes the catalog for the process lifetime. The first
// ResolveProduct call triggers exactly one fetch; concurrent callers that
// arrive before it resolves share the in-flight fetch. The catalog is
// written once on first success and never invalidated afterwards; a
// mid-session price change upstream is an accepted staleness window.
// Refetch is the explicit retry after a failed load.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu       sync.Mutex
	loaded   bool
	inflight chan struct{} // non-nil while a fetch is outstanding
	byID     map[string]*model.Product
	fetchErr error // failure recorded from the last attempt
}

// New creates an empty, unloaded cache.
func New(fetcher Fetcher, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		byID:    make(map[string]*model.Product),
	}
}

// ResolveProduct returns the product for the given identifier. The id may
// be numeric, a gid URI, or an encoded gid; unresolvable ids miss as
// not-found. A failed initial fetch leaves the cache resolved to an empty
// catalog: lookups return ErrCatalogUnavailable until Refetch succeeds,
// without any automatic retry storm.
func (c *Cache) ResolveProduct(ctx context.Context, id string) (*model.Product, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetchErr != nil {
		return nil, model.NewCatalogUnavailableError(c.fetchErr)
	}

	key, ok := model.NormalizeVariantID(id)
	if !ok {
		return nil, model.NewProductNotFoundError(id)
	}
	if p, ok := c.byID[key]; ok {
		return p, nil
	}
	return nil, model.NewProductNotFoundError(id)
}

// FindVariant locates a variant by id anywhere in the catalog, for display
// metadata lookups. Same availability rules as ResolveProduct.
func (c *Cache) FindVariant(ctx context.Context, variantID string) (*model.Product, *model.Variant, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetchErr != nil {
		return nil, nil, model.NewCatalogUnavailableError(c.fetchErr)
	}

	key, ok := model.NormalizeVariantID(variantID)
	if !ok {
		return nil, nil, model.NewProductNotFoundError(variantID)
	}
	for _, p := range c.byID {
		for i := range p.Variants {
			id, idOK := model.NormalizeVariantID(p.Variants[i].ID)
			if idOK && id == key {
				return p, &p.Variants[i], nil
			}
		}
	}
	return nil, nil, model.NewProductNotFoundError(variantID)
}

// Refetch discards a failed load and fetches again. It is the only retry
// path; a successful catalog is never replaced.
func (c *Cache) Refetch(ctx context.Context) error {
	c.mu.Lock()
	if c.loaded && c.fetchErr == nil {
		c.mu.Unlock()
		return nil
	}
	c.loaded = false
	c.fetchErr = nil
	c.mu.Unlock()

	return c.ensureLoaded(ctx)
}

// Loaded reports whether a fetch attempt has completed (successfully or not).
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// ensureLoaded performs or joins the single in-flight fetch.
func (c *Cache) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return nil
	}
	if c.inflight != nil {
		// Another caller owns the fetch; wait for it.
		done := c.inflight
		c.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	products, err := c.fetcher.FetchCatalog(ctx)

	c.mu.Lock()
	c.loaded = true
	c.inflight = nil
	if err != nil {
		// Degrade to an empty catalog and record the failure. Callers get
		// ErrCatalogUnavailable, not a crash.
		c.fetchErr = err
		c.byID = make(map[string]*model.Product)
		c.logger.Warn("catalog fetch failed, serving empty catalog",
			slog.String("error", err.Error()))
	} else {
		c.index(products)
		c.logger.Info("catalog loaded", slog.Int("products", len(products)))
	}
	c.mu.Unlock()

	close(done)
	return nil
}

// index builds the id lookup. Entries whose id cannot be normalized are
// skipped individually; one bad identifier never poisons the catalog.
func (c *Cache) index(products []model.Product) {
	c.byID = make(map[string]*model.Product, len(products))
	for i := range products {
		p := &products[i]
		key, ok := model.NormalizeVariantID(p.ID)
		if !ok {
			c.logger.Warn("skipping product with unresolvable id",
				slog.String("id", p.ID), slog.String("title", p.Title))
			continue
		}
		c.byID[key] = p
	}
}
