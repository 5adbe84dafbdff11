// Package shopify talks to a storefront's AJAX endpoints: the public
// products.json catalog feed and the cart.js family of cart operations.
// It backs both the catalog cache and the remote cart store.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"cartbridge/internal/model"
	"cartbridge/internal/transport"
)

// catalogPageSize is the storefront's maximum for products.json.
const catalogPageSize = 250

// Config holds storefront connection settings.
type Config struct {
	// StoreURL is the storefront origin, e.g. https://dnaturalbody.com.
	StoreURL string

	// Timeout per HTTP call. Default 30s.
	Timeout time.Duration
}

// Client is one session's view of the storefront. The cart endpoints key
// the cart off the session cookie, so each shopper session needs its own
// Client (own cookie jar); the catalog endpoints are session-free and any
// Client can serve them.
type Client struct {
	httpClient *http.Client
	storeURL   string
}

// New creates a client with a fresh cookie jar.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	// Chrome TLS fingerprint transport: storefront CDNs rate-limit or block
	// clients with non-browser JA3 signatures.
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: transport.NewBrowserTransport(timeout),
		},
		storeURL: strings.TrimSuffix(cfg.StoreURL, "/"),
	}, nil
}

// FetchCatalog pages through products.json until a short page, returning
// the full catalog. Implements the catalog fetcher contract.
func (c *Client) FetchCatalog(ctx context.Context) ([]model.Product, error) {
	var all []model.Product
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/products.json?limit=%d&page=%d", c.storeURL, catalogPageSize, page)
		var envelope productsPage
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &envelope); err != nil {
			return nil, err
		}
		products, err := transformProducts(envelope.Products)
		if err != nil {
			return nil, err
		}
		all = append(all, products...)
		if len(envelope.Products) < catalogPageSize {
			return all, nil
		}
	}
}

// GetCart returns the session's cart state.
func (c *Client) GetCart(ctx context.Context) (model.CartState, error) {
	var cart wireCart
	if err := c.doJSON(ctx, http.MethodGet, c.storeURL+"/cart.js", nil, &cart); err != nil {
		return model.CartState{}, err
	}
	return transformCart(cart)
}

// AddItems posts the lines to cart/add.js. Variant ids are normalized to
// their numeric form first, so gid-style ids reach the storefront as the
// numbers it expects.
func (c *Client) AddItems(ctx context.Context, items []model.CartLineItem) error {
	body := addRequest{Items: make([]addItem, 0, len(items))}
	for _, item := range items {
		id, ok := model.NormalizeVariantID(item.VariantID)
		if !ok {
			return model.NewValidationError("variant_id", "not a numeric variant id: "+item.VariantID)
		}
		body.Items = append(body.Items, addItem{ID: json.Number(id), Quantity: item.Quantity})
	}
	return c.doJSON(ctx, http.MethodPost, c.storeURL+"/cart/add.js", body, nil)
}

// ChangeItem sets the quantity for one variant line. Quantity 0 removes.
func (c *Client) ChangeItem(ctx context.Context, variantID string, quantity int) error {
	id, ok := model.NormalizeVariantID(variantID)
	if !ok {
		return model.NewValidationError("variant_id", "not a numeric variant id: "+variantID)
	}
	body := changeRequest{ID: json.Number(id), Quantity: quantity}
	return c.doJSON(ctx, http.MethodPost, c.storeURL+"/cart/change.js", body, nil)
}

// userAgent matches the transport's Chrome fingerprint; a mismatched UA
// alone is enough for some WAFs to flag the request.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// doJSON executes one request and decodes a JSON response into out when
// out is non-nil. Transport-level failures map to the unreachable error;
// HTTP error statuses map to the rejected-mutation error carrying the
// storefront's description.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewBackendUnreachableError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewBackendUnreachableError(err)
	}

	if resp.StatusCode >= 400 {
		return parseStorefrontError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// parseStorefrontError maps an error status to the cart error taxonomy.
// The description field carries the shopper-facing reason ("All 4oz are
// sold out" and the like) when the storefront provides one.
func parseStorefrontError(statusCode int, body []byte) error {
	var se wireError
	json.Unmarshal(body, &se) // best effort

	msg := se.Description
	if msg == "" {
		msg = se.Message
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusNotFound:
		return model.NewProductNotFoundError(msg)
	case statusCode >= 500:
		return model.NewBackendUnreachableError(
			fmt.Errorf("storefront status %d: %s", statusCode, msg))
	default:
		return model.NewMutationRejectedError(statusCode, msg)
	}
}
