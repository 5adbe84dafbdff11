package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cartbridge/internal/cart"
	"cartbridge/internal/catalog"
	"cartbridge/internal/coordinator"
	"cartbridge/internal/model"
	"cartbridge/internal/session"
)

// memStore is a ready in-memory cart.Store for handler tests.
type memStore struct {
	mu     sync.Mutex
	state  model.CartState
	ready  bool
	addErr error
}

func (s *memStore) Ready(ctx context.Context) bool { return s.ready }

func (s *memStore) AddLineItem(ctx context.Context, item model.CartLineItem) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.state.Clone(), s.addErr
	}
	s.state.Merge(item)
	return s.state.Clone(), nil
}

func (s *memStore) SetQuantity(ctx context.Context, variantID string, quantity int) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetQuantity(variantID, quantity)
	return s.state.Clone(), nil
}

func (s *memStore) RemoveLineItem(ctx context.Context, variantID string) (model.CartState, error) {
	return s.SetQuantity(ctx, variantID, 0)
}

func (s *memStore) Snapshot(ctx context.Context) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

type fixtureFetcher struct{}

func (fixtureFetcher) FetchCatalog(ctx context.Context) ([]model.Product, error) {
	return []model.Product{
		{
			ID:      "100",
			Title:   "Body Butter",
			Options: []model.OptionSchema{{Name: "Size", Index: 0}},
			Variants: []model.Variant{
				{ID: "111", Title: "8oz", OptionValues: []string{"8oz"}, Price: 1000, Available: true},
				{ID: "112", Title: "4oz", OptionValues: []string{"4oz"}, Price: 600, Available: true},
			},
		},
	}, nil
}

func newTestHandler(t *testing.T, store *memStore) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := catalog.New(fixtureFetcher{}, logger)
	factory := func(ctx context.Context, sessionID string) (cart.Store, error) {
		return store, nil
	}
	cfg := coordinator.Config{
		PollInterval: time.Millisecond,
		ReadyTimeout: 20 * time.Millisecond,
		CartBaseURL:  "https://shop.example.com/cart",
	}
	manager := coordinator.NewManager(factory, cache, cfg, coordinator.Hooks{}, logger)
	return New(manager, cache, []string{"Size"}, logger)
}

func serve(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(session.WithSessionID(req.Context(), "test-session"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleAdd_Added(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := serve(t, h, http.MethodPost, "/cart/add", `{"variant_id":"112","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp addView
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Outcome != "added" || resp.Cart == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Cart.TotalQuantity != 2 || resp.Cart.Subtotal != 1200 {
		t.Errorf("cart = %+v, want qty 2 subtotal 1200", resp.Cart)
	}
	// Metadata enriched from the catalog.
	if resp.Cart.Lines[0].ProductTitle != "Body Butter" {
		t.Errorf("line = %+v", resp.Cart.Lines[0])
	}
}

func TestHandleAdd_DefaultsQuantityToOne(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := serve(t, h, http.MethodPost, "/cart/add", `{"variant_id":"112"}`)

	var resp addView
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Cart == nil || resp.Cart.TotalQuantity != 1 {
		t.Errorf("resp = %+v, want quantity 1", resp)
	}
}

func TestHandleAdd_RedirectWhenBackendDown(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: false})

	rec := serve(t, h, http.MethodPost, "/cart/add", `{"variant_id":"112","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp addView
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Outcome != "redirect" {
		t.Fatalf("outcome = %q, want redirect", resp.Outcome)
	}
	if resp.RedirectURL != "https://shop.example.com/cart/112:2" {
		t.Errorf("redirect = %q", resp.RedirectURL)
	}
}

func TestHandleAdd_RejectedSurfacesReason(t *testing.T) {
	store := &memStore{ready: true, addErr: model.NewMutationRejectedError(422, "All 4oz are sold out")}
	h := newTestHandler(t, store)

	rec := serve(t, h, http.MethodPost, "/cart/add", `{"variant_id":"112"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var resp addView
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Outcome != "rejected" || resp.Reason != "All 4oz are sold out" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleAdd_MissingVariantIs400(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := serve(t, h, http.MethodPost, "/cart/add", `{"quantity":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAdd_InvalidJSONIs400(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := serve(t, h, http.MethodPost, "/cart/add", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChange_ZeroRemovesLine(t *testing.T) {
	store := &memStore{ready: true}
	h := newTestHandler(t, store)

	serve(t, h, http.MethodPost, "/cart/add", `{"variant_id":"112","quantity":2}`)
	rec := serve(t, h, http.MethodPost, "/cart/change", `{"variant_id":"112","quantity":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp cartView
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Lines) != 0 {
		t.Errorf("lines = %+v, want empty", resp.Lines)
	}
}

func TestHandleGetCart(t *testing.T) {
	store := &memStore{ready: true}
	store.state.Merge(model.CartLineItem{VariantID: "112", Quantity: 3, UnitPrice: 600})
	h := newTestHandler(t, store)

	rec := serve(t, h, http.MethodGet, "/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp cartView
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.TotalQuantity != 3 || resp.Subtotal != 1800 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.SubtotalText != "$18.00" {
		t.Errorf("SubtotalText = %q", resp.SubtotalText)
	}
}

func TestHandlePermalink(t *testing.T) {
	store := &memStore{ready: true}
	store.state.Merge(model.CartLineItem{VariantID: "112", Quantity: 2})
	store.state.Merge(model.CartLineItem{VariantID: "111", Quantity: 1})
	h := newTestHandler(t, store)

	rec := serve(t, h, http.MethodGet, "/cart/permalink", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["url"] != "https://shop.example.com/cart/112:2,111:1" {
		t.Errorf("url = %q", resp["url"])
	}
}

func TestHandleChoices(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := serve(t, h, http.MethodGet, "/products/100/choices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ProductID string       `json:"product_id"`
		Title     string       `json:"title"`
		Choices   []choiceView `json:"choices"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Title != "Body Butter" || len(resp.Choices) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Choices[0].Label != "8oz" || resp.Choices[0].VariantID != "111" {
		t.Errorf("choice = %+v", resp.Choices[0])
	}
	if resp.Choices[1].PriceText != "$6.00" {
		t.Errorf("price text = %q", resp.Choices[1].PriceText)
	}
}

func TestHandleChoices_UnknownProductIs404(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := serve(t, h, http.MethodGet, "/products/999/choices", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "PRODUCT_NOT_FOUND") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	for _, path := range []string{"/health", "/healthz"} {
		rec := serve(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestWriteError_UnexpectedErrorIs500(t *testing.T) {
	h := newTestHandler(t, &memStore{ready: true})

	rec := httptest.NewRecorder()
	h.writeError(rec, io.ErrUnexpectedEOF)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", resp.Error.Code)
	}
	// Internal detail must not leak.
	if strings.Contains(resp.Error.Message, "EOF") {
		t.Errorf("message leaks internals: %q", resp.Error.Message)
	}
}
