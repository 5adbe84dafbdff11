package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cartbridge/internal/model"
)

// newTestClient points a client at the test server with a plain transport;
// the TLS fingerprint layer is exercised separately.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{StoreURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.httpClient = srv.Client()
	return c
}

func TestFetchCatalog_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"products":[{
			"id": 100,
			"title": "Body Butter",
			"handle": "body-butter",
			"options": [{"name":"Size","position":1}],
			"images": [{"id": 9, "src": "https://cdn.example.com/butter.jpg"}],
			"variants": [
				{"id": 111, "title": "8oz", "option1": "8oz", "price": "10.00", "available": true, "image_id": 9},
				{"id": 112, "title": "4oz", "option1": "4oz", "price": "6.00", "available": true}
			]
		}]}`)
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv).FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	p := products[0]
	if p.ID != "100" || p.Handle != "body-butter" {
		t.Errorf("product = %+v", p)
	}
	if len(p.Options) != 1 || p.Options[0].Index != 0 {
		t.Errorf("options = %+v, want Size at index 0", p.Options)
	}
	if len(p.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(p.Variants))
	}
	if p.Variants[0].Price != 1000 || p.Variants[1].Price != 600 {
		t.Errorf("prices = %d/%d, want 1000/600", p.Variants[0].Price, p.Variants[1].Price)
	}
	if p.Variants[0].ImageURL != "https://cdn.example.com/butter.jpg" {
		t.Errorf("image = %q", p.Variants[0].ImageURL)
	}
	if p.Variants[1].ImageURL != "" {
		t.Errorf("variant without image_id got %q", p.Variants[1].ImageURL)
	}
	if got := p.Variants[0].OptionValues; len(got) != 1 || got[0] != "8oz" {
		t.Errorf("option values = %v", got)
	}
}

func TestFetchCatalog_PagesUntilShortPage(t *testing.T) {
	pages := map[string]int{"1": catalogPageSize, "2": 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := pages[r.URL.Query().Get("page")]
		products := make([]map[string]any, n)
		for i := range products {
			products[i] = map[string]any{
				"id":       i + 1,
				"title":    "P",
				"variants": []map[string]any{{"id": i + 1000, "price": "1.00"}},
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"products": products})
	}))
	defer srv.Close()

	products, err := newTestClient(t, srv).FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if len(products) != catalogPageSize+3 {
		t.Errorf("products = %d, want %d", len(products), catalogPageSize+3)
	}
}

func TestFetchCatalog_PriceShapes(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  int64
	}{
		{"decimal string", `"10.00"`, 1000},
		{"bare number", `10.0`, 1000},
		{"money object", `{"amount":"10.00","currency_code":"USD"}`, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"products":[{"id":1,"title":"P","variants":[{"id":2,"price":%s}]}]}`, tt.price)
			}))
			defer srv.Close()

			products, err := newTestClient(t, srv).FetchCatalog(context.Background())
			if err != nil {
				t.Fatalf("FetchCatalog: %v", err)
			}
			if got := products[0].Variants[0].Price; got != tt.want {
				t.Errorf("price = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetCart_MinorUnitPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart.js" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"token":"abc","item_count":2,"items":[
			{"variant_id": 112, "quantity": 2, "product_title": "Body Butter",
			 "variant_title": "4oz", "price": 600, "image": "https://cdn.example.com/b.jpg"}
		]}`)
	}))
	defer srv.Close()

	state, err := newTestClient(t, srv).GetCart(context.Background())
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(state.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(state.Lines))
	}
	line := state.Lines[0]
	if line.VariantID != "112" || line.UnitPrice != 600 || line.Quantity != 2 {
		t.Errorf("line = %+v", line)
	}
	if state.Subtotal() != 1200 {
		t.Errorf("Subtotal = %d, want 1200", state.Subtotal())
	}
}

func TestAddItems_PostsNumericVariantIDs(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart/add.js" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		raw, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		variantID string
	}{
		{"bare id", "112"},
		{"gid form", "gid://shopify/ProductVariant/112"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestClient(t, srv).AddItems(context.Background(), []model.CartLineItem{
				{VariantID: tt.variantID, Quantity: 2},
			})
			if err != nil {
				t.Fatalf("AddItems: %v", err)
			}
			// The wire id must be a JSON number, not a string.
			if want := `{"items":[{"id":112,"quantity":2}]}`; string(raw) != want {
				t.Errorf("posted %s, want %s", raw, want)
			}
		})
	}
}

func TestAddItems_RejectsNonNumericVariantID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the storefront")
	}))
	defer srv.Close()

	err := newTestClient(t, srv).AddItems(context.Background(), []model.CartLineItem{
		{VariantID: "not-a-variant", Quantity: 1},
	})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestChangeItem_PostsNumericVariantID(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"items":[]}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).ChangeItem(context.Background(), "gid://shopify/ProductVariant/112", 3)
	if err != nil {
		t.Fatalf("ChangeItem: %v", err)
	}
	if want := `{"id":112,"quantity":3}`; string(raw) != want {
		t.Errorf("posted %s, want %s", raw, want)
	}
}

func TestChangeItem_RejectionCarriesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"status":422,"message":"Cart Error","description":"All 4oz are sold out"}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).ChangeItem(context.Background(), "112", 3)
	if !errors.Is(err, model.ErrMutationRejected) {
		t.Fatalf("error = %v, want ErrMutationRejected", err)
	}
	var se *model.StoreError
	if !errors.As(err, &se) {
		t.Fatal("error is not a StoreError")
	}
	if se.StatusCode != 422 || se.Message != "All 4oz are sold out" {
		t.Errorf("StoreError = %+v", se)
	}
}

func TestDoJSON_ServerErrorIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GetCart(context.Background())
	if !errors.Is(err, model.ErrBackendUnreachable) {
		t.Errorf("error = %v, want ErrBackendUnreachable", err)
	}
}

func TestDoJSON_ConnectionRefusedIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	c, err := New(Config{StoreURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.httpClient = http.DefaultClient

	_, err = c.GetCart(context.Background())
	if !errors.Is(err, model.ErrBackendUnreachable) {
		t.Errorf("error = %v, want ErrBackendUnreachable", err)
	}
}
