// Package handler provides the HTTP surface of the cart service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cartbridge/internal/catalog"
	"cartbridge/internal/coordinator"
	"cartbridge/internal/model"
	"cartbridge/internal/session"
	"cartbridge/internal/variant"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager        *coordinator.Manager
	catalog        *catalog.Cache
	optionSynonyms []string
	logger         *slog.Logger
}

// New creates a Handler over the session manager and catalog cache.
func New(manager *coordinator.Manager, cache *catalog.Cache, optionSynonyms []string, logger *slog.Logger) *Handler {
	return &Handler{
		manager:        manager,
		catalog:        cache,
		optionSynonyms: optionSynonyms,
		logger:         logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Cart operations
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/add", h.handleAdd)
	mux.HandleFunc("POST /cart/change", h.handleChange)
	mux.HandleFunc("GET /cart/permalink", h.handlePermalink)

	// Catalog operations
	mux.HandleFunc("GET /products/{id}/choices", h.handleChoices)
	mux.HandleFunc("POST /catalog/refetch", h.handleRefetch)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === View Types ===

// cartView is the response shape for cart state.
type cartView struct {
	Lines         []lineView `json:"lines"`
	TotalQuantity int        `json:"total_quantity"`
	Subtotal      int64      `json:"subtotal"`
	SubtotalText  string     `json:"subtotal_text"`
}

type lineView struct {
	VariantID    string `json:"variant_id"`
	Quantity     int    `json:"quantity"`
	ProductTitle string `json:"product_title,omitempty"`
	VariantTitle string `json:"variant_title,omitempty"`
	UnitPrice    int64  `json:"unit_price"`
	LineTotal    int64  `json:"line_total"`
	ImageURL     string `json:"image_url,omitempty"`
}

func viewOf(state model.CartState) cartView {
	view := cartView{
		Lines:         make([]lineView, 0, len(state.Lines)),
		TotalQuantity: state.TotalQuantity(),
		Subtotal:      state.Subtotal(),
		SubtotalText:  model.FormatCents(state.Subtotal()),
	}
	for _, line := range state.Lines {
		view.Lines = append(view.Lines, lineView{
			VariantID:    line.VariantID,
			Quantity:     line.Quantity,
			ProductTitle: line.ProductTitle,
			VariantTitle: line.VariantTitle,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.LineTotal(),
			ImageURL:     line.ImageURL,
		})
	}
	return view
}

// addView reports the outcome of an add: the updated cart on success,
// a redirect URL on fallback, or the rejection reason.
type addView struct {
	Outcome     string    `json:"outcome"`
	Cart        *cartView `json:"cart,omitempty"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// choiceView is one selectable purchase option.
type choiceView struct {
	Label     string `json:"label"`
	VariantID string `json:"variant_id"`
	Price     int64  `json:"price"`
	PriceText string `json:"price_text"`
	Available bool   `json:"available"`
}

// === Request Types ===

type addRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type changeRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// === Handlers ===

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	co, err := h.sessionCoordinator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	state, err := co.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(state))
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.VariantID == "" {
		h.writeError(w, model.NewValidationError("variant_id", "required"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	co, err := h.sessionCoordinator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	res := co.AddAndSync(r.Context(), req.VariantID, req.Quantity)
	switch res.Outcome {
	case coordinator.OutcomeAdded:
		view := viewOf(res.State)
		h.writeJSON(w, http.StatusOK, addView{Outcome: "added", Cart: &view})
	case coordinator.OutcomeRedirect:
		h.writeJSON(w, http.StatusOK, addView{
			Outcome:     "redirect",
			RedirectURL: res.RedirectURL,
		})
	default:
		var se *model.StoreError
		reason := "cart mutation rejected"
		status := http.StatusUnprocessableEntity
		if errors.As(res.Err, &se) {
			reason = se.Message
			if se.StatusCode >= 400 {
				status = se.StatusCode
			}
		}
		h.writeJSON(w, status, addView{Outcome: "rejected", Reason: reason})
	}
}

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.VariantID == "" {
		h.writeError(w, model.NewValidationError("variant_id", "required"))
		return
	}

	co, err := h.sessionCoordinator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	state, err := co.SetQuantityAndSync(r.Context(), req.VariantID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(state))
}

func (h *Handler) handlePermalink(w http.ResponseWriter, r *http.Request) {
	co, err := h.sessionCoordinator(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	link, err := co.CheckoutLink(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

func (h *Handler) handleChoices(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	product, err := h.catalog.ResolveProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	choices, err := variant.BuildChoices(product, h.optionSynonyms)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]choiceView, 0, len(choices.Choices))
	for _, c := range choices.Choices {
		views = append(views, choiceView{
			Label:     c.Label,
			VariantID: c.Variant.ID,
			Price:     c.Variant.Price,
			PriceText: model.FormatCents(c.Variant.Price),
			Available: c.Variant.Available,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"product_id": product.ID,
		"title":      product.Title,
		"choices":    views,
	})
}

func (h *Handler) handleRefetch(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refetch(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionCoordinator resolves the shopper's coordinator from the session
// id the middleware placed in the request context.
func (h *Handler) sessionCoordinator(r *http.Request) (*coordinator.Coordinator, error) {
	id, ok := session.FromContext(r.Context())
	if !ok {
		return nil, model.NewValidationError("session", "missing session")
	}
	return h.manager.ForSession(r.Context(), id)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from
// StoreError if present. Uses errors.As() to unwrap error chains.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var storeErr *model.StoreError

	if !errors.As(err, &storeErr) {
		storeErr = model.NewInternalError(err)
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, storeErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    storeErr.Code,
			Message: storeErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
