// MCP transport handler using the official MCP Go SDK.
// Exposes cart and catalog operations as tools so agents can drive a
// shopper session programmatically.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cartbridge/internal/coordinator"
	"cartbridge/internal/model"
	"cartbridge/internal/variant"
)

// mcpDefaultSession is used when a tool call carries no session id.
// Agent sessions that want isolated carts pass their own id.
const mcpDefaultSession = "mcp-default"

// === Tool Input/Output Types ===

// GetCartInput is the input schema for the get_cart tool.
type GetCartInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session id (optional)"`
}

// AddToCartInput is the input schema for the add_to_cart tool.
type AddToCartInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session id (optional)"`
	VariantID string `json:"variant_id" jsonschema:"variant to add,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity, defaults to 1"`
}

// ChangeLineInput is the input schema for the change_line tool.
type ChangeLineInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session id (optional)"`
	VariantID string `json:"variant_id" jsonschema:"variant line to change,required"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity, 0 removes the line,required"`
}

// ProductChoicesInput is the input schema for the product_choices tool.
type ProductChoicesInput struct {
	ProductID string `json:"product_id" jsonschema:"product id, numeric or gid form,required"`
}

// CheckoutLinkInput is the input schema for the checkout_link tool.
type CheckoutLinkInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"cart session id (optional)"`
}

// CheckoutLinkOutput carries the permalink for the session's cart.
type CheckoutLinkOutput struct {
	URL string `json:"url"`
}

// ProductChoicesOutput lists the purchase options for one product.
type ProductChoicesOutput struct {
	ProductID string       `json:"product_id"`
	Title     string       `json:"title"`
	Choices   []choiceView `json:"choices"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cartbridge",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Storefront cart operations. Use product_choices to find " +
				"variant ids, add_to_cart and change_line to edit the cart, and " +
				"checkout_link to get a shareable checkout URL.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart state: lines, quantities, and subtotal.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name: "add_to_cart",
		Description: "Add a variant to the cart. If the cart backend is unavailable " +
			"the result is a redirect URL carrying the item instead.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "change_line",
		Description: "Set the quantity of a cart line. Quantity 0 removes the line.",
	}, h.mcpChangeLine)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "product_choices",
		Description: "List the selectable purchase options (size variants) of a product.",
	}, h.mcpProductChoices)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "checkout_link",
		Description: "Build a checkout permalink for the current cart contents.",
	}, h.mcpCheckoutLink)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpCoordinator(ctx context.Context, sessionID string) (*coordinator.Coordinator, error) {
	if sessionID == "" {
		sessionID = mcpDefaultSession
	}
	return h.manager.ForSession(ctx, sessionID)
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, cartView, error) {
	co, err := h.mcpCoordinator(ctx, input.SessionID)
	if err != nil {
		return nil, cartView{}, err
	}
	state, err := co.Snapshot(ctx)
	if err != nil {
		return nil, cartView{}, err
	}
	return nil, viewOf(state), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, addView, error) {
	if input.VariantID == "" {
		return nil, addView{}, model.NewValidationError("variant_id", "required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	co, err := h.mcpCoordinator(ctx, input.SessionID)
	if err != nil {
		return nil, addView{}, err
	}

	res := co.AddAndSync(ctx, input.VariantID, quantity)
	switch res.Outcome {
	case coordinator.OutcomeAdded:
		view := viewOf(res.State)
		return nil, addView{Outcome: "added", Cart: &view}, nil
	case coordinator.OutcomeRedirect:
		return nil, addView{Outcome: "redirect", RedirectURL: res.RedirectURL}, nil
	default:
		reason := "cart mutation rejected"
		var se *model.StoreError
		if errors.As(res.Err, &se) {
			reason = se.Message
		}
		return nil, addView{Outcome: "rejected", Reason: reason}, nil
	}
}

func (h *Handler) mcpChangeLine(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ChangeLineInput,
) (*mcp.CallToolResult, cartView, error) {
	if input.VariantID == "" {
		return nil, cartView{}, model.NewValidationError("variant_id", "required")
	}

	co, err := h.mcpCoordinator(ctx, input.SessionID)
	if err != nil {
		return nil, cartView{}, err
	}

	state, err := co.SetQuantityAndSync(ctx, input.VariantID, input.Quantity)
	if err != nil {
		return nil, cartView{}, err
	}
	return nil, viewOf(state), nil
}

func (h *Handler) mcpProductChoices(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductChoicesInput,
) (*mcp.CallToolResult, ProductChoicesOutput, error) {
	if input.ProductID == "" {
		return nil, ProductChoicesOutput{}, model.NewValidationError("product_id", "required")
	}

	product, err := h.catalog.ResolveProduct(ctx, input.ProductID)
	if err != nil {
		return nil, ProductChoicesOutput{}, err
	}

	choices, err := variant.BuildChoices(product, h.optionSynonyms)
	if err != nil {
		return nil, ProductChoicesOutput{}, err
	}

	out := ProductChoicesOutput{
		ProductID: product.ID,
		Title:     product.Title,
		Choices:   make([]choiceView, 0, len(choices.Choices)),
	}
	for _, c := range choices.Choices {
		out.Choices = append(out.Choices, choiceView{
			Label:     c.Label,
			VariantID: c.Variant.ID,
			Price:     c.Variant.Price,
			PriceText: model.FormatCents(c.Variant.Price),
			Available: c.Variant.Available,
		})
	}
	return nil, out, nil
}

func (h *Handler) mcpCheckoutLink(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CheckoutLinkInput,
) (*mcp.CallToolResult, CheckoutLinkOutput, error) {
	co, err := h.mcpCoordinator(ctx, input.SessionID)
	if err != nil {
		return nil, CheckoutLinkOutput{}, err
	}
	link, err := co.CheckoutLink(ctx)
	if err != nil {
		return nil, CheckoutLinkOutput{}, err
	}
	return nil, CheckoutLinkOutput{URL: link}, nil
}
