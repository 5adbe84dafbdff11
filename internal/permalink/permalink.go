// Package permalink serializes cart state into the deep-link URL the
// storefront backend accepts to pre-populate its cart page.
package permalink

import (
	"fmt"
	"net/url"
	"strings"

	"cartbridge/internal/model"
)

// Build serializes cart lines into a checkout permalink:
//
//	<baseCartURL>/<variantID>:<qty>[,<variantID>:<qty>...]
//
// Lines are emitted in stable insertion order. A line whose variant id
// cannot be normalized to numeric form is omitted, never aborting the
// build. An empty cart, or a cart where every line fails normalization,
// degrades to baseCartURL unchanged.
func Build(cart model.CartState, baseCartURL string) string {
	base := strings.TrimSuffix(baseCartURL, "/")
	if len(cart.Lines) == 0 {
		return base
	}

	segments := make([]string, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		id, ok := model.NormalizeVariantID(line.VariantID)
		if !ok || line.Quantity < 1 {
			continue
		}
		segments = append(segments,
			fmt.Sprintf("%s:%s", url.PathEscape(id), url.PathEscape(fmt.Sprintf("%d", line.Quantity))))
	}

	if len(segments) == 0 {
		return base
	}
	return base + "/" + strings.Join(segments, ",")
}

// BuildSingle builds the fallback redirect for exactly one just-requested
// (variant, quantity) pair. It is used when the interactive cart backend cannot
// be reached, so the shopper's intent is carried in the URL instead of
// being dropped.
//
// When the id normalizes, the result equals Build of a one-line cart. An
// unresolvable id falls back to the storefront's add-by-query form
// (<base>/add?id=...&quantity=...), which accepts the raw identifier.
func BuildSingle(variantID string, quantity int, baseCartURL string) string {
	base := strings.TrimSuffix(baseCartURL, "/")
	if quantity < 1 {
		quantity = 1
	}

	if _, ok := model.NormalizeVariantID(variantID); ok {
		return Build(model.CartState{Lines: []model.CartLineItem{
			{VariantID: variantID, Quantity: quantity},
		}}, base)
	}

	return fmt.Sprintf("%s/add?id=%s&quantity=%d",
		base, url.QueryEscape(variantID), quantity)
}
