package shopify

import (
	"fmt"

	"cartbridge/internal/model"
)

// transformProducts converts wire products to the domain model. A variant
// whose price cannot be normalized fails the whole transform: a catalog
// with silently zeroed prices is worse than no catalog.
func transformProducts(wire []wireProduct) ([]model.Product, error) {
	products := make([]model.Product, 0, len(wire))
	for _, wp := range wire {
		p := model.Product{
			ID:     wp.ID.String(),
			Title:  wp.Title,
			Handle: wp.Handle,
		}

		for _, opt := range wp.Options {
			// Positions are 1-based on the wire.
			idx := opt.Position - 1
			if idx < 0 {
				idx = 0
			}
			p.Options = append(p.Options, model.OptionSchema{Name: opt.Name, Index: idx})
		}

		imageByID := make(map[string]string, len(wp.Images))
		for _, img := range wp.Images {
			imageByID[img.ID.String()] = img.Src
		}

		for _, wv := range wp.Variants {
			price, err := model.NormalizePrice(wv.Price)
			if err != nil {
				return nil, fmt.Errorf("product %s variant %s: %w", wp.ID, wv.ID, err)
			}
			v := model.Variant{
				ID:        wv.ID.String(),
				Title:     wv.Title,
				Price:     price,
				Available: wv.Available,
				ImageURL:  imageByID[wv.ImageID.String()],
			}
			// OptionValues stays index-aligned with the option schema; an
			// empty middle value is kept rather than shifting later values.
			raw := []string{wv.Option1, wv.Option2, wv.Option3}
			if n := len(p.Options); n > 0 {
				if n > len(raw) {
					n = len(raw)
				}
				v.OptionValues = append(v.OptionValues, raw[:n]...)
			} else {
				for _, val := range raw {
					if val != "" {
						v.OptionValues = append(v.OptionValues, val)
					}
				}
			}
			p.Variants = append(p.Variants, v)
		}
		products = append(products, p)
	}
	return products, nil
}

// transformCart converts a wire cart to the domain state. Cart prices
// arrive as integer minor units, so no shape sniffing here.
func transformCart(cart wireCart) (model.CartState, error) {
	state := model.CartState{}
	for _, item := range cart.Items {
		price := model.ParseMinorUnits(item.Price.String())
		title := item.ProductTitle
		if title == "" {
			title = item.Title
		}
		state.Lines = append(state.Lines, model.CartLineItem{
			VariantID:    item.VariantID.String(),
			Quantity:     item.Quantity,
			ProductTitle: title,
			VariantTitle: item.VariantTitle,
			UnitPrice:    price,
			ImageURL:     item.Image,
		})
	}
	return state, nil
}
