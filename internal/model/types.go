// Package model defines the core data structures shared by the cart engine:
// catalog products and variants, cart state, and the error taxonomy.
package model

// === Catalog Types ===

// Product is a purchasable catalog entry with its option schema and variants.
// The order of Options defines the index used by each variant's option-value
// tuple: Variants[i].OptionValues[j] is the value for Options[j].
type Product struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Handle   string         `json:"handle,omitempty"`
	Options  []OptionSchema `json:"options"`
	Variants []Variant      `json:"variants"`
}

// OptionSchema names one product option (e.g. "Size") and its position
// within the product's option list.
type OptionSchema struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Variant is a specific purchasable configuration of a product.
// OptionValues has one entry per OptionSchema, in the same order.
type Variant struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	OptionValues []string `json:"option_values"`
	Price        int64    `json:"price"` // minor units (cents)
	Available    bool     `json:"available"`
	ImageURL     string   `json:"image_url,omitempty"`
}

// VariantByID returns the variant with the given id, or nil.
func (p *Product) VariantByID(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// === Cart Types ===

// CartLineItem is one line of the cart. UnitPrice is a snapshot taken at
// add time and may be stale relative to the backend.
type CartLineItem struct {
	VariantID    string `json:"variant_id"`
	Quantity     int    `json:"quantity"`
	ProductTitle string `json:"product_title,omitempty"`
	VariantTitle string `json:"variant_title,omitempty"`
	UnitPrice    int64  `json:"unit_price"` // minor units (cents)
	ImageURL     string `json:"image,omitempty"`
}

// LineTotal returns quantity × unit price in minor units.
func (l CartLineItem) LineTotal() int64 {
	return int64(l.Quantity) * l.UnitPrice
}

// CartState is an ordered, variant-id-unique collection of line items.
// It is owned exclusively by a cart store; callers receive deep copies and
// never mutate shared state directly.
type CartState struct {
	Lines []CartLineItem `json:"lines"`
}

// TotalQuantity sums the quantities of all lines.
func (c CartState) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Subtotal sums quantity × unit price across all lines, in minor units.
func (c CartState) Subtotal() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.LineTotal()
	}
	return total
}

// Line returns the line for the given variant id, or nil.
func (c *CartState) Line(variantID string) *CartLineItem {
	for i := range c.Lines {
		if c.Lines[i].VariantID == variantID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Stores hand clones to readers so an in-flight
// mutation can never produce a torn read.
func (c CartState) Clone() CartState {
	if len(c.Lines) == 0 {
		return CartState{}
	}
	lines := make([]CartLineItem, len(c.Lines))
	copy(lines, c.Lines)
	return CartState{Lines: lines}
}

// Merge folds item into the cart. If the variant is already present its
// quantity is summed (not replaced) and the display metadata is refreshed
// to the latest snapshot; otherwise the line is appended, preserving
// insertion order.
func (c *CartState) Merge(item CartLineItem) {
	if existing := c.Line(item.VariantID); existing != nil {
		existing.Quantity += item.Quantity
		existing.ProductTitle = item.ProductTitle
		existing.VariantTitle = item.VariantTitle
		existing.UnitPrice = item.UnitPrice
		if item.ImageURL != "" {
			existing.ImageURL = item.ImageURL
		}
		return
	}
	c.Lines = append(c.Lines, item)
}

// SetQuantity sets the quantity for a variant. A quantity <= 0 removes the
// line entirely; this is the single removal primitive.
func (c *CartState) SetQuantity(variantID string, quantity int) {
	if quantity <= 0 {
		for i := range c.Lines {
			if c.Lines[i].VariantID == variantID {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return
			}
		}
		return
	}
	if existing := c.Line(variantID); existing != nil {
		existing.Quantity = quantity
	}
}

// PermalinkSegment is one variant:quantity pair of a checkout permalink,
// derived read-only from CartState at build time.
type PermalinkSegment struct {
	VariantID string // numeric form
	Quantity  int
}
