package shopify

import "encoding/json"

// Wire shapes for the storefront AJAX endpoints. Price fields stay raw
// because Shopify mixes representations across endpoints: cart.js returns
// integer cents, products.json returns decimal strings, and Storefront
// API proxies return {"amount","currencyCode"} objects.

// productsPage is the envelope of GET /products.json.
type productsPage struct {
	Products []wireProduct `json:"products"`
}

type wireProduct struct {
	ID       json.Number   `json:"id"`
	Title    string        `json:"title"`
	Handle   string        `json:"handle"`
	Options  []wireOption  `json:"options"`
	Variants []wireVariant `json:"variants"`
	Images   []wireImage   `json:"images"`
}

type wireOption struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type wireVariant struct {
	ID        json.Number     `json:"id"`
	Title     string          `json:"title"`
	Option1   string          `json:"option1"`
	Option2   string          `json:"option2"`
	Option3   string          `json:"option3"`
	Price     json.RawMessage `json:"price"`
	Available bool            `json:"available"`
	ImageID   json.Number     `json:"image_id"`
}

type wireImage struct {
	ID  json.Number `json:"id"`
	Src string      `json:"src"`
}

// wireCart is the shape of GET /cart.js and of mutation responses.
type wireCart struct {
	Token     string         `json:"token"`
	ItemCount int            `json:"item_count"`
	Items     []wireCartItem `json:"items"`
}

// wireCartItem prices are integer minor units, unlike products.json.
type wireCartItem struct {
	VariantID    json.Number `json:"variant_id"`
	Quantity     int         `json:"quantity"`
	Title        string      `json:"title"`
	ProductTitle string      `json:"product_title"`
	VariantTitle string      `json:"variant_title"`
	Price        json.Number `json:"price"`
	Image        string      `json:"image"`
}

// addRequest is the body of POST /cart/add.js.
type addRequest struct {
	Items []addItem `json:"items"`
}

// addItem ids go out as JSON numbers; the storefront rejects
// non-numeric ids.
type addItem struct {
	ID       json.Number `json:"id"`
	Quantity int         `json:"quantity"`
}

// changeRequest is the body of POST /cart/change.js, keyed by numeric
// variant id.
type changeRequest struct {
	ID       json.Number `json:"id"`
	Quantity int         `json:"quantity"`
}

// wireError is the storefront's error envelope, e.g.
// {"status":422,"message":"Cart Error","description":"...sold out..."}.
type wireError struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}
