package models

// Rating is the aggregate review score the store API attaches to a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is an immutable catalog snapshot fetched from the store API.
type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Description string  `json:"description"`
	Rating      Rating  `json:"rating"`
}

// CartLine is a (productId, quantity) pair inside a cart. A line with a
// missing product id or non-positive quantity is a hole and renders as
// empty space, never as a replacement line.
type CartLine struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

// Cart is read-only once fetched. Date keeps the upstream wire format
// (ISO 8601 timestamp, possibly empty).
type Cart struct {
	ID       int        `json:"id"`
	UserID   int        `json:"userId"`
	Date     string     `json:"date"`
	Products []CartLine `json:"products"`
}

// CartPayload is the create-cart request body sent upstream.
type CartPayload struct {
	UserID   int        `json:"userId"`
	Date     string     `json:"date"`
	Products []CartLine `json:"products"`
}
