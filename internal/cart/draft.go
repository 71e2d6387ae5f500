package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/mshuvalov/storefront/internal/models"
)

var (
	ErrUnknownProduct   = errors.New("product not in draft")
	ErrNegativeQuantity = errors.New("quantity must be zero or more")
)

// isoTimestamp is the wire format of the draft date, a UTC ISO 8601
// timestamp with millisecond precision.
const isoTimestamp = "2006-01-02T15:04:05.000Z"

// Draft is a not-yet-submitted cart. It is seeded from a catalog snapshot
// taken when the creation surface opens and is not re-synced if the catalog
// changes mid-edit. Only entries with quantity > 0 survive submission.
// Safe for concurrent use: one session can be edited from several tabs.
type Draft struct {
	UserID   int
	OpenedAt time.Time

	mu sync.Mutex
	// order preserves catalog order for the payload.
	order      []int
	quantities map[int]int
}

// NewDraft seeds quantity 0 for every product in the snapshot.
func NewDraft(userID int, openedAt time.Time, catalog []models.Product) *Draft {
	d := &Draft{
		UserID:     userID,
		OpenedAt:   openedAt,
		order:      make([]int, 0, len(catalog)),
		quantities: make(map[int]int, len(catalog)),
	}
	for _, p := range catalog {
		if p.ID == 0 {
			continue
		}
		d.order = append(d.order, p.ID)
		d.quantities[p.ID] = 0
	}
	return d
}

// SetQuantity updates one line. Products outside the seeded snapshot are
// rejected, as are negative quantities; coercion of non-numeric input to 0
// happens at the transport edge, before this call.
func (d *Draft) SetQuantity(productID, qty int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.quantities[productID]; !ok {
		return ErrUnknownProduct
	}
	if qty < 0 {
		return ErrNegativeQuantity
	}
	d.quantities[productID] = qty
	return nil
}

// Quantity returns the current quantity for productID, 0 if unknown.
func (d *Draft) Quantity(productID int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quantities[productID]
}

// Lines returns every seeded line in catalog order, zero quantities
// included. This is the editing view, not the submission payload.
func (d *Draft) Lines() []models.CartLine {
	d.mu.Lock()
	defer d.mu.Unlock()

	lines := make([]models.CartLine, 0, len(d.order))
	for _, id := range d.order {
		lines = append(lines, models.CartLine{ProductID: id, Quantity: d.quantities[id]})
	}
	return lines
}

// Payload builds the create-cart body: zero-quantity lines filtered out,
// catalog order preserved, date serialized as a UTC ISO 8601 timestamp.
// It reads the draft without mutating it, so building twice from the same
// state yields identical output.
func (d *Draft) Payload() models.CartPayload {
	d.mu.Lock()
	defer d.mu.Unlock()

	products := make([]models.CartLine, 0, len(d.order))
	for _, id := range d.order {
		if qty := d.quantities[id]; qty > 0 {
			products = append(products, models.CartLine{ProductID: id, Quantity: qty})
		}
	}
	return models.CartPayload{
		UserID:   d.UserID,
		Date:     d.OpenedAt.UTC().Format(isoTimestamp),
		Products: products,
	}
}
