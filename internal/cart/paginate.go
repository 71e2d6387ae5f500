// Package cart holds the client-side cart logic: per-cart line pagination,
// date-descending cart ordering, date-range handling and draft assembly.
package cart

import (
	"sort"
	"time"

	"github.com/mshuvalov/storefront/internal/models"
)

// DefaultPageSize is the fixed row count of a cart table page.
const DefaultPageSize = 5

// Page is one page of a cart's line items.
type Page struct {
	// Lines are the visible lines of this page, holes already skipped.
	Lines []models.CartLine `json:"lines"`
	// Total counts every raw line, holes included.
	Total int `json:"total"`
	// EmptyRows pads the last page to full height. Zero on page 0.
	EmptyRows int `json:"emptyRows"`
}

// Paginate slices lines to [pageIndex*pageSize, pageIndex*pageSize+pageSize)
// and drops holes from the visible slice without replacing them. Padding is
// only ever computed for pages past the first, as
// max(0, (pageIndex+1)*pageSize - len(lines)).
func Paginate(lines []models.CartLine, pageIndex, pageSize int) Page {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	lo := pageIndex * pageSize
	hi := lo + pageSize
	if lo > len(lines) {
		lo = len(lines)
	}
	if hi > len(lines) {
		hi = len(lines)
	}

	visible := make([]models.CartLine, 0, hi-lo)
	for _, line := range lines[lo:hi] {
		if line.ProductID == 0 || line.Quantity <= 0 {
			continue
		}
		visible = append(visible, line)
	}

	emptyRows := 0
	if pageIndex > 0 {
		if pad := (pageIndex+1)*pageSize - len(lines); pad > 0 {
			emptyRows = pad
		}
	}

	return Page{Lines: visible, Total: len(lines), EmptyRows: emptyRows}
}

// SortCarts returns a copy ordered by date descending. The sort is stable
// and carts whose date is absent or unparsable order as epoch zero, i.e.
// oldest, i.e. last.
func SortCarts(carts []models.Cart) []models.Cart {
	out := make([]models.Cart, len(carts))
	copy(out, carts)
	sort.SliceStable(out, func(i, j int) bool {
		return cartTime(out[i]).After(cartTime(out[j]))
	})
	return out
}

func cartTime(c models.Cart) time.Time {
	if c.Date == "" {
		return time.Unix(0, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, c.Date); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}
