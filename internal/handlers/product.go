package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mshuvalov/storefront/internal/catalog"
	"github.com/mshuvalov/storefront/internal/logging"
	"github.com/mshuvalov/storefront/pkg/storeapi"
)

type ProductHandler struct {
	Upstream *storeapi.Client
	Cache    *catalog.Cache
	// Search is nil when no Elasticsearch is configured.
	Search *catalog.SearchIndex
}

// GetProducts returns the full catalog snapshot and, when search is
// enabled, refreshes the index from it. Index failures are logged, not
// surfaced; the catalog itself is what the page needs.
func (h *ProductHandler) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	products, err := h.Upstream.Products(ctx)
	if err != nil {
		l.Error("list_products_failed", "error", err)
		return upstreamHTTPError(err, "cannot load catalog")
	}

	if h.Search != nil {
		if err := h.Search.IndexProducts(ctx, products); err != nil {
			l.Warn("index_products_failed", "error", err)
		}
	}

	return c.JSON(http.StatusOK, products)
}

// GetProduct resolves one product through the read-through cache.
func (h *ProductHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	product, err := h.Cache.Product(ctx, id)
	if err != nil {
		logging.FromContext(ctx).Error("get_product_failed", "product_id", id, "error", err)
		return upstreamHTTPError(err, "cannot load product")
	}

	return c.JSON(http.StatusOK, product)
}

// SearchProducts queries the product index.
func (h *ProductHandler) SearchProducts(c echo.Context) error {
	if h.Search == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search disabled")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), catalog.DefaultPageSize)
	from, limit := catalog.Window(page, size)

	ctx := c.Request().Context()
	total, products, err := h.Search.Search(ctx, q, from, limit)
	if err != nil {
		logging.FromContext(ctx).Error("search_failed", "query", q, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}
