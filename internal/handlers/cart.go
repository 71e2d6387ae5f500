package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mshuvalov/storefront/internal/cart"
	"github.com/mshuvalov/storefront/internal/events"
	"github.com/mshuvalov/storefront/internal/logging"
	"github.com/mshuvalov/storefront/internal/middleware"
	"github.com/mshuvalov/storefront/internal/notify"
	"github.com/mshuvalov/storefront/internal/validation"
	"github.com/mshuvalov/storefront/pkg/storeapi"
)

type CartHandler struct {
	Upstream *storeapi.Client
	Drafts   *cart.Registry
	Notify   *notify.Center
	Producer *events.Producer

	// Now stamps new drafts; overridable in tests.
	Now func() time.Time
}

func (h *CartHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// cartView is one cart with a single page of its lines applied.
type cartView struct {
	ID     int       `json:"id"`
	UserID int       `json:"userId"`
	Date   string    `json:"date"`
	Page   cart.Page `json:"page"`
}

func currentUser(c echo.Context) (int, error) {
	rec := middleware.FromContext(c)
	if rec == nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	userID, ok := rec.CurrentUserID()
	if !ok {
		// Ordinary absence of session state, not a fault.
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return userID, nil
}

// ListCarts returns the user's carts sorted by date descending, each with
// the requested line page applied. The optional date range is inclusive and
// normalized before it reaches the upstream query.
func (h *CartHandler) ListCarts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.list")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	r := cart.ParseRange(c.QueryParam("startdate"), c.QueryParam("enddate"))
	startDate, endDate := r.Query()

	carts, err := h.Upstream.UserCarts(ctx, userID, startDate, endDate)
	if err != nil {
		l.Error("list_carts_failed", "error", err)
		return upstreamHTTPError(err, "cannot load carts")
	}

	pageIndex := parseIntDefault(c.QueryParam("page"), 0)
	pageSize := parseIntDefault(c.QueryParam("size"), cart.DefaultPageSize)

	sorted := cart.SortCarts(carts)
	views := make([]cartView, 0, len(sorted))
	for _, ct := range sorted {
		views = append(views, cartView{
			ID:     ct.ID,
			UserID: ct.UserID,
			Date:   ct.Date,
			Page:   cart.Paginate(ct.Products, pageIndex, pageSize),
		})
	}

	l.Info("carts listed", "count", len(views))
	return c.JSON(http.StatusOK, echo.Map{
		"data": views,
		"meta": echo.Map{
			"startdate": startDate,
			"enddate":   endDate,
			"page":      pageIndex,
			"size":      pageSize,
		},
	})
}

// GetCart pages through one cart's lines independently of the others.
func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	cartID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cart id")
	}

	carts, err := h.Upstream.UserCarts(ctx, userID, "", "")
	if err != nil {
		return upstreamHTTPError(err, "cannot load carts")
	}

	for _, ct := range carts {
		if ct.ID != cartID {
			continue
		}
		pageIndex := parseIntDefault(c.QueryParam("page"), 0)
		pageSize := parseIntDefault(c.QueryParam("size"), cart.DefaultPageSize)
		return c.JSON(http.StatusOK, cartView{
			ID:     ct.ID,
			UserID: ct.UserID,
			Date:   ct.Date,
			Page:   cart.Paginate(ct.Products, pageIndex, pageSize),
		})
	}
	return echo.NewHTTPError(http.StatusNotFound, "cart not found")
}

// OpenDraft seeds a new draft from the current catalog snapshot, replacing
// any draft the session already had.
func (h *CartHandler) OpenDraft(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.draft.open")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	products, err := h.Upstream.Products(ctx)
	if err != nil {
		l.Error("open_draft_failed", "error", err)
		return upstreamHTTPError(err, "cannot load catalog")
	}

	rec := middleware.FromContext(c)
	d := cart.NewDraft(userID, h.now(), products)
	h.Drafts.Open(rec.ID, d)

	l.Info("draft opened", "user_id", userID, "products", len(products))
	return c.JSON(http.StatusOK, echo.Map{
		"userId":  userID,
		"date":    d.OpenedAt,
		"catalog": products,
		"lines":   d.Lines(),
	})
}

// SetDraftQuantity updates one draft line. The quantity arrives as raw JSON
// so that non-numeric input can coerce to 0 instead of failing the bind.
func (h *CartHandler) SetDraftQuantity(c echo.Context) error {
	var req struct {
		ProductID int             `json:"productId"`
		Quantity  json.RawMessage `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	input := validation.QuantityInput{
		ProductID: req.ProductID,
		Quantity:  coerceQuantity(req.Quantity),
	}
	if res := validation.Check(input); !res.Valid {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}

	rec := middleware.FromContext(c)
	d, ok := h.Drafts.Get(rec.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no open draft")
	}

	if err := d.SetQuantity(input.ProductID, input.Quantity); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"productId": input.ProductID,
		"quantity":  input.Quantity,
	})
}

// SubmitDraft issues exactly one create-cart request. Success closes the
// draft; failure keeps it untouched so the user can retry without
// re-entering quantities.
func (h *CartHandler) SubmitDraft(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.draft.submit")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	rec := middleware.FromContext(c)
	d, ok := h.Drafts.Get(rec.ID)
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "no open draft")
	}
	if d.UserID != userID {
		// Left over from a previous login on this cookie; never submit
		// it on someone else's behalf.
		h.Drafts.Close(rec.ID)
		l.Warn("stale draft discarded", "draft_user_id", d.UserID, "user_id", userID)
		return echo.NewHTTPError(http.StatusConflict, "no open draft")
	}

	payload := d.Payload()
	id, err := h.Upstream.CreateCart(ctx, payload)
	if err != nil || id == 0 {
		h.flash(c, "Failed to add cart.", notify.SeverityError)
		l.Error("submit_draft_failed", "error", errStr(err))
		if err != nil {
			return upstreamHTTPError(err, "cannot create cart")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "cannot create cart")
	}

	h.Drafts.Close(rec.ID)
	h.flash(c, "Cart added successfully", "")
	h.publish(c, events.TopicCartEvents, strconv.Itoa(payload.UserID), map[string]any{
		"type":    "cart_created",
		"cart_id": id,
		"user_id": payload.UserID,
		"lines":   len(payload.Products),
	})

	l.Info("cart created", "cart_id", id, "lines", len(payload.Products))
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// CancelDraft discards the session's draft, if any.
func (h *CartHandler) CancelDraft(c echo.Context) error {
	rec := middleware.FromContext(c)
	if rec != nil {
		h.Drafts.Close(rec.ID)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) flash(c echo.Context, message string, severity notify.Severity) {
	rec := middleware.FromContext(c)
	if rec == nil {
		return
	}
	if err := h.Notify.Notify(c.Request().Context(), rec.ID, message, severity); err != nil {
		logging.FromContext(c.Request().Context()).Error("flash failed", "error", err)
	}
}

func (h *CartHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed", "topic", topic, "error", err)
	}
}

// coerceQuantity turns whatever the form sent into a non-negative-or-bust
// integer: numbers truncate, numeric strings parse, anything else is 0.
func coerceQuantity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
