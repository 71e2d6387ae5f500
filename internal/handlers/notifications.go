package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mshuvalov/storefront/internal/middleware"
	"github.com/mshuvalov/storefront/internal/notify"
)

type NotificationHandler struct {
	Notify *notify.Center
}

// Pop returns and clears the session's pending notification. The slot holds
// at most one; expired ones come back as null just like an empty slot.
func (h *NotificationHandler) Pop(c echo.Context) error {
	rec := middleware.FromContext(c)
	if rec == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}

	n, err := h.Notify.Pop(c.Request().Context(), rec.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"notification": n})
}
