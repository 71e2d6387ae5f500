package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mshuvalov/storefront/internal/cart"
	"github.com/mshuvalov/storefront/internal/events"
	"github.com/mshuvalov/storefront/internal/logging"
	"github.com/mshuvalov/storefront/internal/middleware"
	"github.com/mshuvalov/storefront/internal/notify"
	"github.com/mshuvalov/storefront/internal/session"
	"github.com/mshuvalov/storefront/internal/validation"
	"github.com/mshuvalov/storefront/pkg/storeapi"
)

type AuthHandler struct {
	Upstream *storeapi.Client
	Sessions *session.Store
	Notify   *notify.Center
	Producer *events.Producer
	Drafts   *cart.Registry
}

// upstreamHTTPError mirrors an upstream status when there is one, otherwise
// reports a bad gateway.
func upstreamHTTPError(err error, msg string) *echo.HTTPError {
	var se *storeapi.StatusError
	if errors.As(err, &se) && se.Status >= 400 && se.Status <= 599 {
		return echo.NewHTTPError(se.Status, msg)
	}
	return echo.NewHTTPError(http.StatusBadGateway, msg)
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed", "topic", topic, "error", err)
	}
}

func (h *AuthHandler) flash(c echo.Context, message string, severity notify.Severity) {
	rec := middleware.FromContext(c)
	if rec == nil {
		return
	}
	if err := h.Notify.Notify(c.Request().Context(), rec.ID, message, severity); err != nil {
		logging.FromContext(c.Request().Context()).Error("flash failed", "error", err)
	}
}

// Login exchanges credentials for an upstream token and stores it in the
// session. On failure nothing is stored and a single error notification is
// queued; the browser stays where it was.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req validation.LoginInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if res := validation.Check(req); !res.Valid {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}

	token, err := h.Upstream.Login(ctx, req.Username, req.Password)
	if err != nil || token == "" {
		msg := "Login failed."
		var se *storeapi.StatusError
		if errors.As(err, &se) && se.Body != "" {
			msg = "Login failed. " + se.Body
		}
		h.flash(c, msg, notify.SeverityError)
		l.Warn("login_failed", "username", req.Username, "error", errStr(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "login failed")
	}

	// The token is opaque, but when it happens to be a JWT the subject
	// claim is the user id the cart endpoints need.
	userID := session.UserIDFromToken(token)

	rec := middleware.FromContext(c)
	if err := h.Sessions.SetSession(ctx, rec.ID, token, userID); err != nil {
		l.Error("login_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.flash(c, "Login successful", "")
	h.publish(c, events.TopicUserEvents, req.Username, map[string]any{
		"type":     "user_logged_in",
		"user_id":  userID,
		"username": req.Username,
	})

	l.Info("user logged in", "user_id", userID)
	return c.JSON(http.StatusOK, echo.Map{"authenticated": true, "userId": userID})
}

// Register creates the user upstream. The create-user endpoint returns
// nothing but the id, so the id doubles as the session token.
func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req validation.RegisterInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if res := validation.Check(req); !res.Valid {
		return c.JSON(http.StatusUnprocessableEntity, res)
	}

	id, err := h.Upstream.CreateUser(ctx, req.Username, req.Email, req.Password)
	if err != nil || id == 0 {
		h.flash(c, "Registration failed.", notify.SeverityError)
		l.Warn("register_failed", "username", req.Username, "error", errStr(err))
		if err != nil {
			return upstreamHTTPError(err, "registration failed")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "registration failed")
	}

	rec := middleware.FromContext(c)
	if err := h.Sessions.SetSession(ctx, rec.ID, strconv.Itoa(id), id); err != nil {
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.flash(c, "Registration successful", "")
	h.publish(c, events.TopicUserEvents, strconv.Itoa(id), map[string]any{
		"type":     "user_registered",
		"user_id":  id,
		"username": req.Username,
	})

	l.Info("user registered", "user_id", id)
	return c.JSON(http.StatusOK, echo.Map{"authenticated": true, "userId": id})
}

// Logout clears both session cells and returns to the login page.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.clearSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutPage is the GET /logout route: clear, notify, redirect.
func (h *AuthHandler) LogoutPage(c echo.Context) error {
	if err := h.clearSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) clearSession(c echo.Context) error {
	ctx := c.Request().Context()
	rec := middleware.FromContext(c)
	if rec == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}
	if err := h.Sessions.Clear(ctx, rec.ID); err != nil {
		logging.FromContext(ctx).Error("logout failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	// The session row outlives the logout; the draft must not, or the
	// next user on this cookie would inherit it.
	if h.Drafts != nil {
		h.Drafts.Close(rec.ID)
	}
	h.flash(c, "Logout successful", "")
	return nil
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
