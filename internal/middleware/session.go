package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mshuvalov/storefront/internal/logging"
	"github.com/mshuvalov/storefront/internal/session"
)

// contextKey is where the loaded session record lives on the echo context.
const contextKey = "session_record"

type Session struct {
	Sessions *session.Store
	Codec    *session.CookieCodec
}

// Load resolves the session cookie into a Record, creating a fresh session
// (and cookie) when the cookie is absent, invalid or dangling. Every route
// gets a session; unauthenticated ones still need the flash slot.
func (m *Session) Load(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if ck, err := c.Cookie(session.CookieName); err == nil {
			if sid, err := m.Codec.Parse(ck.Value); err == nil {
				if rec, err := m.Sessions.Get(ctx, sid); err == nil {
					c.Set(contextKey, rec)
					return next(c)
				}
			}
		}

		rec, err := m.Sessions.Create(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
		}
		signed, err := m.Codec.Sign(rec.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
		}
		c.SetCookie(session.CreateCookie(session.CookieName, signed, "/", time.Now().Add(7*24*time.Hour)))
		c.Set(contextKey, rec)
		return next(c)
	}
}

// FromContext returns the session loaded by Load, nil when Load did not run.
func FromContext(c echo.Context) *session.Record {
	rec, _ := c.Get(contextKey).(*session.Record)
	return rec
}

// RequireAuth gates authenticated routes. Absence of a session is ordinary,
// not a fault: pages redirect to /login, API calls get a plain 401.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec := FromContext(c)
		if rec != nil && rec.Authenticated() {
			return next(c)
		}
		logging.FromContext(c.Request().Context()).Debug("unauthenticated request", "path", c.Path())
		if isAPI(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return c.Redirect(http.StatusSeeOther, "/login")
	}
}

// RequireAnon gates the login/register pages: an authenticated visitor is
// sent back to the cart list.
func RequireAnon(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec := FromContext(c)
		if rec != nil && rec.Authenticated() {
			return c.Redirect(http.StatusSeeOther, "/")
		}
		return next(c)
	}
}

func isAPI(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}
