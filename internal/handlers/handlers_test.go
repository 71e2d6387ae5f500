package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mshuvalov/storefront/internal/cart"
	"github.com/mshuvalov/storefront/internal/catalog"
	"github.com/mshuvalov/storefront/internal/handlers"
	"github.com/mshuvalov/storefront/internal/middleware"
	"github.com/mshuvalov/storefront/internal/notify"
	"github.com/mshuvalov/storefront/internal/session"
	httpserver "github.com/mshuvalov/storefront/internal/transport/http"
	"github.com/mshuvalov/storefront/pkg/storeapi"
)

// testEnv wires the full route table against an in-memory session store and
// a fake upstream API the test scripts per route.
type testEnv struct {
	echo     *echo.Echo
	upstream *http.ServeMux
	sessions *session.Store
	codec    *session.CookieCodec
	notify   *notify.Center
	drafts   *cart.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&session.Record{}))

	env := &testEnv{
		upstream: http.NewServeMux(),
		sessions: &session.Store{DB: db},
		codec:    &session.CookieCodec{Secret: []byte("test-secret")},
		drafts:   cart.NewRegistry(),
	}
	env.notify = notify.NewCenter(env.sessions, nil)
	t.Cleanup(env.drafts.Stop)

	srv := httptest.NewServer(env.upstream)
	t.Cleanup(srv.Close)
	client := storeapi.NewClient(srv.URL, nil)

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		Session: &middleware.Session{Sessions: env.sessions, Codec: env.codec},
		AuthHandler: &handlers.AuthHandler{
			Upstream: client,
			Sessions: env.sessions,
			Notify:   env.notify,
			Drafts:   env.drafts,
		},
		CartHandler: &handlers.CartHandler{
			Upstream: client,
			Drafts:   env.drafts,
			Notify:   env.notify,
			Now:      func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) },
		},
		ProductHandler: &handlers.ProductHandler{
			Upstream: client,
			Cache:    catalog.NewCache(client, nil),
		},
		NotificationHandler: &handlers.NotificationHandler{Notify: env.notify},
	})
	env.echo = e
	return env
}

// newSession creates a session row and returns its id with a signed cookie.
func (env *testEnv) newSession(t *testing.T) (string, *http.Cookie) {
	t.Helper()

	rec, err := env.sessions.Create(context.Background())
	require.NoError(t, err)
	signed, err := env.codec.Sign(rec.ID)
	require.NoError(t, err)
	return rec.ID, &http.Cookie{Name: session.CookieName, Value: signed}
}

// signIn marks the session as authenticated for the given user.
func (env *testEnv) signIn(t *testing.T, sessionID string, userID int) {
	t.Helper()
	require.NoError(t, env.sessions.SetSession(context.Background(), sessionID, "test-token", userID))
}

func (env *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	env.echo.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
}

// popNotification drains the session's flash slot through the API.
func (env *testEnv) popNotification(t *testing.T, cookie *http.Cookie) *notify.Notification {
	t.Helper()

	rr := env.do(t, http.MethodGet, "/api/notifications", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Notification *notify.Notification `json:"notification"`
	}
	decodeJSON(t, rr, &body)
	return body.Notification
}

// upstreamToken mints a JWT whose subject claim carries the user id, the way
// the store API issues tokens.
func upstreamToken(t *testing.T, userID int) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return signed
}
