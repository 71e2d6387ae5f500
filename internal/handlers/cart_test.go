package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mshuvalov/storefront/internal/cart"
	"github.com/mshuvalov/storefront/internal/models"
	"github.com/mshuvalov/storefront/internal/notify"
)

func sevenLines() []models.CartLine {
	lines := make([]models.CartLine, 0, 7)
	for i := 1; i <= 7; i++ {
		lines = append(lines, models.CartLine{ProductID: i, Quantity: 1})
	}
	return lines
}

func TestListCartsSortedAndPaged(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /carts/user/15", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.Cart{
			{ID: 1, UserID: 15, Date: "2020-01-02T00:00:00.000Z", Products: sevenLines()},
			{ID: 2, UserID: 15, Date: "2020-03-02T00:00:00.000Z", Products: sevenLines()[:2]},
			{ID: 3, UserID: 15, Products: sevenLines()[:1]},
		})
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)

	rr := env.do(t, http.MethodGet, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []struct {
			ID   int       `json:"id"`
			Date string    `json:"date"`
			Page cart.Page `json:"page"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &resp)

	// Newest first; the cart without a date sorts last.
	require.Len(t, resp.Data, 3)
	require.Equal(t, []int{2, 1, 3}, []int{resp.Data[0].ID, resp.Data[1].ID, resp.Data[2].ID})

	// Page zero of the seven-line cart holds a full page and never pads.
	require.Len(t, resp.Data[1].Page.Lines, 5)
	require.Equal(t, 7, resp.Data[1].Page.Total)
	require.Equal(t, 0, resp.Data[1].Page.EmptyRows)
}

func TestListCartsNormalizesDateRange(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /carts/user/15", func(w http.ResponseWriter, r *http.Request) {
		// Start after end: the end bound was dropped before the query.
		require.Equal(t, "2020-03-01", r.URL.Query().Get("startdate"))
		require.Empty(t, r.URL.Query().Get("enddate"))
		_ = json.NewEncoder(w).Encode([]models.Cart{})
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)

	rr := env.do(t, http.MethodGet, "/api/carts?startdate=2020-03-01&enddate=2020-01-01", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestGetCartPagesIndependently(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /carts/user/15", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.Cart{
			{ID: 4, UserID: 15, Date: "2020-01-02T00:00:00.000Z", Products: sevenLines()},
		})
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)

	rr := env.do(t, http.MethodGet, "/api/carts/4?page=1&size=5", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var view struct {
		ID   int       `json:"id"`
		Page cart.Page `json:"page"`
	}
	decodeJSON(t, rr, &view)
	require.Equal(t, 4, view.ID)
	require.Len(t, view.Page.Lines, 2)
	require.Equal(t, 3, view.Page.EmptyRows)

	rr = env.do(t, http.MethodGet, "/api/carts/99", nil, cookie)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func catalogFixture() []models.Product {
	return []models.Product{
		{ID: 1, Title: "backpack", Price: 109.95},
		{ID: 2, Title: "t-shirt", Price: 22.3},
		{ID: 3, Title: "jacket", Price: 55.99},
	}
}

func openDraft(t *testing.T, env *testEnv, cookie *http.Cookie) {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/carts/draft", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestDraftSubmitHappyPath(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalogFixture())
	})
	env.upstream.HandleFunc("POST /carts", func(w http.ResponseWriter, r *http.Request) {
		var payload models.CartPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, 15, payload.UserID)
		require.Equal(t, "2024-05-01T10:30:00.000Z", payload.Date)
		// Zero-quantity lines were filtered out, order preserved.
		require.Equal(t, []models.CartLine{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 5}}, payload.Products)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 21})
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)
	openDraft(t, env, cookie)

	rr := env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 1, "quantity": 2}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 3, "quantity": 5}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		ID int `json:"id"`
	}
	decodeJSON(t, rr, &resp)
	require.Equal(t, 21, resp.ID)

	n := env.popNotification(t, cookie)
	require.NotNil(t, n)
	require.Equal(t, "Cart added successfully", n.Message)
	require.Equal(t, notify.SeveritySuccess, n.Severity)

	// The draft is consumed by the submit.
	rr = env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDraftSubmitFailureKeepsDraft(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalogFixture())
	})
	fail := true
	env.upstream.HandleFunc("POST /carts", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 22})
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)
	openDraft(t, env, cookie)

	rr := env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 2, "quantity": 1}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	n := env.popNotification(t, cookie)
	require.NotNil(t, n)
	require.Equal(t, "Failed to add cart.", n.Message)
	require.Equal(t, notify.SeverityError, n.Severity)

	// The quantities survived the failed attempt.
	fail = false
	rr = env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestSetDraftQuantityCoercion(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalogFixture())
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)
	openDraft(t, env, cookie)

	// Numeric strings parse.
	rr := env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 1, "quantity": "3"}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Quantity int `json:"quantity"`
	}
	decodeJSON(t, rr, &resp)
	require.Equal(t, 3, resp.Quantity)

	// Garbage coerces to zero.
	rr = env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 1, "quantity": "abc"}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeJSON(t, rr, &resp)
	require.Equal(t, 0, resp.Quantity)

	// Negative quantities are rejected.
	rr = env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 1, "quantity": -1}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// Unknown products are rejected.
	rr = env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 99, "quantity": 1}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLogoutDiscardsDraft(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalogFixture())
	})
	env.upstream.HandleFunc("POST /carts", func(w http.ResponseWriter, r *http.Request) {
		t.Error("a discarded draft must never be submitted")
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)
	openDraft(t, env, cookie)

	rr := env.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// The session row and cookie survive the logout; the next user on
	// this browser must not find the previous user's draft.
	env.signIn(t, sid, 16)
	rr = env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestSubmitRejectsDraftOfAnotherUser(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalogFixture())
	})
	env.upstream.HandleFunc("POST /carts", func(w http.ResponseWriter, r *http.Request) {
		t.Error("a foreign draft must never be submitted")
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)
	openDraft(t, env, cookie)

	// A user switch without a logout still leaves the draft behind.
	env.signIn(t, sid, 16)
	rr := env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusConflict, rr.Code)

	// The stale draft was discarded, not kept around.
	_, ok := env.drafts.Get(sid)
	require.False(t, ok)
}

func TestSetDraftQuantityWithoutDraft(t *testing.T) {
	env := newTestEnv(t)

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)

	rr := env.do(t, http.MethodPut, "/api/carts/draft/items", map[string]any{"productId": 1, "quantity": 1}, cookie)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelDraft(t *testing.T) {
	env := newTestEnv(t)

	env.upstream.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(catalogFixture())
	})

	sid, cookie := env.newSession(t)
	env.signIn(t, sid, 15)
	openDraft(t, env, cookie)

	rr := env.do(t, http.MethodDelete, "/api/carts/draft", nil, cookie)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/carts", nil, cookie)
	require.Equal(t, http.StatusConflict, rr.Code)
}
