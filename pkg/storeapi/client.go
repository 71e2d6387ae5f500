// Package storeapi is the HTTP client for the upstream store API that owns
// users, the product catalog and carts. This service never persists any of
// that data itself; every read and write goes through here.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mshuvalov/storefront/internal/models"
)

// Observer receives one sample per upstream call. Implemented by the
// metrics collector; nil disables observation.
type Observer interface {
	ObserveUpstream(op string, status int, d time.Duration)
}

// StatusError is returned for any non-2xx upstream response. Body holds a
// bounded prefix of the response body for surfacing in notifications.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.Status, e.Body)
}

const maxErrorBody = 1 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

func NewClient(baseURL string, observer Observer) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		observer: observer,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.observer != nil {
			c.observer.ObserveUpstream(op, 0, time.Since(start))
		}
		return fmt.Errorf("%s: do request: %w", op, err)
	}
	defer resp.Body.Close()

	if c.observer != nil {
		c.observer.ObserveUpstream(op, resp.StatusCode, time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Login exchanges credentials for an opaque token. No claims are verified
// here; the session layer decides what, if anything, to read out of it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var result struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", body, &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// CreateUser registers a new user and returns its id. The upstream API
// returns nothing but the id.
func (c *Client) CreateUser(ctx context.Context, username, email, password string) (int, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var result struct {
		ID int `json:"id"`
	}
	if err := c.do(ctx, "create_user", http.MethodPost, "/users", body, &result); err != nil {
		return 0, err
	}
	return result.ID, nil
}

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, "products", http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ProductByID(ctx context.Context, id int) (models.Product, error) {
	var product models.Product
	err := c.do(ctx, "product_by_id", http.MethodGet, "/products/"+strconv.Itoa(id), nil, &product)
	return product, err
}

// UserCarts lists a user's carts, optionally bounded by an inclusive
// yyyy-MM-dd date range. Empty bounds are omitted from the query.
func (c *Client) UserCarts(ctx context.Context, userID int, startDate, endDate string) ([]models.Cart, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("startdate", startDate)
	}
	if endDate != "" {
		q.Set("enddate", endDate)
	}
	path := "/carts/user/" + strconv.Itoa(userID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var carts []models.Cart
	if err := c.do(ctx, "user_carts", http.MethodGet, path, nil, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

// CreateCart submits a cart and returns the new cart id. Exactly one
// request is issued per call; retries are the caller's business.
func (c *Client) CreateCart(ctx context.Context, payload models.CartPayload) (int, error) {
	var result struct {
		ID int `json:"id"`
	}
	if err := c.do(ctx, "create_cart", http.MethodPost, "/carts", payload, &result); err != nil {
		return 0, err
	}
	return result.ID, nil
}
