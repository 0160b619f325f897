package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hkiendev/cartstore/internal/domain"
)

// CartAPI is the remote cart endpoint group. Consumers define this interface,
// not the HTTP implementation.
type CartAPI interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, req AddItemRequest) (*domain.Cart, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*domain.Cart, error)
	RemoveItem(ctx context.Context, req RemoveItemRequest) (*domain.Cart, error)
	ClearCart(ctx context.Context) error
}

// TokenSource supplies the bearer token for the current session. An empty
// token means guest; the server answers 401 and the store treats the cart as
// absent.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

type AddItemRequest struct {
	SKU      string `json:"sku"`
	Color    string `json:"color,omitempty"`
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity"`
}

type UpdateItemRequest struct {
	SKU      string `json:"sku"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

type RemoveItemRequest struct {
	SKU   string `json:"sku"`
	Color string `json:"color"`
	Size  string `json:"size"`
}

// envelope is the wire format shared by all cart endpoints.
type envelope struct {
	Success bool         `json:"success"`
	Data    *domain.Cart `json:"data"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Client talks to the remote cart REST API. All retry/timeout policy lives
// here; the store above it has no cancellation semantics of its own.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient builds a Client against baseURL. The transport is instrumented
// and guarded by a circuit breaker so a flapping backend fails fast instead
// of stacking up rollback refetches.
func NewClient(baseURL string, tokens TokenSource) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "cart-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:  tokens,
		breaker: cb,
	}
}

// SetHTTPClient overrides the underlying HTTP client (tests, custom TLS).
func (c *Client) SetHTTPClient(hc *http.Client) { c.http = hc }

func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) AddItem(ctx context.Context, req AddItemRequest) (*domain.Cart, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/v1/cart/items", req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) UpdateItem(ctx context.Context, req UpdateItemRequest) (*domain.Cart, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/v1/cart/items", req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) RemoveItem(ctx context.Context, req RemoveItemRequest) (*domain.Cart, error) {
	env, err := c.do(ctx, http.MethodDelete, "/api/v1/cart/items", req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/cart", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve token failed: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("cart api request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusConflict:
		return nil, ErrConflict
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	return &env, nil
}
