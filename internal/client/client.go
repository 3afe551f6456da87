// Package client is a typed HTTP client of the storefront API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response. Message is the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// Client calls the storefront API. The zero value is not usable; use New.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type registerResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, name, email, password, role string) (types.User, error) {
	var resp registerResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", registerRequest{
		Name: name, Email: email, Password: password, Role: role,
	}, &resp)
	return resp.User, err
}

// LoginResponse is the token and user summary returned at login.
type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Login authenticates and, on success, starts sending the issued token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return LoginResponse{}, err
	}
	c.token = resp.Token
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (types.User, error) {
	var user types.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user)
	return user, err
}

func (c *Client) ListProducts(ctx context.Context, category string) ([]types.Product, error) {
	path := "/api/products"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var products []types.Product
	err := c.do(ctx, http.MethodGet, path, nil, &products)
	return products, err
}

func (c *Client) GetProduct(ctx context.Context, id string) (types.Product, error) {
	var product types.Product
	err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &product)
	return product, err
}

type createOrderRequest struct {
	Items       []types.OrderItem `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
}

func (c *Client) CreateOrder(ctx context.Context, items []types.OrderItem, total decimal.Decimal) (types.Order, error) {
	var order types.Order
	err := c.do(ctx, http.MethodPost, "/api/orders", createOrderRequest{Items: items, TotalAmount: total}, &order)
	return order, err
}

func (c *Client) MyOrders(ctx context.Context) ([]types.Order, error) {
	var orders []types.Order
	err := c.do(ctx, http.MethodGet, "/api/orders/me", nil, &orders)
	return orders, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
