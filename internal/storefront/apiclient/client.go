// Package apiclient talks to the storefront REST API on behalf of the shopper.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ikkim/quickcart-backend/internal/storefront/catalog"
	"github.com/ikkim/quickcart-backend/internal/storefront/checkout"
	"github.com/ikkim/quickcart-backend/pkg/logger"
)

// APIError is a non-2xx response. Message is the server's text for the shopper.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends the access token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for baseURL, e.g. http://localhost:8080/api/v1
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ catalog.Source       = (*Client)(nil)
	_ checkout.Gateway     = (*Client)(nil)
	_ checkout.OrderPlacer = (*Client)(nil)
)

func (c *Client) ProductsByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))

	var resp struct {
		Products []catalog.Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/by-ids?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

func (c *Client) CreateGatewayOrder(ctx context.Context, amount int64, currency string) (*checkout.GatewayOrder, error) {
	body := map[string]interface{}{"amount": amount}
	if currency != "" {
		body["currency"] = currency
	}

	var order checkout.GatewayOrder
	if err := c.do(ctx, http.MethodPost, "/payments/create-order", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifyPayment reports a rejected signature as a failure verdict, not an error.
func (c *Client) VerifyPayment(ctx context.Context, result checkout.PaymentResult) (*checkout.VerifyResult, error) {
	var verdict checkout.VerifyResult
	err := c.do(ctx, http.MethodPost, "/payments/verify", result, &verdict)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return &checkout.VerifyResult{Status: "failure", Message: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req checkout.OrderRequest) (*checkout.OrderReceipt, error) {
	var receipt checkout.OrderReceipt
	if err := c.do(ctx, http.MethodPost, "/orders", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Role       string `json:"role"`
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthResult struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProfileByEmail fetches the profile used to prefill the checkout form.
func (c *Client) ProfileByEmail(ctx context.Context, email string) (*User, error) {
	q := url.Values{}
	q.Set("email", email)

	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/profile?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &errBody) == nil {
			apiErr.Code, apiErr.Message = errBody.Error, errBody.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		logger.Debug("API request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
