package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Line is one cart line as seen by the client.
type Line struct {
	ID        uint    `json:"id"`
	ProductID uint    `json:"product_id"`
	ColorID   *uint   `json:"color_id,omitempty"`
	SizeID    *uint   `json:"size_id,omitempty"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
}

// Key identifies a product configuration independent of the line id.
type Key struct {
	ProductID uint
	ColorID   uint // 0 when unset
	SizeID    uint // 0 when unset
}

// LineKey returns the dedupe key for a line.
func LineKey(productID uint, colorID, sizeID *uint) Key {
	k := Key{ProductID: productID}
	if colorID != nil {
		k.ColorID = *colorID
	}
	if sizeID != nil {
		k.SizeID = *sizeID
	}
	return k
}

// Config represents the configuration for the cart API client
type Config struct {
	// BaseURL is the API root, e.g. "https://api.example.com/api/v1"
	BaseURL string

	// Token returns the current bearer token, or "" for guests
	Token func() string

	// HTTPClient overrides the default client when set
	HTTPClient *http.Client

	// MaxRetries bounds retry attempts for transient failures
	MaxRetries uint64
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	return nil
}

// Client talks to the cart endpoints of the storefront API. Transient
// failures (network errors and 5xx responses) are retried with exponential
// backoff; everything else fails immediately.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new cart API client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

type addItemRequest struct {
	ProductID uint  `json:"product_id"`
	ColorID   *uint `json:"color_id,omitempty"`
	SizeID    *uint `json:"size_id,omitempty"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	Items []addItemRequest `json:"items"`
}

type wireProduct struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type wireCartItem struct {
	ID        uint        `json:"id"`
	ProductID uint        `json:"product_id"`
	ColorID   *uint       `json:"color_id"`
	SizeID    *uint       `json:"size_id"`
	Quantity  int         `json:"quantity"`
	Product   wireProduct `json:"product"`
}

func (w wireCartItem) toLine() Line {
	return Line{
		ID:        w.ID,
		ProductID: w.ProductID,
		ColorID:   w.ColorID,
		SizeID:    w.SizeID,
		Quantity:  w.Quantity,
		Name:      w.Product.Name,
		UnitPrice: w.Product.Price,
	}
}

type cartResponse struct {
	CartItems []wireCartItem `json:"cart_items"`
	Total     float64        `json:"total"`
}

type cartItemResponse struct {
	CartItem wireCartItem `json:"cart_item"`
}

// GetCart fetches the full server cart.
func (c *Client) GetCart(ctx context.Context) ([]Line, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}

	var resp cartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart response: %w", err)
	}

	lines := make([]Line, 0, len(resp.CartItems))
	for _, item := range resp.CartItems {
		lines = append(lines, item.toLine())
	}
	return lines, nil
}

// AddItem adds a product configuration to the server cart and returns the
// canonical line, which may be an existing line with an increased quantity.
func (c *Client) AddItem(ctx context.Context, productID uint, colorID, sizeID *uint, quantity int) (*Line, error) {
	if quantity < 1 {
		return nil, &ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/cart", addItemRequest{
		ProductID: productID,
		ColorID:   colorID,
		SizeID:    sizeID,
		Quantity:  quantity,
	})
	if err != nil {
		return nil, err
	}

	var resp cartItemResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart item response: %w", err)
	}
	line := resp.CartItem.toLine()
	return &line, nil
}

// UpdateItem sets a line's quantity. Quantities at or below zero remove the
// line; the returned line is nil in that case.
func (c *Client) UpdateItem(ctx context.Context, lineID uint, quantity int) (*Line, error) {
	body, err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/cart/%d", lineID), updateItemRequest{
		Quantity: quantity,
	})
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		return nil, nil
	}

	var resp cartItemResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart item response: %w", err)
	}
	line := resp.CartItem.toLine()
	return &line, nil
}

// RemoveItem deletes a line from the server cart.
func (c *Client) RemoveItem(ctx context.Context, lineID uint) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/cart/%d", lineID), nil)
	return err
}

// ClearCart removes every line from the server cart.
func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/cart", nil)
	return err
}

// MergeGuest submits guest cart lines for merging and returns the resulting
// server cart.
func (c *Client) MergeGuest(ctx context.Context, lines []GuestLine) ([]Line, error) {
	req := mergeRequest{Items: make([]addItemRequest, 0, len(lines))}
	for _, line := range lines {
		req.Items = append(req.Items, addItemRequest{
			ProductID: line.ProductID,
			ColorID:   line.ColorID,
			SizeID:    line.SizeID,
			Quantity:  line.Quantity,
		})
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/cart/merge", req)
	if err != nil {
		return nil, err
	}

	var resp cartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merge response: %w", err)
	}

	merged := make([]Line, 0, len(resp.CartItems))
	for _, item := range resp.CartItems {
		merged = append(merged, item.toLine())
	}
	return merged, nil
}

// doRequest performs one API call with retries on transient failures.
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var result []byte

	operation := func() error {
		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.Token != nil {
			if token := c.config.Token(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport failure, retryable.
			return fmt.Errorf("%w: %v", ErrNetworkError, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetworkError, err)
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{Status: resp.StatusCode}
			if err := json.Unmarshal(body, apiErr); err != nil {
				apiErr.Code = "UNKNOWN"
				apiErr.Message = string(body)
			}
			if apiErr.Retryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		result = body
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.config.MaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}
