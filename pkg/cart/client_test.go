package cart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClient_GetCart(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"cart_items": [
				{"id": 1, "product_id": 10, "quantity": 2, "product": {"name": "Wool Sweater", "price": 80}}
			],
			"count": 1,
			"total": 160
		}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL: server.URL,
		Token:   func() string { return "token123" },
	})
	require.NoError(t, err)

	lines, err := client.GetCart(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer token123", gotAuth)
	require.Len(t, lines, 1)
	assert.Equal(t, uint(1), lines[0].ID)
	assert.Equal(t, uint(10), lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Wool Sweater", lines[0].Name)
	assert.Equal(t, 80.0, lines[0].UnitPrice)
}

func TestClient_GetCart_NoAuthHeaderForGuests(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		w.Write([]byte(`{"cart_items": []}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL: server.URL,
		Token:   func() string { return "" },
	})
	require.NoError(t, err)

	_, err = client.GetCart(context.Background())
	require.NoError(t, err)
	assert.False(t, sawAuth)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "INTERNAL_SERVER_ERROR", "message": "boom"}`))
			return
		}
		w.Write([]byte(`{"cart_items": []}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "PRODUCT_OUT_OF_STOCK", "message": "Insufficient stock"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.AddItem(context.Background(), 1, nil, nil, 99)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "PRODUCT_OUT_OF_STOCK", apiErr.Code)
	assert.False(t, apiErr.Retryable())
}

func TestClient_NetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client, err := NewClient(Config{BaseURL: server.URL, MaxRetries: 1})
	require.NoError(t, err)

	_, err = client.GetCart(context.Background())
	assert.ErrorIs(t, err, ErrNetworkError)
}

func TestClient_AddItem_RejectsNonPositiveQuantity(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:0"})
	require.NoError(t, err)

	_, err = client.AddItem(context.Background(), 1, nil, nil, 0)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "quantity", validationErr.Field)
}

func TestClient_UpdateItem_ZeroQuantityReturnsNoLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		w.Write([]byte(`{"message": "Cart item removed successfully"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	line, err := client.UpdateItem(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Nil(t, line)
}

func TestLineKey(t *testing.T) {
	color := uint(3)
	size := uint(7)

	assert.Equal(t, Key{ProductID: 1}, LineKey(1, nil, nil))
	assert.Equal(t, Key{ProductID: 1, ColorID: 3}, LineKey(1, &color, nil))
	assert.Equal(t, Key{ProductID: 1, ColorID: 3, SizeID: 7}, LineKey(1, &color, &size))
	assert.NotEqual(t, LineKey(1, &color, nil), LineKey(1, nil, &size))
}
