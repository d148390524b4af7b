package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrNetworkError wraps transport failures after retries are exhausted
	ErrNetworkError = errors.New("network error")

	// ErrLineNotFound is returned when a cart line id is unknown
	ErrLineNotFound = errors.New("cart line not found")
)

// APIError is a structured error response from the cart API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether the request can be safely retried. Only server
// faults qualify; validation and auth failures will not change on retry.
func (e *APIError) Retryable() bool {
	return e.Status >= 500
}

// ValidationError describes input rejected before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
