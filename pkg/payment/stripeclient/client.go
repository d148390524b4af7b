package stripeclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Intent is the subset of the processor's payment-intent object the
// application cares about.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// Refund is the result of a refund call.
type Refund struct {
	ID     string
	Amount int64
	Status string
}

// Client wraps the Stripe API for payment intents, refunds and webhook
// signature verification.
type Client struct {
	config Config
}

// NewClient creates a new Stripe client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	stripe.Key = config.SecretKey

	return &Client{config: config}, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// CreateIntent creates a payment intent for the given amount in minor units.
// The order id is embedded in the intent metadata so webhook events can be
// routed back to the order.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string, orderID uint) (*Intent, error) {
	if currency == "" {
		currency = c.config.Currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.FormatUint(uint64(orderID), 10))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

// Refund refunds the full amount of a payment intent
func (c *Client) Refund(ctx context.Context, intentID string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &Refund{
		ID:     r.ID,
		Amount: r.Amount,
		Status: string(r.Status),
	}, nil
}

// VerifyEvent verifies the webhook signature against the raw payload and
// returns the parsed event. The payload must be the unmodified request body.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, c.config.WebhookSecret)
	if err != nil {
		return stripe.Event{}, ErrInvalidSignature
	}
	return event, nil
}

func wrapStripeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &UpstreamError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
		}
	}
	return err
}
