package stripeclient

// Config represents the configuration for the Stripe client
type Config struct {
	// SecretKey is the Stripe API secret key
	SecretKey string

	// WebhookSecret is the signing secret for webhook endpoints
	WebhookSecret string

	// Currency is the default three-letter ISO currency code
	Currency string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return ErrInvalidConfig
	}
	if c.Currency == "" {
		return ErrInvalidConfig
	}
	return nil
}
