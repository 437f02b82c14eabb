package razorpay

// Config represents the configuration for the Razorpay client
type Config struct {
	// KeyID is the public key id, also handed to the checkout widget
	KeyID string

	// KeySecret signs API calls and payment signatures
	KeySecret string

	// BaseURL is the Razorpay REST API base URL
	BaseURL string

	// Currency used when a request leaves it empty
	Currency string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.KeyID == "" || c.KeySecret == "" {
		return ErrInvalidConfig
	}
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	return nil
}
