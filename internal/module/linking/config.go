package linking

import "time"

// Config holds linking module configuration.
type Config struct {
	// TokenExpiry is how long an invite token is valid.
	TokenExpiry time.Duration

	// RequestExpiry is how long a link request is valid.
	RequestExpiry time.Duration

	// TokenLength is the length of invite token ids.
	TokenLength int

	// Retry is the retry profile for remote store operations.
	Retry RetryConfig
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TokenExpiry:   30 * 24 * time.Hour,
		RequestExpiry: 30 * 24 * time.Hour,
		TokenLength:   32,
		Retry:         DefaultRetryConfig(),
	}
}

// Validate normalizes invalid configuration values.
func (c *Config) Validate() {
	if c.TokenExpiry <= 0 {
		c.TokenExpiry = 30 * 24 * time.Hour
	}
	if c.RequestExpiry <= 0 {
		c.RequestExpiry = 30 * 24 * time.Hour
	}
	if c.TokenLength <= 0 {
		c.TokenLength = 32
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetryConfig()
	}
}
