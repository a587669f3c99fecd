package auth

import "time"

// Config holds configuration for token verification.
type Config struct {
	// JWKSURL is the endpoint serving the JSON Web Key Set.
	JWKSURL string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Audience, when set, must be contained in the aud claim.
	Audience string

	// Leeway is the clock skew tolerated on exp and nbf.
	// Default: 30s
	Leeway time.Duration

	// MinRefreshInterval is the minimum time between two key set fetches
	// triggered by unknown key ids. The first fetch is never delayed.
	// Default: 30s, 0 disables the limit
	MinRefreshInterval time.Duration

	// FetchTimeout bounds one key set fetch.
	// Default: 5s
	FetchTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Leeway:             30 * time.Second,
		MinRefreshInterval: 30 * time.Second,
		FetchTimeout:       5 * time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Leeway < 0 {
		c.Leeway = 0
	}
	if c.MinRefreshInterval < 0 {
		c.MinRefreshInterval = 0
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
}
