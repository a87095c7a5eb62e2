package config

import (
	"fmt"
	"time"
)

// AuthConfig configures JWT-based authentication for the server.
//
// Authentication is disabled by default. When enabled, all endpoints
// except health and metrics require a valid bearer token.
//
// Example configuration:
//
//	auth:
//	  enabled: true
//	  jwks_url: "https://auth.example.com/.well-known/jwks.json"
//	  issuer: "https://auth.example.com"
//	  audience: "noteum-api"
type AuthConfig struct {
	// Enabled controls whether authentication is required.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// JWKSURL is the URL to fetch the JSON Web Key Set from.
	// Required when Enabled is true.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty" jsonschema:"title=JWKS URL"`

	// Issuer is the expected token issuer (iss claim).
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty" jsonschema:"title=Issuer"`

	// Audience is the expected token audience (aud claim).
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty" jsonschema:"title=Audience"`

	// RefreshInterval is how often to refresh the JWKS.
	// Default: 15m
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty" jsonschema:"title=Refresh Interval,default=15m"`

	// ExcludedPaths don't require authentication.
	// Default: ["/health", "/metrics"]
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty" jsonschema:"title=Excluded Paths"`
}

// SetDefaults applies default values.
func (c *AuthConfig) SetDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
	if len(c.ExcludedPaths) == 0 {
		c.ExcludedPaths = []string{"/health", "/metrics"}
	}
}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required when auth is enabled")
	}
	if c.Issuer == "" {
		return fmt.Errorf("auth.issuer is required when auth is enabled")
	}
	if c.Audience == "" {
		return fmt.Errorf("auth.audience is required when auth is enabled")
	}
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("auth.refresh_interval must be at least 1 minute")
	}
	return nil
}

// IsEnabled returns true if authentication is configured and enabled.
func (c *AuthConfig) IsEnabled() bool {
	return c != nil && c.Enabled && c.JWKSURL != "" && c.Issuer != "" && c.Audience != ""
}
