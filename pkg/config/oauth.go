package config

import (
	"encoding/base64"
	"fmt"
)

// OAuthProviderConfig configures one OAuth connection (PKCE flow).
type OAuthProviderConfig struct {
	// ClientID of the registered application.
	ClientID string `yaml:"client_id,omitempty" json:"client_id,omitempty" jsonschema:"title=Client ID"`

	// ClientSecret when the provider requires one. PKCE providers
	// typically do not.
	ClientSecret string `yaml:"client_secret,omitempty" json:"client_secret,omitempty" jsonschema:"title=Client Secret"`

	// AuthURL overrides the provider's authorization endpoint.
	AuthURL string `yaml:"auth_url,omitempty" json:"auth_url,omitempty" jsonschema:"title=Auth URL"`

	// TokenURL overrides the provider's token endpoint.
	TokenURL string `yaml:"token_url,omitempty" json:"token_url,omitempty" jsonschema:"title=Token URL"`

	// RedirectURL the provider sends the browser back to.
	RedirectURL string `yaml:"redirect_url,omitempty" json:"redirect_url,omitempty" jsonschema:"title=Redirect URL"`

	// Scopes to request.
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty" jsonschema:"title=Scopes"`
}

// OAuthConfig configures the OAuth connections and token protection.
type OAuthConfig struct {
	// EncryptionKey is a base64-encoded 32-byte key for AES-GCM token
	// encryption at rest. Empty stores tokens in plaintext (development
	// only; logged at init).
	EncryptionKey string `yaml:"encryption_key,omitempty" json:"encryption_key,omitempty" jsonschema:"title=Encryption Key,description=Base64-encoded 32-byte AES key"`

	// Providers maps provider name (openai, google, anthropic) to its
	// OAuth settings.
	Providers map[string]*OAuthProviderConfig `yaml:"providers,omitempty" json:"providers,omitempty" jsonschema:"title=Providers"`
}

// SetDefaults applies default values.
func (c *OAuthConfig) SetDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]*OAuthProviderConfig)
	}
}

// Validate checks the OAuth configuration.
func (c *OAuthConfig) Validate() error {
	if c.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("oauth encryption_key is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("oauth encryption_key must decode to 32 bytes, got %d", len(key))
		}
	}

	validProviders := map[string]bool{"openai": true, "google": true, "anthropic": true}
	for name, pc := range c.Providers {
		if !validProviders[name] {
			return fmt.Errorf("unsupported oauth provider: %s (valid: openai, google, anthropic)", name)
		}
		if pc == nil || pc.ClientID == "" {
			return fmt.Errorf("oauth provider %s requires a client_id", name)
		}
		if pc.RedirectURL == "" {
			return fmt.Errorf("oauth provider %s requires a redirect_url", name)
		}
	}
	return nil
}

// DecodedEncryptionKey returns the raw AES key, or nil when unset.
func (c *OAuthConfig) DecodedEncryptionKey() []byte {
	if c.EncryptionKey == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
