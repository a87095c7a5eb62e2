package auth

import (
	"fmt"

	"github.com/noteum-io/noteum/pkg/config"
)

// NewValidatorFromConfig builds the JWKS validator, or nil when
// authentication is disabled.
func NewValidatorFromConfig(cfg *config.AuthConfig) (TokenValidator, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}

	validator, err := NewJWTValidator(JWTValidatorConfig{
		JWKSURL:         cfg.JWKSURL,
		Issuer:          cfg.Issuer,
		Audience:        cfg.Audience,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("create jwt validator: %w", err)
	}
	return validator, nil
}
