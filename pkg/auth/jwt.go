package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// JWTValidatorConfig configures JWKS-backed token validation.
type JWTValidatorConfig struct {
	// JWKSURL serves the provider's signing keys.
	JWKSURL string

	// Issuer the iss claim must match.
	Issuer string

	// Audience the aud claim must contain.
	Audience string

	// RefreshInterval bounds how often the key set is re-fetched.
	RefreshInterval time.Duration
}

// JWTValidator validates tokens against a cached JWKS. The cache
// refreshes in the background so key rotation needs no restart.
type JWTValidator struct {
	cfg   JWTValidatorConfig
	cache *jwk.Cache
}

// NewJWTValidator registers the JWKS URL and performs the initial fetch
// so a bad URL fails at startup, not on the first request.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}

	ctx := context.Background()
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		return nil, fmt.Errorf("register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("fetch jwks from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{cfg: cfg, cache: cache}, nil
}

// ValidateToken verifies the signature against the cached key set plus
// expiry, issuer, and audience, and extracts the claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.cfg.JWKSURL)
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindInternal, "load jwks", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
	)
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindUnauthorized, "invalid token", err)
	}

	return claimsFromToken(ctx, token), nil
}

// standard claims handled outside the Custom map.
var reservedClaims = map[string]bool{
	"sub": true, "email": true, "role": true,
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true, "jti": true,
}

func claimsFromToken(ctx context.Context, token jwt.Token) *Claims {
	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}

	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}

	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, ok := pair.Key.(string)
		if !ok || reservedClaims[key] {
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}
