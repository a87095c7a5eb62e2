// Package auth validates bearer tokens against an external identity
// provider's JWKS and exposes the resulting claims to HTTP handlers.
// Token issuance is out of scope; any OIDC-style provider that serves
// a JWKS endpoint works.
package auth

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const claimsContextKey contextKey = "noteum_auth_claims"

// Claims are the validated identity facts extracted from a token.
type Claims struct {
	// Subject is the unique user identifier (sub claim).
	Subject string `json:"sub"`

	// Email is the user's email address when the provider includes it.
	Email string `json:"email,omitempty"`

	// Role drives authorization decisions such as the admin-only
	// index trigger.
	Role string `json:"role,omitempty"`

	// Custom carries any additional claims not mapped above.
	Custom map[string]any `json:"-"`
}

// GetStringClaim retrieves a custom claim as a string, or empty.
func (c *Claims) GetStringClaim(key string) string {
	if val, ok := c.Custom[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// HasRole checks whether the user holds any of the given roles.
func (c *Claims) HasRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// ClaimsFromContext extracts claims, or nil when the request was not
// authenticated (excluded path or auth disabled).
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims returns a new context carrying the claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// UserID is the subject of the authenticated user, or empty.
func UserID(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
