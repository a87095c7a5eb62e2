package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func generateRSAKeyPair(t testing.TB) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

func createJWKS(t testing.TB, publicKey *rsa.PublicKey) jwk.Set {
	t.Helper()
	key, err := jwk.FromRaw(publicKey)
	if err != nil {
		t.Fatalf("create jwk: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, "test-key-id"); err != nil {
		t.Fatalf("set key id: %v", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("set algorithm: %v", err)
	}

	keyset := jwk.NewSet()
	if err := keyset.AddKey(key); err != nil {
		t.Fatalf("add key: %v", err)
	}
	return keyset
}

// signTestJWT issues a token the test validator accepts, with extra
// claims layered on top of the registered ones.
func signTestJWT(t testing.TB, privateKey *rsa.PrivateKey, issuer, audience, subject string, expiry time.Time, claims map[string]any) string {
	t.Helper()
	token := jwt.New()
	set := func(key string, value any) {
		if err := token.Set(key, value); err != nil {
			t.Fatalf("set claim %s: %v", key, err)
		}
	}
	set(jwt.IssuerKey, issuer)
	set(jwt.AudienceKey, audience)
	set(jwt.SubjectKey, subject)
	set(jwt.IssuedAtKey, time.Now())
	set(jwt.ExpirationKey, expiry)
	for key, value := range claims {
		set(key, value)
	}

	key, err := jwk.FromRaw(privateKey)
	if err != nil {
		t.Fatalf("create signing key: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, "test-key-id"); err != nil {
		t.Fatalf("set key id: %v", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

// setupTestValidator serves a JWKS from an httptest server and returns
// a validator bound to it plus the signing key for issuing tokens.
func setupTestValidator(t testing.TB) (*JWTValidator, *rsa.PrivateKey, string, string) {
	t.Helper()
	privateKey, publicKey := generateRSAKeyPair(t)
	keyset := createJWKS(t, publicKey)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		keysetJSON, err := json.Marshal(keyset)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(keysetJSON)
	}))
	t.Cleanup(server.Close)

	issuer := "https://test-issuer.com"
	audience := "noteum-api"
	validator, err := NewJWTValidator(JWTValidatorConfig{
		JWKSURL:  server.URL + "/.well-known/jwks.json",
		Issuer:   issuer,
		Audience: audience,
	})
	if err != nil {
		t.Fatalf("create validator: %v", err)
	}

	return validator, privateKey, issuer, audience
}
