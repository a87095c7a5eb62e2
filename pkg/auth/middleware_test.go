package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(sawClaims **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sawClaims != nil {
			*sawClaims = ClaimsFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareMissingHeader(t *testing.T) {
	validator, _, _, _ := setupTestValidator(t)
	handler := Middleware(validator, nil, nil)(okHandler(nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestMiddlewareMalformedHeader(t *testing.T) {
	validator, _, _, _ := setupTestValidator(t)
	handler := Middleware(validator, nil, nil)(okHandler(nil))

	for _, header := range []string{"Basic dXNlcjpwYXNz", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestMiddlewareInvalidToken(t *testing.T) {
	validator, _, _, _ := setupTestValidator(t)
	handler := Middleware(validator, nil, nil)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer garbage.token.here")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareValidToken(t *testing.T) {
	validator, privateKey, issuer, audience := setupTestValidator(t)

	var seen *Claims
	handler := Middleware(validator, nil, nil)(okHandler(&seen))

	token := signTestJWT(t, privateKey, issuer, audience, "user-42",
		time.Now().Add(time.Hour), map[string]any{"role": "admin"})

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil {
		t.Fatal("claims missing from request context")
	}
	if seen.Subject != "user-42" || seen.Role != "admin" {
		t.Errorf("claims = %+v, want subject user-42 with admin role", seen)
	}
}

func TestMiddlewareExcludedPathSkipsAuth(t *testing.T) {
	validator, _, _, _ := setupTestValidator(t)

	var seen *Claims
	handler := Middleware(validator, []string{"/health", "/metrics"}, nil)(okHandler(&seen))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if seen != nil {
		t.Error("claims present on excluded path")
	}
}

func TestRequireRoleAllowsMatch(t *testing.T) {
	handler := RequireRole(nil, "admin")(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/search/index", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), &Claims{Subject: "u", Role: "admin"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireRoleDeniesMismatch(t *testing.T) {
	handler := RequireRole(nil, "admin")(okHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/search/index", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), &Claims{Subject: "u", Role: "viewer"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequireRolePassesWithoutClaims(t *testing.T) {
	// No claims means auth is disabled; the role check stands aside.
	handler := RequireRole(nil, "admin")(okHandler(nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search/index", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUserIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	if got := UserID(req.Context()); got != "" {
		t.Errorf("UserID() = %q on bare context, want empty", got)
	}

	ctx := ContextWithClaims(req.Context(), &Claims{Subject: "user-7"})
	if got := UserID(ctx); got != "user-7" {
		t.Errorf("UserID() = %q, want user-7", got)
	}
}
