package server

import (
	"net/http"
	"testing"

	"github.com/noteum-io/noteum/pkg/auth"
	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/oauth"
)

func TestOAuthProvidersEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/oauth/providers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	providers, ok := decodeBody(t, rec)["providers"].([]any)
	if !ok || len(providers) != 2 {
		t.Fatalf("providers = %v, want two entries", providers)
	}
}

func TestOAuthAuthorizeEndpoint(t *testing.T) {
	mgr := &fakeOAuth{}
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = mgr
		deps.Validator = &fakeValidator{claims: &auth.Claims{Subject: "user-3"}}
	})

	rec := doAuthedRequest(t, srv, http.MethodGet, "/oauth/openai/authorize")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["authorization_url"] == "" || body["state"] == "" {
		t.Errorf("grant body = %v", body)
	}
	if mgr.lastProvider != "openai" {
		t.Errorf("provider = %q, want openai from the URL", mgr.lastProvider)
	}
	if mgr.lastUser != "user-3" {
		t.Errorf("user = %q, want the token subject", mgr.lastUser)
	}
}

func TestOAuthAuthorizeUnknownProvider(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = &fakeOAuth{err: noteerr.New(noteerr.KindInvalidInput, "oauth provider not configured: slack")}
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/oauth/slack/authorize", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestOAuthCallbackEndpoint(t *testing.T) {
	mgr := &fakeOAuth{}
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = mgr
	})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/oauth/google/callback", map[string]any{
		"code":  "auth-code-1",
		"state": "s1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["connected"] != true {
		t.Errorf("connected = %v", body["connected"])
	}
	if body["provider"] != "google" {
		t.Errorf("provider = %v", body["provider"])
	}
}

func TestOAuthCallbackBadState(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = &fakeOAuth{err: noteerr.New(noteerr.KindInvalidInput, "state mismatch")}
	})

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/oauth/google/callback", map[string]any{
		"code":  "auth-code-1",
		"state": "wrong",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestOAuthStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = &fakeOAuth{conn: &oauth.Connection{
			Connected: true,
			Provider:  "openai",
			Email:     "kim@example.com",
		}}
	})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/oauth/openai/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["connected"] != true || body["email"] != "kim@example.com" {
		t.Errorf("status body = %v", body)
	}
}

func TestOAuthStatusNotConnected(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/oauth/openai/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a disconnected provider", rec.Code)
	}
	if body := decodeBody(t, rec); body["connected"] != false {
		t.Errorf("connected = %v, want false", body["connected"])
	}
}

func TestOAuthDisconnectEndpoint(t *testing.T) {
	mgr := &fakeOAuth{}
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = mgr
	})

	rec := doRequest(t, srv.Handler(), http.MethodDelete, "/oauth/openai/disconnect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["disconnected"]; got != true {
		t.Errorf("disconnected = %v", got)
	}
	if len(mgr.disconnected) != 1 || mgr.disconnected[0] != "openai" {
		t.Errorf("disconnect calls = %v", mgr.disconnected)
	}
}

func TestOAuthDisconnectNothingStored(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config, deps *Dependencies) {
		deps.OAuth = &fakeOAuth{err: noteerr.New(noteerr.KindNotFound, "no openai connection")}
	})

	rec := doRequest(t, srv.Handler(), http.MethodDelete, "/oauth/openai/disconnect", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
