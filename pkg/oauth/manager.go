package oauth

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/notes"
)

// TokenStore persists pending authorizations and granted tokens.
// *notes.Store satisfies it.
type TokenStore interface {
	SavePendingAuthorization(ctx context.Context, userID, provider, state, verifier string) error
	GetPendingAuthorization(ctx context.Context, userID, provider string) (state, verifier string, err error)
	SaveToken(ctx context.Context, rec *notes.TokenRecord) error
	GetToken(ctx context.Context, userID, provider string) (*notes.TokenRecord, error)
	DeleteToken(ctx context.Context, userID, provider string) error
}

// Grant is the first half of the flow: the URL the user's browser must
// visit plus the state the callback will echo.
type Grant struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// Connection describes the stored credential for one (user, provider).
type Connection struct {
	Connected bool       `json:"connected"`
	Provider  string     `json:"provider"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Manager runs the PKCE authorization flow and hands decrypted access
// tokens to the AI router, refreshing them when they expire.
type Manager struct {
	flows  map[string]*oauth2.Config
	store  TokenStore
	cipher *Cipher
}

// NewManager wires the configured providers. Without an encryption key
// tokens are stored in plaintext, which is only acceptable in
// development and is called out at startup.
func NewManager(cfg *config.OAuthConfig, store TokenStore) (*Manager, error) {
	cipher, err := NewCipher(cfg.DecodedEncryptionKey())
	if err != nil {
		return nil, err
	}
	if !cipher.Enabled() {
		slog.Warn("oauth encryption key not configured, tokens will be stored in plaintext")
	}

	flows := make(map[string]*oauth2.Config, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		flows[name] = newFlowConfig(name, pc)
	}

	return &Manager{flows: flows, store: store, cipher: cipher}, nil
}

// Providers lists the connectable provider names in stable order.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.flows))
	for name := range m.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) flow(provider string) (*oauth2.Config, error) {
	f, ok := m.flows[provider]
	if !ok {
		return nil, noteerr.Newf(noteerr.KindInvalidInput, "oauth provider %q is not configured", provider)
	}
	return f, nil
}

// Authorize begins the flow: it mints a verifier and state, persists
// them against the (user, provider) pair, and returns the provider's
// authorization URL carrying the S256 challenge.
func (m *Manager) Authorize(ctx context.Context, userID, provider string) (*Grant, error) {
	flow, err := m.flow(provider)
	if err != nil {
		return nil, err
	}

	verifier := oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()

	if err := m.store.SavePendingAuthorization(ctx, userID, provider, state, verifier); err != nil {
		return nil, noteerr.Wrap(noteerr.KindInternal, "persist pending authorization", err)
	}

	opts := append(authCodeOptions(provider), oauth2.S256ChallengeOption(verifier))
	return &Grant{
		AuthorizationURL: flow.AuthCodeURL(state, opts...),
		State:            state,
	}, nil
}

// Callback completes the flow: it checks the echoed state against the
// pending authorization, redeems the code with the stored verifier, and
// persists the encrypted grant. The verifier and state are wiped by the
// save.
func (m *Manager) Callback(ctx context.Context, userID, provider, code, state string) (*Connection, error) {
	flow, err := m.flow(provider)
	if err != nil {
		return nil, err
	}
	if code == "" || state == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "code and state are required")
	}

	pendingState, verifier, err := m.store.GetPendingAuthorization(ctx, userID, provider)
	if err != nil {
		if noteerr.IsKind(err, noteerr.KindNotFound) {
			return nil, noteerr.New(noteerr.KindUnauthorized, "no authorization in progress")
		}
		return nil, noteerr.Wrap(noteerr.KindInternal, "load pending authorization", err)
	}
	if state != pendingState {
		return nil, noteerr.New(noteerr.KindUnauthorized, "state mismatch")
	}

	token, err := flow.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindProviderFailure, "exchange authorization code", err).
			WithProvider(provider)
	}

	email := ""
	if idToken, ok := token.Extra("id_token").(string); ok {
		email = emailFromIDToken(idToken)
	}

	if err := m.saveToken(ctx, userID, provider, token, email); err != nil {
		return nil, err
	}

	slog.Info("oauth provider connected", "provider", provider, "user", userID)
	return &Connection{Connected: true, Provider: provider, Email: email}, nil
}

// Status reports whether the user holds a token for the provider. A
// missing token is not an error.
func (m *Manager) Status(ctx context.Context, userID, provider string) (*Connection, error) {
	if _, err := m.flow(provider); err != nil {
		return nil, err
	}

	rec, err := m.store.GetToken(ctx, userID, provider)
	if err != nil {
		if noteerr.IsKind(err, noteerr.KindNotFound) {
			return &Connection{Connected: false, Provider: provider}, nil
		}
		return nil, noteerr.Wrap(noteerr.KindInternal, "load token", err)
	}

	return &Connection{
		Connected: true,
		Provider:  provider,
		Email:     rec.Email,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Disconnect drops the stored token. Disconnecting a provider that was
// never connected reports not found.
func (m *Manager) Disconnect(ctx context.Context, userID, provider string) error {
	if _, err := m.flow(provider); err != nil {
		return err
	}
	if err := m.store.DeleteToken(ctx, userID, provider); err != nil {
		if noteerr.IsKind(err, noteerr.KindNotFound) {
			return noteerr.Newf(noteerr.KindNotFound, "%s is not connected", provider)
		}
		return noteerr.Wrap(noteerr.KindInternal, "delete token", err)
	}
	slog.Info("oauth provider disconnected", "provider", provider, "user", userID)
	return nil
}

// AccessToken returns a live decrypted access token, refreshing an
// expired one when a refresh token is on file.
func (m *Manager) AccessToken(ctx context.Context, userID, provider string) (string, error) {
	flow, err := m.flow(provider)
	if err != nil {
		return "", err
	}

	rec, err := m.store.GetToken(ctx, userID, provider)
	if err != nil {
		if noteerr.IsKind(err, noteerr.KindNotFound) {
			return "", noteerr.Newf(noteerr.KindUnauthorized, "%s is not connected", provider)
		}
		return "", noteerr.Wrap(noteerr.KindInternal, "load token", err)
	}

	access, err := m.cipher.Decrypt(rec.AccessToken)
	if err != nil {
		return "", noteerr.Wrap(noteerr.KindInternal, "decrypt access token", err)
	}
	refresh, err := m.cipher.Decrypt(rec.RefreshToken)
	if err != nil {
		return "", noteerr.Wrap(noteerr.KindInternal, "decrypt refresh token", err)
	}

	if rec.ExpiresAt == nil || time.Until(*rec.ExpiresAt) > time.Minute {
		return access, nil
	}
	if refresh == "" {
		return "", noteerr.Newf(noteerr.KindUnauthorized, "%s token expired, reconnect required", provider)
	}

	stale := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       *rec.ExpiresAt,
	}
	fresh, err := flow.TokenSource(ctx, stale).Token()
	if err != nil {
		return "", noteerr.Wrap(noteerr.KindProviderFailure, "refresh token", err).
			WithProvider(provider)
	}

	if fresh.AccessToken != access {
		if err := m.saveToken(ctx, userID, provider, fresh, rec.Email); err != nil {
			return "", err
		}
		slog.Debug("oauth token refreshed", "provider", provider, "user", userID)
	}
	return fresh.AccessToken, nil
}

// saveToken encrypts and upserts a granted token.
func (m *Manager) saveToken(ctx context.Context, userID, provider string, token *oauth2.Token, email string) error {
	access, err := m.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return noteerr.Wrap(noteerr.KindInternal, "encrypt access token", err)
	}
	refresh, err := m.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return noteerr.Wrap(noteerr.KindInternal, "encrypt refresh token", err)
	}

	rec := &notes.TokenRecord{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  access,
		RefreshToken: refresh,
		Scope:        scopeString(token),
		Email:        email,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		rec.ExpiresAt = &expiry
	}

	if err := m.store.SaveToken(ctx, rec); err != nil {
		return noteerr.Wrap(noteerr.KindInternal, "persist token", err)
	}
	return nil
}

// scopeString pulls the granted scope out of the token response when
// the provider reports one.
func scopeString(token *oauth2.Token) string {
	if s, ok := token.Extra("scope").(string); ok {
		return s
	}
	return ""
}
