package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/notes"
)

// fakeStore keeps pending authorizations and tokens in memory, keyed by
// user+provider like the real table.
type fakeStore struct {
	pending map[string][2]string
	tokens  map[string]*notes.TokenRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pending: make(map[string][2]string),
		tokens:  make(map[string]*notes.TokenRecord),
	}
}

func key(userID, provider string) string { return userID + "/" + provider }

func (f *fakeStore) SavePendingAuthorization(_ context.Context, userID, provider, state, verifier string) error {
	f.pending[key(userID, provider)] = [2]string{state, verifier}
	return nil
}

func (f *fakeStore) GetPendingAuthorization(_ context.Context, userID, provider string) (string, string, error) {
	p, ok := f.pending[key(userID, provider)]
	if !ok {
		return "", "", noteerr.New(noteerr.KindNotFound, "no pending authorization")
	}
	return p[0], p[1], nil
}

func (f *fakeStore) SaveToken(_ context.Context, rec *notes.TokenRecord) error {
	delete(f.pending, key(rec.UserID, rec.Provider))
	f.tokens[key(rec.UserID, rec.Provider)] = rec
	return nil
}

func (f *fakeStore) GetToken(_ context.Context, userID, provider string) (*notes.TokenRecord, error) {
	rec, ok := f.tokens[key(userID, provider)]
	if !ok {
		return nil, noteerr.New(noteerr.KindNotFound, "token not found")
	}
	return rec, nil
}

func (f *fakeStore) DeleteToken(_ context.Context, userID, provider string) error {
	if _, ok := f.tokens[key(userID, provider)]; !ok {
		return noteerr.New(noteerr.KindNotFound, "token not found")
	}
	delete(f.tokens, key(userID, provider))
	return nil
}

// tokenServer fakes a provider token endpoint. It records the last form
// it received and always grants the same tokens.
func tokenServer(t *testing.T, grant map[string]any) (*httptest.Server, *url.Values) {
	t.Helper()
	var lastForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		lastForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(grant))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastForm
}

func idToken(t *testing.T, email string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"sub": "user-1", "email": email})
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString(payload)
	sig := base64.RawURLEncoding.EncodeToString([]byte("unsigned"))
	return header + "." + body + "." + sig
}

func testManager(t *testing.T, tokenURL string) (*Manager, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	m, err := NewManager(&config.OAuthConfig{
		EncryptionKey: base64.StdEncoding.EncodeToString(testKey()),
		Providers: map[string]*config.OAuthProviderConfig{
			"openai": {
				ClientID:    "client-1",
				RedirectURL: "http://localhost:8080/oauth/openai/callback",
				TokenURL:    tokenURL,
			},
		},
	}, store)
	require.NoError(t, err)
	return m, store
}

func TestAuthorizeBuildsChallengeURL(t *testing.T) {
	m, store := testManager(t, "")

	grant, err := m.Authorize(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	require.NotEmpty(t, grant.State)

	u, err := url.Parse(grant.AuthorizationURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, grant.State, q.Get("state"))

	state, verifier, err := store.GetPendingAuthorization(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, grant.State, state)
	assert.GreaterOrEqual(t, len(verifier), 43)
}

func TestAuthorizeUnknownProvider(t *testing.T) {
	m, _ := testManager(t, "")

	_, err := m.Authorize(context.Background(), "user-1", "github")
	assert.True(t, noteerr.IsKind(err, noteerr.KindInvalidInput))
}

func TestCallbackExchangesWithVerifier(t *testing.T) {
	srv, form := tokenServer(t, map[string]any{
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"id_token":      idToken(t, "dev@example.com"),
		"scope":         "openid email",
	})
	m, store := testManager(t, srv.URL)

	grant, err := m.Authorize(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	_, verifier, err := store.GetPendingAuthorization(context.Background(), "user-1", "openai")
	require.NoError(t, err)

	conn, err := m.Callback(context.Background(), "user-1", "openai", "code-1", grant.State)
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	assert.Equal(t, "openai", conn.Provider)
	assert.Equal(t, "dev@example.com", conn.Email)

	assert.Equal(t, verifier, form.Get("code_verifier"))
	assert.Equal(t, "code-1", form.Get("code"))

	rec, err := store.GetToken(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.NotEqual(t, "at-1", rec.AccessToken, "access token stored unencrypted")
	assert.Equal(t, "dev@example.com", rec.Email)
	require.NotNil(t, rec.ExpiresAt)
}

func TestCallbackStateMismatch(t *testing.T) {
	m, _ := testManager(t, "")

	_, err := m.Authorize(context.Background(), "user-1", "openai")
	require.NoError(t, err)

	_, err = m.Callback(context.Background(), "user-1", "openai", "code-1", "forged-state")
	assert.True(t, noteerr.IsKind(err, noteerr.KindUnauthorized))
}

func TestCallbackWithoutPendingAuthorization(t *testing.T) {
	m, _ := testManager(t, "")

	_, err := m.Callback(context.Background(), "user-1", "openai", "code-1", "some-state")
	assert.True(t, noteerr.IsKind(err, noteerr.KindUnauthorized))
}

func TestCallbackMissingCode(t *testing.T) {
	m, _ := testManager(t, "")

	_, err := m.Callback(context.Background(), "user-1", "openai", "", "state")
	assert.True(t, noteerr.IsKind(err, noteerr.KindInvalidInput))
}

func TestStatusReportsConnection(t *testing.T) {
	srv, _ := tokenServer(t, map[string]any{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	m, _ := testManager(t, srv.URL)

	conn, err := m.Status(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.False(t, conn.Connected)

	grant, err := m.Authorize(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	_, err = m.Callback(context.Background(), "user-1", "openai", "code-1", grant.State)
	require.NoError(t, err)

	conn, err = m.Status(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	require.NotNil(t, conn.ExpiresAt)
}

func TestDisconnect(t *testing.T) {
	srv, _ := tokenServer(t, map[string]any{
		"access_token": "at-1",
		"token_type":   "Bearer",
	})
	m, _ := testManager(t, srv.URL)

	err := m.Disconnect(context.Background(), "user-1", "openai")
	assert.True(t, noteerr.IsKind(err, noteerr.KindNotFound))

	grant, err := m.Authorize(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	_, err = m.Callback(context.Background(), "user-1", "openai", "code-1", grant.State)
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background(), "user-1", "openai"))

	conn, err := m.Status(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.False(t, conn.Connected)
}

func TestAccessTokenDecrypts(t *testing.T) {
	srv, _ := tokenServer(t, map[string]any{
		"access_token": "at-live",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	m, _ := testManager(t, srv.URL)

	grant, err := m.Authorize(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	_, err = m.Callback(context.Background(), "user-1", "openai", "code-1", grant.State)
	require.NoError(t, err)

	token, err := m.AccessToken(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, "at-live", token)
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	srv, form := tokenServer(t, map[string]any{
		"access_token":  "at-fresh",
		"refresh_token": "rt-fresh",
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
	m, store := testManager(t, srv.URL)

	expired := time.Now().Add(-time.Hour)
	access, err := m.cipher.Encrypt("at-stale")
	require.NoError(t, err)
	refresh, err := m.cipher.Encrypt("rt-stale")
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(context.Background(), &notes.TokenRecord{
		UserID:       "user-1",
		Provider:     "openai",
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    &expired,
	}))

	token, err := m.AccessToken(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, "at-fresh", token)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "rt-stale", form.Get("refresh_token"))

	rec, err := store.GetToken(context.Background(), "user-1", "openai")
	require.NoError(t, err)
	stored, err := m.cipher.Decrypt(rec.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "at-fresh", stored)
}

func TestAccessTokenExpiredWithoutRefresh(t *testing.T) {
	m, store := testManager(t, "")

	expired := time.Now().Add(-time.Hour)
	access, err := m.cipher.Encrypt("at-stale")
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(context.Background(), &notes.TokenRecord{
		UserID:      "user-1",
		Provider:    "openai",
		AccessToken: access,
		ExpiresAt:   &expired,
	}))

	_, err = m.AccessToken(context.Background(), "user-1", "openai")
	assert.True(t, noteerr.IsKind(err, noteerr.KindUnauthorized))
}

func TestAccessTokenNotConnected(t *testing.T) {
	m, _ := testManager(t, "")

	_, err := m.AccessToken(context.Background(), "user-1", "openai")
	assert.True(t, noteerr.IsKind(err, noteerr.KindUnauthorized))
}

func TestProvidersSorted(t *testing.T) {
	store := newFakeStore()
	m, err := NewManager(&config.OAuthConfig{
		Providers: map[string]*config.OAuthProviderConfig{
			"google":    {ClientID: "g", RedirectURL: "http://localhost/cb"},
			"anthropic": {ClientID: "a", RedirectURL: "http://localhost/cb"},
			"openai":    {ClientID: "o", RedirectURL: "http://localhost/cb"},
		},
	}, store)
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic", "google", "openai"}, m.Providers())
}

func TestEmailFromIDToken(t *testing.T) {
	assert.Equal(t, "dev@example.com", emailFromIDToken(idToken(t, "dev@example.com")))
	assert.Equal(t, "", emailFromIDToken("not-a-jwt"))
	assert.Equal(t, "", emailFromIDToken(""))
}

func TestFlowDefaultsFilled(t *testing.T) {
	flow := newFlowConfig("google", &config.OAuthProviderConfig{
		ClientID:    "g",
		RedirectURL: "http://localhost/cb",
	})
	assert.Equal(t, "https://accounts.google.com/o/oauth2/v2/auth", flow.Endpoint.AuthURL)
	assert.Equal(t, "https://oauth2.googleapis.com/token", flow.Endpoint.TokenURL)
	assert.NotEmpty(t, flow.Scopes)

	override := newFlowConfig("google", &config.OAuthProviderConfig{
		ClientID: "g",
		AuthURL:  "https://example.com/auth",
		TokenURL: "https://example.com/token",
		Scopes:   []string{"custom"},
	})
	assert.Equal(t, "https://example.com/auth", override.Endpoint.AuthURL)
	assert.Equal(t, []string{"custom"}, override.Scopes)
}
