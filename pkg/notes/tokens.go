package notes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// TokenRecord is the stored credential for one (user, provider) pair.
// Token values are opaque here; the oauth layer encrypts before saving.
type TokenRecord struct {
	ID           int64
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	PKCEVerifier string
	State        string
	Scope        string
	Email        string
	UpdatedAt    time.Time
}

// SavePendingAuthorization upserts the state and PKCE verifier for an
// authorization in flight. Existing tokens stay untouched so a failed
// re-authorization does not disconnect the user.
func (s *Store) SavePendingAuthorization(ctx context.Context, userID, provider, state, verifier string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (user_id, provider, state, pkce_verifier, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			state = EXCLUDED.state,
			pkce_verifier = EXCLUDED.pkce_verifier,
			updated_at = now()`,
		userID, provider, state, verifier)
	return err
}

// GetPendingAuthorization returns the stored state and verifier.
func (s *Store) GetPendingAuthorization(ctx context.Context, userID, provider string) (state, verifier string, err error) {
	var st, ver sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT state, pkce_verifier FROM oauth_tokens
		WHERE user_id = $1 AND provider = $2`,
		userID, provider).Scan(&st, &ver)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", noteerr.New(noteerr.KindNotFound, "no authorization in progress")
	}
	if err != nil {
		return "", "", err
	}
	if !st.Valid || st.String == "" {
		return "", "", noteerr.New(noteerr.KindNotFound, "no authorization in progress")
	}
	return st.String, ver.String, nil
}

// SaveToken upserts the exchanged tokens and wipes the one-time state
// and verifier.
func (s *Store) SaveToken(ctx context.Context, rec *TokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (user_id, provider, access_token, refresh_token,
			expires_at, scope, email, state, pkce_verifier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, now())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			email = EXCLUDED.email,
			state = NULL,
			pkce_verifier = NULL,
			updated_at = now()`,
		rec.UserID, rec.Provider, nullable(rec.AccessToken), nullable(rec.RefreshToken),
		rec.ExpiresAt, nullable(rec.Scope), nullable(rec.Email))
	return err
}

// GetToken returns the stored token record. A row holding only a
// pending authorization counts as not connected.
func (s *Store) GetToken(ctx context.Context, userID, provider string) (*TokenRecord, error) {
	var rec TokenRecord
	var access, refresh, scope, email sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token,
			expires_at, scope, email, updated_at
		FROM oauth_tokens WHERE user_id = $1 AND provider = $2`,
		userID, provider).Scan(&rec.ID, &rec.UserID, &rec.Provider,
		&access, &refresh, &rec.ExpiresAt, &scope, &email, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, noteerr.New(noteerr.KindNotFound, "provider not connected")
	}
	if err != nil {
		return nil, err
	}
	if !access.Valid || access.String == "" {
		return nil, noteerr.New(noteerr.KindNotFound, "provider not connected")
	}

	rec.AccessToken = access.String
	rec.RefreshToken = refresh.String
	rec.Scope = scope.String
	rec.Email = email.String
	return &rec, nil
}

// DeleteToken disconnects a provider for a user.
func (s *Store) DeleteToken(ctx context.Context, userID, provider string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM oauth_tokens WHERE user_id = $1 AND provider = $2`,
		userID, provider)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return noteerr.New(noteerr.KindNotFound, "provider not connected")
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
