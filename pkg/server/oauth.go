package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noteum-io/noteum/pkg/auth"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

// handleOAuthProviders serves GET /oauth/providers: the connectable
// provider names.
func (s *Server) handleOAuthProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.deps.OAuth.Providers()
	if providers == nil {
		providers = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"providers": providers})
}

// handleOAuthAuthorize serves GET /oauth/{provider}/authorize: mints
// the PKCE grant and hands back the URL the user's browser must visit.
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	grant, err := s.deps.OAuth.Authorize(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "provider"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

type oauthCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// handleOAuthCallback serves POST /oauth/{provider}/callback: redeems
// the authorization code against the pending PKCE verifier.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req oauthCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, noteerr.Wrap(noteerr.KindInvalidInput, "invalid JSON body", err))
		return
	}

	conn, err := s.deps.OAuth.Callback(r.Context(), auth.UserID(r.Context()),
		chi.URLParam(r, "provider"), req.Code, req.State)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// handleOAuthStatus serves GET /oauth/{provider}/status.
func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.deps.OAuth.Status(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "provider"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// handleOAuthDisconnect serves DELETE /oauth/{provider}/disconnect.
func (s *Server) handleOAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	err := s.deps.OAuth.Disconnect(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "provider"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}
