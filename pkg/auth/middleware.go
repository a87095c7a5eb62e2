package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// ErrorResponder writes an error response. The server injects its
// localized responder so auth failures read like every other failure.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

func defaultResponder(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(noteerr.HTTPStatus(err))
	msg := noteerr.LocalizedMessage(noteerr.KindOf(err), noteerr.LangEnglish)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

// Middleware enforces bearer authentication on every route except the
// excluded paths. Validated claims land in the request context. The
// ResponseWriter is passed through untouched so streaming handlers keep
// their http.Flusher.
func Middleware(validator TokenValidator, excludedPaths []string, respond ErrorResponder) func(http.Handler) http.Handler {
	if respond == nil {
		respond = defaultResponder
	}
	excluded := make(map[string]bool, len(excludedPaths))
	for _, p := range excludedPaths {
		excluded[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excluded[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, err := bearerToken(r)
			if err != nil {
				respond(w, r, err)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				respond(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", noteerr.New(noteerr.KindUnauthorized, "missing authorization header")
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", noteerr.New(noteerr.KindUnauthorized, "authorization header must be Bearer <token>")
	}
	return token, nil
}

// RequireRole guards a route with a role check. Requests without claims
// pass: that only happens when authentication is disabled, and a dev
// setup without auth should not lock out its own endpoints.
func RequireRole(respond ErrorResponder, roles ...string) func(http.Handler) http.Handler {
	if respond == nil {
		respond = defaultResponder
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims != nil && !claims.HasRole(roles...) {
				respond(w, r, noteerr.Newf(noteerr.KindPermissionDenied,
					"requires one of roles: %s", strings.Join(roles, ", ")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
