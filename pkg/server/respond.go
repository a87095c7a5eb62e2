package server

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"golang.org/x/text/language"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// Supported response languages, English first as the fallback.
var languageMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Korean,
})

// requestLang picks the error-message language from Accept-Language.
func requestLang(r *http.Request) noteerr.Lang {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return noteerr.LangEnglish
	}
	if _, idx, _ := languageMatcher.Match(tags...); idx == 1 {
		return noteerr.LangKorean
	}
	return noteerr.LangEnglish
}

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

// respondError maps an error to its HTTP status and the localized
// detail message. Internal details stay in the log, never in the body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := noteerr.KindOf(err)
	status := noteerr.HTTPStatus(err)

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path,
			"kind", string(kind), "error", err)
	}

	writeJSON(w, status, map[string]string{
		"detail": noteerr.LocalizedMessage(kind, requestLang(r)),
	})
}
