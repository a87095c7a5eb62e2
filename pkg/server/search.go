package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/noteum-io/noteum/pkg/auth"
	"github.com/noteum-io/noteum/pkg/index"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/search"
)

// handleSearch serves GET /search. Semantics live in the search
// service; empty queries, unknown types, and out-of-range limits come
// back as InvalidInput.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, noteerr.Newf(noteerr.KindInvalidInput, "limit must be a number, got %q", raw))
			return
		}
		limit = n
	}

	resp, err := s.deps.Search.Search(r.Context(), search.Request{
		Query:  q.Get("q"),
		Type:   search.Type(q.Get("type")),
		Limit:  limit,
		UserID: auth.UserID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleIndexStart serves POST /search/index. A run already in
// progress is not an error; the response says so and keeps the 200.
func (s *Server) handleIndexStart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Driver.Start(); err != nil {
		if noteerr.IsKind(err, noteerr.KindConflictBusy) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "already_indexing",
				"message": "an index run is already in progress",
			})
			return
		}
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "indexing",
		"message": "index run started",
	})
}

type indexStatusResponse struct {
	Status       index.Status `json:"status"`
	TotalNotes   int          `json:"total_notes"`
	IndexedNotes int          `json:"indexed_notes"`
	PendingNotes int          `json:"pending_notes"`
	Failed       int          `json:"failed"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// handleIndexStatus serves GET /search/index/status: the driver's run
// state plus whole-corpus coverage counts.
func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	progress := s.deps.Driver.Progress()

	total, err := s.deps.Notes.CountNotes(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	indexed, err := s.deps.Notes.CountIndexedNotes(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, indexStatusResponse{
		Status:       progress.Status,
		TotalNotes:   total,
		IndexedNotes: indexed,
		PendingNotes: total - indexed,
		Failed:       progress.Failed,
		ErrorMessage: progress.ErrorMessage,
	})
}

type searchFeedbackRequest struct {
	EventID  string `json:"event_id"`
	NoteID   int64  `json:"note_id"`
	Relevant bool   `json:"relevant"`
}

// handleSearchFeedback serves POST /search/feedback: the relevance
// verdict for one result of a recorded search event.
func (s *Server) handleSearchFeedback(w http.ResponseWriter, r *http.Request) {
	var req searchFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, noteerr.Wrap(noteerr.KindInvalidInput, "invalid JSON body", err))
		return
	}
	if req.EventID == "" || req.NoteID == 0 {
		s.respondError(w, r, noteerr.New(noteerr.KindInvalidInput, "event_id and note_id are required"))
		return
	}

	err := s.deps.Feedback.RecordSearchFeedback(r.Context(), req.EventID, req.NoteID,
		auth.UserID(r.Context()), req.Relevant)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

// handleSearchStats serves GET /search/stats.
func (s *Server) handleSearchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Feedback.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
