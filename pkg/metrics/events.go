package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// SearchEvent is one retrieval observation.
type SearchEvent struct {
	EventID         string
	UserID          string
	Query           string
	SearchType      string
	ResultCount     int
	LatencyMS       int64
	RanSemantic     *bool
	JudgeReason     string
	JudgeConfidence *float64
	ClickedNoteID   *int64
	CreatedAt       time.Time
}

// AIFeedback is a star rating on a generated answer.
type AIFeedback struct {
	Feature        string
	Rating         int
	Comment        string
	Model          string
	RequestSummary string
	UserID         string
	CreatedAt      time.Time
}

// RecordSearchEvent writes one event and returns its generated ID,
// which feedback rows reference.
func (s *Store) RecordSearchEvent(ctx context.Context, ev *SearchEvent) (string, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO search_events (event_id, user_id, query, search_type,
			result_count, latency_ms, ran_semantic, judge_reason,
			judge_confidence, clicked_note_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.EventID, nullString(ev.UserID), ev.Query, ev.SearchType,
		ev.ResultCount, ev.LatencyMS, ev.RanSemantic, nullString(ev.JudgeReason),
		ev.JudgeConfidence, ev.ClickedNoteID, ev.CreatedAt)
	if err != nil {
		return "", err
	}
	return ev.EventID, nil
}

// RecordSearchFeedback upserts the relevance signal for one
// (event, note, user) triple; a repeat call updates the verdict.
func (s *Store) RecordSearchFeedback(ctx context.Context, eventID string, noteID int64, userID string, relevant bool) error {
	if eventID == "" {
		return noteerr.New(noteerr.KindInvalidInput, "event_id is required")
	}

	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO search_feedback (event_id, note_id, user_id, relevant, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, note_id, user_id) DO UPDATE SET
			relevant = EXCLUDED.relevant,
			created_at = EXCLUDED.created_at`),
		eventID, noteID, userID, relevant, now())
	return err
}

// RecordAIFeedback writes one answer rating. Ratings run 1 to 5.
func (s *Store) RecordAIFeedback(ctx context.Context, fb *AIFeedback) error {
	if fb.Feature == "" {
		return noteerr.New(noteerr.KindInvalidInput, "feature is required")
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return noteerr.Newf(noteerr.KindInvalidInput, "rating must be 1-5, got %d", fb.Rating)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO ai_feedback (feature, rating, comment, model, request_summary, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		fb.Feature, fb.Rating, nullString(fb.Comment), nullString(fb.Model),
		nullString(fb.RequestSummary), nullString(fb.UserID), fb.CreatedAt)
	return err
}

// RecordClick marks which result the user opened.
func (s *Store) RecordClick(ctx context.Context, eventID string, noteID int64) error {
	result, err := s.db.ExecContext(ctx, s.bind(`
		UPDATE search_events SET clicked_note_id = ? WHERE event_id = ?`),
		noteID, eventID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return noteerr.New(noteerr.KindNotFound, "search event not found")
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
