package metrics

import (
	"context"
	"database/sql"
)

// SearchStats aggregates the recorded events for the stats endpoint.
type SearchStats struct {
	TotalSearches      int            `json:"total_searches"`
	AvgLatencyMS       float64        `json:"avg_latency_ms"`
	AvgResultCount     float64        `json:"avg_result_count"`
	TypeCounts         map[string]int `json:"type_counts"`
	SemanticRate       float64        `json:"semantic_rate"`
	ZeroResultRate     float64        `json:"zero_result_rate"`
	FeedbackRelevant   int            `json:"feedback_relevant"`
	FeedbackIrrelevant int            `json:"feedback_irrelevant"`
	AIFeedbackCount    int            `json:"ai_feedback_count"`
	AIAvgRating        float64        `json:"ai_avg_rating"`
}

// Stats computes the aggregate view over all recorded events.
func (s *Store) Stats(ctx context.Context) (*SearchStats, error) {
	stats := &SearchStats{TypeCounts: make(map[string]int)}

	var avgLatency, avgResults sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(latency_ms), AVG(result_count)
		FROM search_events`).
		Scan(&stats.TotalSearches, &avgLatency, &avgResults)
	if err != nil {
		return nil, err
	}
	stats.AvgLatencyMS = avgLatency.Float64
	stats.AvgResultCount = avgResults.Float64

	rows, err := s.db.QueryContext(ctx, `
		SELECT search_type, COUNT(*) FROM search_events GROUP BY search_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var searchType string
		var count int
		if err := rows.Scan(&searchType, &count); err != nil {
			return nil, err
		}
		stats.TypeCounts[searchType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalSearches > 0 {
		var semanticRuns, zeroResults int
		err = s.db.QueryRowContext(ctx, `
			SELECT
				COUNT(CASE WHEN ran_semantic THEN 1 END),
				COUNT(CASE WHEN result_count = 0 THEN 1 END)
			FROM search_events`).
			Scan(&semanticRuns, &zeroResults)
		if err != nil {
			return nil, err
		}
		stats.SemanticRate = float64(semanticRuns) / float64(stats.TotalSearches)
		stats.ZeroResultRate = float64(zeroResults) / float64(stats.TotalSearches)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN relevant THEN 1 END),
			COUNT(CASE WHEN NOT relevant THEN 1 END)
		FROM search_feedback`).
		Scan(&stats.FeedbackRelevant, &stats.FeedbackIrrelevant)
	if err != nil {
		return nil, err
	}

	var avgRating sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(rating) FROM ai_feedback`).
		Scan(&stats.AIFeedbackCount, &avgRating)
	if err != nil {
		return nil, err
	}
	stats.AIAvgRating = avgRating.Float64

	return stats, nil
}
