package notes

import (
	"context"
)

// SearchHit is one store-level match; engines attach the search type.
type SearchHit struct {
	NoteID  int64
	Title   string
	Snippet string
	Score   float64
}

// SearchFTS runs the token-index query against the tsvector column.
// The expression uses ` | ` OR syntax from the query preprocessor.
func (s *Store) SearchFTS(ctx context.Context, expression string, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.title,
			ts_headline('simple', coalesce(nullif(n.plain_body, ''), n.title), q.query,
				'StartSel=, StopSel=, MaxWords=35, MinWords=15') AS snippet,
			ts_rank(n.search_vector, q.query) AS score
		FROM notes n, to_tsquery('simple', $1) q(query)
		WHERE n.search_vector @@ q.query
		ORDER BY score DESC, n.id
		LIMIT $2`, expression, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHits(rows)
}

// SearchTrigram ranks notes by character-3-gram similarity against the
// raw query. Catches typos and partial forms FTS misses.
func (s *Store) SearchTrigram(ctx context.Context, rawQuery string, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.title,
			left(coalesce(nullif(n.plain_body, ''), n.title), 300) AS snippet,
			similarity(coalesce(n.title, '') || ' ' || coalesce(n.plain_body, ''), $1) AS score
		FROM notes n
		WHERE (coalesce(n.title, '') || ' ' || coalesce(n.plain_body, '')) % $1
		ORDER BY score DESC, n.id
		LIMIT $2`, rawQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHits(rows)
}

// SearchSemantic finds nearest chunks by cosine distance and keeps the
// best chunk per note. Score is 1 - distance.
func (s *Store) SearchSemantic(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT note_id, title, snippet, score FROM (
			SELECT DISTINCT ON (e.note_id)
				e.note_id, n.title, e.chunk_text AS snippet,
				1 - (e.vector <=> $1::vector) AS score
			FROM embeddings e
			JOIN notes n ON n.id = e.note_id
			ORDER BY e.note_id, e.vector <=> $1::vector
		) best
		ORDER BY score DESC, note_id
		LIMIT $2`, formatVector(vector), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHits(rows)
}

type hitRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanHits(rows hitRows) ([]SearchHit, error) {
	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.NoteID, &h.Title, &h.Snippet, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
