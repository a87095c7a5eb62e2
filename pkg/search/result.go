// Package search runs the hybrid retrieval pipeline: query analysis,
// keyword and semantic engines, the adaptive judge, reciprocal rank
// fusion, and the optional cross-encoder reranker.
package search

import (
	"github.com/noteum-io/noteum/pkg/notes"
)

// Type labels which engine produced a result set.
type Type string

const (
	TypeHybrid   Type = "hybrid"
	TypeFTS      Type = "fts"
	TypeSemantic Type = "semantic"
	TypeTrigram  Type = "trigram"
)

// ValidType reports whether t names a supported search type.
func ValidType(t Type) bool {
	switch t {
	case TypeHybrid, TypeFTS, TypeSemantic, TypeTrigram:
		return true
	}
	return false
}

// Result is the common shape every engine returns.
type Result struct {
	NoteID     int64   `json:"note_id"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	SearchType Type    `json:"search_type"`
}

// fromHits converts store hits and labels them with the engine type.
func fromHits(hits []notes.SearchHit, t Type) []Result {
	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			NoteID:     h.NoteID,
			Title:      h.Title,
			Snippet:    h.Snippet,
			Score:      h.Score,
			SearchType: t,
		}
	}
	return results
}

// truncateSnippets trims every snippet to at most n runes.
func truncateSnippets(results []Result, n int) {
	if n <= 0 {
		return
	}
	for i := range results {
		runes := []rune(results[i].Snippet)
		if len(runes) > n {
			results[i].Snippet = string(runes[:n])
		}
	}
}
