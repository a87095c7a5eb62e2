package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noteum-io/noteum/pkg/config"
)

func rerankTestResults() []Result {
	return []Result{
		{NoteID: 1, Title: "first", Snippet: "first snippet", Score: 0.9},
		{NoteID: 2, Title: "second", Snippet: "second snippet", Score: 0.8},
		{NoteID: 3, Title: "third", Snippet: "third snippet", Score: 0.7},
	}
}

func TestRerankerPassThroughWhenUnconfigured(t *testing.T) {
	r := NewReranker(config.RerankerConfig{})

	in := rerankTestResults()
	out := r.Rerank(context.Background(), "query", in)

	if len(out) != 3 || out[0].NoteID != 1 {
		t.Error("unconfigured reranker must return input unchanged")
	}
}

func TestRerankerReorders(t *testing.T) {
	var gotDocs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("bad rerank request: %v", err)
		}
		gotDocs = body.Documents

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.99},
				{"index": 0, "relevance_score": 0.42},
				{"index": 1, "relevance_score": 0.10},
			},
		})
	}))
	defer server.Close()

	r := NewReranker(config.RerankerConfig{
		Endpoint: server.URL,
		TopN:     2,
		Timeout:  2 * time.Second,
	})

	out := r.Rerank(context.Background(), "query", rerankTestResults())

	if len(out) != 2 {
		t.Fatalf("expected top_n trim to 2, got %d", len(out))
	}
	if out[0].NoteID != 3 || out[1].NoteID != 1 {
		t.Errorf("expected order [3 1], got [%d %d]", out[0].NoteID, out[1].NoteID)
	}
	if len(gotDocs) != 3 || gotDocs[0] != "first . first snippet" {
		t.Errorf("documents must be title . snippet, got %v", gotDocs)
	}
}

func TestRerankerFailureKeepsOriginalOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r := NewReranker(config.RerankerConfig{
		Endpoint: server.URL,
		TopN:     10,
		Timeout:  2 * time.Second,
	})

	out := r.Rerank(context.Background(), "query", rerankTestResults())

	if len(out) != 3 || out[0].NoteID != 1 || out[2].NoteID != 3 {
		t.Error("failed rerank must return the original order")
	}
}

func TestRerankerBadIndexKeepsOriginalOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 99, "relevance_score": 1.0}},
		})
	}))
	defer server.Close()

	r := NewReranker(config.RerankerConfig{
		Endpoint: server.URL,
		TopN:     10,
		Timeout:  2 * time.Second,
	})

	out := r.Rerank(context.Background(), "query", rerankTestResults())
	if len(out) != 3 || out[0].NoteID != 1 {
		t.Error("out-of-range rerank index must fall back to original order")
	}
}

func TestRerankerEmptyInput(t *testing.T) {
	r := NewReranker(config.RerankerConfig{Endpoint: "http://unused.invalid", TopN: 5, Timeout: time.Second})

	if out := r.Rerank(context.Background(), "query", nil); len(out) != 0 {
		t.Error("empty input must return empty output without a call")
	}
}
