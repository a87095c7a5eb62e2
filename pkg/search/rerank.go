package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
)

// Reranker reorders results through an external cross-encoder. With no
// endpoint configured it is a pass-through, and any failure falls back
// to the original order so search never degrades below engine output.
type Reranker struct {
	endpoint string
	topN     int
	client   *httpclient.Client
}

// NewReranker builds the reranker from config. An empty endpoint
// yields a pass-through instance.
func NewReranker(cfg config.RerankerConfig) *Reranker {
	r := &Reranker{
		endpoint: cfg.Endpoint,
		topN:     cfg.TopN,
	}
	if cfg.Endpoint == "" {
		return r
	}

	// No retries; a failed rerank falls back to engine order.
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithMaxRetries(0),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, httpclient.WithTLSConfig(&httpclient.TLSConfig{InsecureSkipVerify: true}))
	}
	r.client = httpclient.New(opts...)
	return r
}

// Enabled reports whether an endpoint is configured.
func (r *Reranker) Enabled() bool {
	return r.endpoint != ""
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank reorders results by cross-encoder relevance and trims to the
// configured top N. Documents are "title . snippet" strings.
func (r *Reranker) Rerank(ctx context.Context, rawQuery string, results []Result) []Result {
	if !r.Enabled() || len(results) == 0 {
		return results
	}

	reordered, err := r.call(ctx, rawQuery, results)
	if err != nil {
		slog.Warn("rerank failed, keeping engine order", "error", err)
		return results
	}
	return reordered
}

func (r *Reranker) call(ctx context.Context, rawQuery string, results []Result) ([]Result, error) {
	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Title + " . " + res.Snippet
	}

	body, err := json.Marshal(rerankRequest{
		Query:     rawQuery,
		Documents: docs,
		TopN:      r.topN,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("rerank response contained no results")
	}

	reordered := make([]Result, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(results) {
			return nil, fmt.Errorf("rerank index %d out of range", item.Index)
		}
		reordered = append(reordered, results[item.Index])
	}

	if r.topN > 0 && len(reordered) > r.topN {
		reordered = reordered[:r.topN]
	}
	return reordered, nil
}
