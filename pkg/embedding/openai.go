package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openaiService struct {
	cfg        *config.EmbeddingConfig
	httpClient *httpclient.Client
	chunker    *Chunker
	baseURL    string
}

type openaiEmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openaiEmbeddingResponse struct {
	Data  []openaiEmbeddingItem `json:"data"`
	Error *openaiAPIError       `json:"error,omitempty"`
}

type openaiAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func newOpenAIService(cfg *config.EmbeddingConfig) *openaiService {
	return &openaiService{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		chunker: NewChunker(cfg),
		baseURL: defaultOpenAIBaseURL,
	}
}

func (s *openaiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *openaiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := tracedBatch(ctx, texts[start:end], s.embedBatch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *openaiService) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := openaiEmbeddingRequest{
		Model: s.cfg.Model,
		Input: batch,
	}
	// Only v3 models accept a dimensions parameter.
	if strings.HasPrefix(s.cfg.Model, "text-embedding-3") {
		reqBody.Dimensions = s.cfg.Dimension
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "embedding request failed", err).
			WithProvider("openai")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to read embedding response", err).
			WithProvider("openai")
	}

	var parsed openaiEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to decode embedding response", err).
			WithProvider("openai").WithStatus(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("embedding API returned status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, noteerr.New(noteerr.KindEmbeddingFailure, msg).
			WithProvider("openai").WithStatus(resp.StatusCode)
	}
	if parsed.Error != nil {
		return nil, noteerr.New(noteerr.KindEmbeddingFailure, parsed.Error.Message).
			WithProvider("openai")
	}
	if len(parsed.Data) != len(batch) {
		return nil, noteerr.Newf(noteerr.KindEmbeddingFailure,
			"embedding count mismatch: sent %d texts, got %d embeddings", len(batch), len(parsed.Data)).
			WithProvider("openai")
	}

	// The API may return items out of order; the index field restores it.
	vectors := make([][]float32, len(batch))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(batch) {
			return nil, noteerr.Newf(noteerr.KindEmbeddingFailure,
				"embedding index %d out of range", item.Index).WithProvider("openai")
		}
		if err := validateDimension(item.Embedding, s.cfg.Dimension); err != nil {
			return nil, err
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, noteerr.Newf(noteerr.KindEmbeddingFailure,
				"no embedding returned for input %d", i).WithProvider("openai")
		}
	}
	return vectors, nil
}

func (s *openaiService) Chunk(text string) []string {
	return s.chunker.Chunk(text)
}

func (s *openaiService) EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error) {
	return embedChunks(ctx, s, text)
}

func (s *openaiService) Dimension() int { return s.cfg.Dimension }

func (s *openaiService) ModelName() string { return s.cfg.Model }

func (s *openaiService) Close() error { return nil }

func validateDimension(vector []float32, want int) error {
	if want > 0 && len(vector) != want {
		return noteerr.Newf(noteerr.KindEmbeddingFailure,
			"embedding dimension mismatch: got %d, want %d", len(vector), want)
	}
	return nil
}
