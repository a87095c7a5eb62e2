package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

// localService talks to a self-hosted embedding server exposing
// POST /embed with {"input": [...], "dimensions": N}.
type localService struct {
	cfg        *config.EmbeddingConfig
	httpClient *httpclient.Client
	chunker    *Chunker
	endpoint   string
}

type localEmbedRequest struct {
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func newLocalService(cfg *config.EmbeddingConfig) *localService {
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, httpclient.WithTLSConfig(&httpclient.TLSConfig{
			InsecureSkipVerify: true,
		}))
	}

	return &localService{
		cfg:        cfg,
		httpClient: httpclient.New(opts...),
		chunker:    NewChunker(cfg),
		endpoint:   strings.TrimRight(cfg.Endpoint, "/") + "/embed",
	}
}

func (s *localService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *localService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (s *localService) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload, err := json.Marshal(localEmbedRequest{
		Input:      batch,
		Dimensions: s.cfg.Dimension,
	})
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "local embedding request failed", err).
			WithProvider("local")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, noteerr.Newf(noteerr.KindEmbeddingFailure,
			"local embedding service returned status %d", resp.StatusCode).
			WithProvider("local").WithStatus(resp.StatusCode)
	}

	var parsed localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, noteerr.Wrap(noteerr.KindEmbeddingFailure, "failed to decode embedding response", err).
			WithProvider("local")
	}

	if len(parsed.Embeddings) != len(batch) {
		return nil, noteerr.Newf(noteerr.KindEmbeddingFailure,
			"embedding count mismatch: sent %d texts, got %d embeddings",
			len(batch), len(parsed.Embeddings)).WithProvider("local")
	}
	for _, v := range parsed.Embeddings {
		if err := validateDimension(v, s.cfg.Dimension); err != nil {
			return nil, err
		}
	}
	return parsed.Embeddings, nil
}

func (s *localService) Chunk(text string) []string {
	return s.chunker.Chunk(text)
}

func (s *localService) EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error) {
	return embedChunks(ctx, s, text)
}

func (s *localService) Dimension() int { return s.cfg.Dimension }

func (s *localService) ModelName() string { return s.cfg.Model }

func (s *localService) Close() error { return nil }
