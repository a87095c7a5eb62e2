// Package embedding turns note text and queries into vectors. Two
// backends are supported: the OpenAI embeddings API and a self-hosted
// HTTP service. Both are wrapped with an LRU cache when enabled.
package embedding

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/observability"
)

// ChunkEmbedding pairs a chunk of text with its vector.
type ChunkEmbedding struct {
	Text   string
	Vector []float32
}

// Service produces embeddings and chunks text for indexing.
type Service interface {
	// Embed returns the vector for one text. Empty or whitespace-only
	// input returns nil without calling the backend.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns vectors for texts in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chunk splits text into overlapping chunks sized for the model.
	Chunk(text string) []string

	// EmbedChunks chunks the text and embeds every chunk.
	EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error)

	// Dimension is the configured vector width.
	Dimension() int

	// ModelName identifies the embedding model.
	ModelName() string

	// Close releases backend resources.
	Close() error
}

// NewService builds the configured backend. An endpoint URL selects the
// local service; otherwise the remote provider is used.
func NewService(cfg *config.EmbeddingConfig) (Service, error) {
	var backend Service
	switch {
	case cfg.Endpoint != "":
		backend = newLocalService(cfg)
	case cfg.Provider == config.EmbeddingProviderOpenAI:
		backend = newOpenAIService(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		return NewCached(backend, cfg.CacheSize), nil
	}
	return backend, nil
}

// tracedBatch wraps one upstream embedding call in a span and records
// the batch metric. Cache hits never reach this point.
func tracedBatch(ctx context.Context, batch []string, call func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	ctx, span := observability.GetTracer("noteum.embedding").Start(ctx, observability.SpanEmbedding,
		trace.WithAttributes(attribute.Int("embedding.texts", len(batch))))
	defer span.End()

	vectors, err := call(ctx, batch)
	observability.GetGlobalMetrics().RecordEmbedding(ctx, len(batch), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return vectors, nil
}

// embedChunks implements EmbedChunks on top of Chunk and EmbedBatch so
// cache wrappers see every chunk.
func embedChunks(ctx context.Context, s Service, text string) ([]ChunkEmbedding, error) {
	chunks := s.Chunk(text)
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, err := s.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}

	out := make([]ChunkEmbedding, len(chunks))
	for i := range chunks {
		out[i] = ChunkEmbedding{Text: chunks[i], Vector: vectors[i]}
	}
	return out, nil
}
