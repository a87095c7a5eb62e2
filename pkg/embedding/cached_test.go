package embedding

import (
	"context"
	"strings"
	"testing"
)

// countingService is a fake backend that records how many texts it
// actually embedded.
type countingService struct {
	model    string
	calls    int
	embedded int
}

func (f *countingService) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	f.embedded++
	return []float32{float32(len(text))}, nil
}

func (f *countingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.embedded += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *countingService) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Fields(text)
}

func (f *countingService) EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error) {
	return embedChunks(ctx, f, text)
}

func (f *countingService) Dimension() int { return 1 }

func (f *countingService) ModelName() string { return f.model }

func (f *countingService) Close() error { return nil }

func TestCached_EmbedHitsCache(t *testing.T) {
	inner := &countingService{model: "m1"}
	cached := NewCached(inner, 10)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := cached.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("backend calls = %d, want 1", inner.calls)
	}
	if first[0] != second[0] {
		t.Errorf("cached vector differs: %v vs %v", first, second)
	}
	if cached.Len() != 1 {
		t.Errorf("cache length = %d, want 1", cached.Len())
	}
}

func TestCached_EmbedBatchPartialHit(t *testing.T) {
	inner := &countingService{model: "m1"}
	cached := NewCached(inner, 10)
	ctx := context.Background()

	if _, err := cached.Embed(ctx, "alpha"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	vectors, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	// alpha was cached; only beta and gamma reach the backend.
	if inner.embedded != 3 { // 1 from Embed + 2 from batch
		t.Errorf("backend embedded %d texts, want 3", inner.embedded)
	}
	if vectors[0][0] != 5 || vectors[1][0] != 4 || vectors[2][0] != 5 {
		t.Errorf("order not preserved: %v", vectors)
	}
}

func TestCached_ModelIsPartOfKey(t *testing.T) {
	a := NewCached(&countingService{model: "model-a"}, 10)
	b := NewCached(&countingService{model: "model-b"}, 10)

	if a.cacheKey("same text") == b.cacheKey("same text") {
		t.Error("cache keys must differ across models")
	}
}

func TestCached_EmbedChunksCachesEachChunk(t *testing.T) {
	inner := &countingService{model: "m1"}
	cached := NewCached(inner, 10)
	ctx := context.Background()

	chunks, err := cached.EmbedChunks(ctx, "one two three")
	if err != nil {
		t.Fatalf("EmbedChunks failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	// Re-embedding a chunk hits the cache.
	before := inner.embedded
	if _, err := cached.Embed(ctx, "two"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.embedded != before {
		t.Errorf("chunk vector was not cached")
	}
}

func TestCached_EmptyBatch(t *testing.T) {
	cached := NewCached(&countingService{model: "m1"}, 10)

	vectors, err := cached.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("got %d vectors, want 0", len(vectors))
	}
}
