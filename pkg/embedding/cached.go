package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a Service with an LRU over single-text embeddings, so
// repeated query embeddings skip the backend.
type Cached struct {
	inner Service
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with a cache of the given entry count.
func NewCached(inner Service, size int) *Cached {
	cache, _ := lru.New[string, []float32](size)
	return &Cached{inner: inner, cache: cache}
}

// cacheKey mixes text and model so a model change invalidates entries.
func (c *Cached) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		c.cache.Add(key, vec)
	}
	return vec, nil
}

// EmbedBatch checks the cache per text and embeds only the misses,
// restoring input order afterwards.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		uncachedIndices = append(uncachedIndices, i)
		uncachedTexts = append(uncachedTexts, text)
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIndices {
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, nil
}

func (c *Cached) Chunk(text string) []string {
	return c.inner.Chunk(text)
}

func (c *Cached) EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error) {
	return embedChunks(ctx, c, text)
}

func (c *Cached) Dimension() int { return c.inner.Dimension() }

func (c *Cached) ModelName() string { return c.inner.ModelName() }

func (c *Cached) Close() error { return c.inner.Close() }

// Len reports the number of cached embeddings.
func (c *Cached) Len() int { return c.cache.Len() }
