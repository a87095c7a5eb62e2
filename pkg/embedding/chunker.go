package embedding

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/noteum-io/noteum/pkg/config"
)

// Chunker splits text into overlapping chunks. When a tokenizer exists
// for the model, chunks are measured in tokens; otherwise in runes.
type Chunker struct {
	encoding *tiktoken.Tiktoken

	chunkTokens  int
	tokenOverlap int
	chunkChars   int
	charOverlap  int
}

// NewChunker builds a chunker for the configured model. Tokenizer
// lookup failure is not an error; character chunking takes over.
func NewChunker(cfg *config.EmbeddingConfig) *Chunker {
	c := &Chunker{
		chunkTokens:  cfg.ChunkTokens,
		tokenOverlap: cfg.ChunkTokenOverlap,
		chunkChars:   cfg.ChunkChars,
		charOverlap:  cfg.ChunkCharOverlap,
	}

	encoding, err := tiktoken.EncodingForModel(cfg.Model)
	if err != nil {
		slog.Debug("No tokenizer for embedding model, using character chunking",
			"model", cfg.Model, "error", err)
		return c
	}
	c.encoding = encoding
	return c
}

// Chunk splits text. Input that fits in one chunk returns [text];
// empty input returns nil.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.encoding != nil {
		return c.chunkByTokens(text)
	}
	return c.chunkByChars(text)
}

func (c *Chunker) chunkByTokens(text string) []string {
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= c.chunkTokens {
		return []string{text}
	}

	step := c.chunkTokens - c.tokenOverlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := strings.TrimSpace(c.encoding.Decode(tokens[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

func (c *Chunker) chunkByChars(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.chunkChars {
		return []string{text}
	}

	step := c.chunkChars - c.charOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkChars
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
