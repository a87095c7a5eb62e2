package config

import (
	"fmt"
	"time"
)

// EmbeddingProvider identifies the embedding backend.
type EmbeddingProvider string

const (
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
	EmbeddingProviderLocal  EmbeddingProvider = "local"
)

// EmbeddingConfig configures the embedding service. Setting an Endpoint
// selects the local HTTP backend regardless of Provider.
type EmbeddingConfig struct {
	// Provider type (openai, local).
	Provider EmbeddingProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=openai,enum=local,default=openai"`

	// Model name for the remote provider.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=text-embedding-3-small"`

	// APIKey for the remote provider. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key (use ${OPENAI_API_KEY})"`

	// Endpoint of a local embedding service exposing POST /embed. Setting
	// this selects the local backend.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=Local embedding service URL"`

	// Dimension of produced vectors. Stored vectors are validated
	// against this on insert.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,minimum=1,default=1536"`

	// ChunkTokens is the chunk size in tokens when a tokenizer is
	// available for the model.
	ChunkTokens int `yaml:"chunk_tokens,omitempty" json:"chunk_tokens,omitempty" jsonschema:"title=Chunk Tokens,minimum=1,default=500"`

	// ChunkTokenOverlap is the token overlap between chunks.
	ChunkTokenOverlap int `yaml:"chunk_token_overlap,omitempty" json:"chunk_token_overlap,omitempty" jsonschema:"title=Chunk Token Overlap,minimum=0,default=50"`

	// ChunkChars is the fallback chunk size in characters.
	ChunkChars int `yaml:"chunk_chars,omitempty" json:"chunk_chars,omitempty" jsonschema:"title=Chunk Chars,minimum=1,default=2000"`

	// ChunkCharOverlap is the fallback character overlap.
	ChunkCharOverlap int `yaml:"chunk_char_overlap,omitempty" json:"chunk_char_overlap,omitempty" jsonschema:"title=Chunk Char Overlap,minimum=0,default=200"`

	// CacheSize is the LRU entry count for query embeddings.
	CacheSize int `yaml:"cache_size,omitempty" json:"cache_size,omitempty" jsonschema:"title=Cache Size,minimum=0,default=1000"`

	// BatchSize bounds texts per embedding API call.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"title=Batch Size,minimum=1,default=64"`

	// Timeout for embedding HTTP calls.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=60s"`

	// InsecureSkipVerify skips TLS verification for the local endpoint.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty" jsonschema:"title=Insecure Skip Verify,default=false"`
}

// SetDefaults applies default values.
func (c *EmbeddingConfig) SetDefaults() {
	if c.Provider == "" {
		if c.Endpoint != "" {
			c.Provider = EmbeddingProviderLocal
		} else {
			c.Provider = EmbeddingProviderOpenAI
		}
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.APIKey == "" && c.Provider == EmbeddingProviderOpenAI {
		c.APIKey = GetProviderAPIKey("openai")
	}
	if c.Dimension == 0 {
		c.Dimension = 1536
	}
	if c.ChunkTokens == 0 {
		c.ChunkTokens = 500
	}
	if c.ChunkTokenOverlap == 0 {
		c.ChunkTokenOverlap = 50
	}
	if c.ChunkChars == 0 {
		c.ChunkChars = 2000
	}
	if c.ChunkCharOverlap == 0 {
		c.ChunkCharOverlap = 200
	}
	if c.CacheSize == 0 {
		c.CacheSize = 1000
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Validate checks the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case EmbeddingProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("embedding api_key is required for openai provider")
		}
	case EmbeddingProviderLocal:
		if c.Endpoint == "" {
			return fmt.Errorf("embedding endpoint is required for local provider")
		}
	default:
		return fmt.Errorf("invalid embedding provider: %s (valid: openai, local)", c.Provider)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Dimension)
	}
	if c.ChunkTokenOverlap >= c.ChunkTokens {
		return fmt.Errorf("chunk_token_overlap (%d) must be smaller than chunk_tokens (%d)", c.ChunkTokenOverlap, c.ChunkTokens)
	}
	if c.ChunkCharOverlap >= c.ChunkChars {
		return fmt.Errorf("chunk_char_overlap (%d) must be smaller than chunk_chars (%d)", c.ChunkCharOverlap, c.ChunkChars)
	}
	return nil
}
