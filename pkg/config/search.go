package config

import (
	"fmt"
	"time"
)

// SearchConfig configures the hybrid retrieval pipeline.
type SearchConfig struct {
	// DefaultLimit is the result count when the request omits one.
	DefaultLimit int `yaml:"default_limit,omitempty" json:"default_limit,omitempty" jsonschema:"title=Default Limit,minimum=1,default=10"`

	// MaxLimit caps the per-request result count.
	MaxLimit int `yaml:"max_limit,omitempty" json:"max_limit,omitempty" jsonschema:"title=Max Limit,minimum=1,default=100"`

	// SnippetLength truncates result snippets to this many characters.
	SnippetLength int `yaml:"snippet_length,omitempty" json:"snippet_length,omitempty" jsonschema:"title=Snippet Length,minimum=1,default=200"`

	// Judge controls the adaptive semantic-search decision.
	Judge JudgeConfig `yaml:"judge,omitempty" json:"judge,omitempty" jsonschema:"title=Judge"`

	// Fusion controls reciprocal-rank fusion.
	Fusion FusionConfig `yaml:"fusion,omitempty" json:"fusion,omitempty" jsonschema:"title=Fusion"`

	// Reranker configures the optional cross-encoder.
	Reranker RerankerConfig `yaml:"reranker,omitempty" json:"reranker,omitempty" jsonschema:"title=Reranker"`
}

// JudgeConfig holds the adaptive judge thresholds. Korean FTS scores run
// lower than English on the same corpus, so the minimum score is
// language-aware.
type JudgeConfig struct {
	// Adaptive disables always-run-semantic mode when true.
	Adaptive *bool `yaml:"adaptive,omitempty" json:"adaptive,omitempty" jsonschema:"title=Adaptive,default=true"`

	// MinScoreKorean is the FTS score floor for ko/mixed queries.
	MinScoreKorean float64 `yaml:"min_score_korean,omitempty" json:"min_score_korean,omitempty" jsonschema:"title=Min Score (Korean),default=0.1"`

	// MinScoreEnglish is the FTS score floor for English queries.
	MinScoreEnglish float64 `yaml:"min_score_english,omitempty" json:"min_score_english,omitempty" jsonschema:"title=Min Score (English),default=0.05"`

	// MinCoverage is the morpheme coverage floor.
	MinCoverage float64 `yaml:"min_coverage,omitempty" json:"min_coverage,omitempty" jsonschema:"title=Min Coverage,default=0.5"`

	// Confidence is the quality threshold below which semantic search runs.
	Confidence float64 `yaml:"confidence,omitempty" json:"confidence,omitempty" jsonschema:"title=Confidence,default=0.65"`
}

// FusionConfig holds RRF parameters.
type FusionConfig struct {
	// K is the RRF rank constant.
	K int `yaml:"k,omitempty" json:"k,omitempty" jsonschema:"title=K,minimum=1,default=60"`
}

// RerankerConfig configures the optional cross-encoder service. An empty
// endpoint leaves the reranker as a pass-through.
type RerankerConfig struct {
	// Endpoint of the cross-encoder HTTP service.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=Cross-encoder rerank endpoint"`

	// TopN results to keep after reranking.
	TopN int `yaml:"top_n,omitempty" json:"top_n,omitempty" jsonschema:"title=Top N,minimum=1,default=10"`

	// Timeout for the rerank call.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=10s"`

	// InsecureSkipVerify skips TLS verification (self-hosted dev only).
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty" jsonschema:"title=Insecure Skip Verify,default=false"`
}

// SetDefaults applies default values.
func (c *SearchConfig) SetDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 100
	}
	if c.SnippetLength == 0 {
		c.SnippetLength = 200
	}
	c.Judge.SetDefaults()
	if c.Fusion.K == 0 {
		c.Fusion.K = 60
	}
	if c.Reranker.TopN == 0 {
		c.Reranker.TopN = 10
	}
	if c.Reranker.Timeout == 0 {
		c.Reranker.Timeout = 10 * time.Second
	}
}

// SetDefaults applies default values.
func (c *JudgeConfig) SetDefaults() {
	if c.Adaptive == nil {
		c.Adaptive = BoolPtr(true)
	}
	if c.MinScoreKorean == 0 {
		c.MinScoreKorean = 0.1
	}
	if c.MinScoreEnglish == 0 {
		c.MinScoreEnglish = 0.05
	}
	if c.MinCoverage == 0 {
		c.MinCoverage = 0.5
	}
	if c.Confidence == 0 {
		c.Confidence = 0.65
	}
}

// Validate checks the search configuration.
func (c *SearchConfig) Validate() error {
	if c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default_limit (%d) exceeds max_limit (%d)", c.DefaultLimit, c.MaxLimit)
	}
	if c.Judge.Confidence < 0 || c.Judge.Confidence > 1 {
		return fmt.Errorf("judge confidence must be in [0,1], got %v", c.Judge.Confidence)
	}
	if c.Judge.MinCoverage <= 0 || c.Judge.MinCoverage > 1 {
		return fmt.Errorf("judge min_coverage must be in (0,1], got %v", c.Judge.MinCoverage)
	}
	if c.Fusion.K < 1 {
		return fmt.Errorf("fusion k must be positive, got %d", c.Fusion.K)
	}
	return nil
}

// IndexConfig configures the background embedding index driver.
type IndexConfig struct {
	// BatchSize is notes per transaction.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"title=Batch Size,minimum=1,default=5"`

	// BatchDelay is the pause between batches.
	BatchDelay time.Duration `yaml:"batch_delay,omitempty" json:"batch_delay,omitempty" jsonschema:"title=Batch Delay,default=500ms"`

	// Workers bounds parallel embedding calls within a batch.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty" jsonschema:"title=Workers,minimum=1,default=3"`
}

// SetDefaults applies default values.
func (c *IndexConfig) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 5
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = 500 * time.Millisecond
	}
	if c.Workers == 0 {
		c.Workers = 3
	}
}

// Validate checks the index driver configuration.
func (c *IndexConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}
