// Package config defines the typed configuration tree and its loader.
//
// Configuration is YAML with ${VAR} environment expansion. Every section
// implements SetDefaults and Validate; loading runs the full pipeline so
// a *Config handed to the rest of the system is always complete and
// checked.
package config

import (
	"fmt"
)

// Config is the root configuration.
type Config struct {
	// Server configures the HTTP surface.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server"`

	// Logger configures logging.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger"`

	// Database configures the primary Postgres note store.
	Database DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database"`

	// MetricsDB configures the search-event and feedback store.
	MetricsDB MetricsDBConfig `yaml:"metrics_db,omitempty" json:"metrics_db,omitempty" jsonschema:"title=Metrics DB"`

	// Vector configures the optional external vector index.
	Vector VectorConfig `yaml:"vector,omitempty" json:"vector,omitempty" jsonschema:"title=Vector"`

	// Search configures the hybrid retrieval pipeline.
	Search SearchConfig `yaml:"search,omitempty" json:"search,omitempty" jsonschema:"title=Search"`

	// Index configures the background embedding index driver.
	Index IndexConfig `yaml:"index,omitempty" json:"index,omitempty" jsonschema:"title=Index"`

	// Embedding configures the embedding service.
	Embedding EmbeddingConfig `yaml:"embedding,omitempty" json:"embedding,omitempty" jsonschema:"title=Embedding"`

	// LLMs maps provider name to its configuration. Providers whose API
	// key resolves empty are skipped at startup with a log line.
	LLMs map[string]*LLMProviderConfig `yaml:"llms,omitempty" json:"llms,omitempty" jsonschema:"title=LLM Providers"`

	// OAuth configures user OAuth connections and token encryption.
	OAuth OAuthConfig `yaml:"oauth,omitempty" json:"oauth,omitempty" jsonschema:"title=OAuth"`

	// Auth configures bearer-token authentication.
	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty" jsonschema:"title=Auth"`

	// Observability configures tracing and metrics.
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability"`

	// Settings points at the runtime-tunable settings file (feature
	// prompts, judge thresholds, monitor intervals).
	Settings SettingsConfig `yaml:"settings,omitempty" json:"settings,omitempty" jsonschema:"title=Settings"`
}

// ProcessConfigPipeline runs defaults then validation on a decoded config.
func ProcessConfigPipeline(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: config cannot be nil")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ProcessConfigPipeline: validation failed: %w", err)
	}

	return cfg, nil
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Database.SetDefaults()
	c.MetricsDB.SetDefaults()
	c.Vector.SetDefaults()
	c.Search.SetDefaults()
	c.Index.SetDefaults()
	c.Embedding.SetDefaults()
	c.OAuth.SetDefaults()
	c.Auth.SetDefaults()
	c.Observability.SetDefaults()
	c.Settings.SetDefaults()

	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMProviderConfig)
	}
	for name := range c.LLMs {
		if c.LLMs[name] != nil {
			c.LLMs[name].SetDefaults()
		}
	}
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config validation failed: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}
	if err := c.MetricsDB.Validate(); err != nil {
		return fmt.Errorf("metrics_db config validation failed: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector config validation failed: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search config validation failed: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index config validation failed: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding config validation failed: %w", err)
	}
	for name, llm := range c.LLMs {
		if llm == nil {
			return fmt.Errorf("llm %q: configuration is empty", name)
		}
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm %q validation failed: %w", name, err)
		}
	}
	if err := c.OAuth.Validate(); err != nil {
		return fmt.Errorf("oauth config validation failed: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config validation failed: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config validation failed: %w", err)
	}
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings config validation failed: %w", err)
	}
	return nil
}
