package config

import (
	"fmt"
	"os"
	"time"
)

// LLMProvider identifies the AI provider variant.
type LLMProvider string

const (
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderCodex     LLMProvider = "codex"
	LLMProviderGoogle    LLMProvider = "google"
	LLMProviderGLM       LLMProvider = "glm"
)

// LLMProviderConfig configures one AI provider instance.
type LLMProviderConfig struct {
	// Type of the provider variant.
	Type LLMProvider `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,description=Provider variant,enum=openai,enum=anthropic,enum=codex,enum=google,enum=glm"`

	// Model is the default model for this provider.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Default model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for API endpoint"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,minimum=0,maximum=2,default=0.7"`

	// MaxTokens limits response length. Anthropic requires a value; the
	// other variants leave it provider-default when zero.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,minimum=0"`

	// Timeout for provider HTTP calls.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=120s"`
}

// SetDefaults applies default values.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = detectProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Type {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case LLMProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case LLMProviderCodex:
			c.Model = "gpt-5"
		case LLMProviderGoogle:
			c.Model = "gemini-2.0-flash"
		case LLMProviderGLM:
			c.Model = "glm-4-plus"
		}
	}

	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(string(c.Type))
	}

	if c.Temperature == nil {
		c.Temperature = Float64Ptr(0.7)
	}

	// Anthropic rejects requests without max_tokens
	if c.Type == LLMProviderAnthropic && c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}

	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
}

// Validate checks the provider configuration.
func (c *LLMProviderConfig) Validate() error {
	validTypes := map[LLMProvider]bool{
		LLMProviderOpenAI:    true,
		LLMProviderAnthropic: true,
		LLMProviderCodex:     true,
		LLMProviderGoogle:    true,
		LLMProviderGLM:       true,
	}
	if !validTypes[c.Type] {
		return fmt.Errorf("invalid provider type: %s (valid: openai, anthropic, codex, google, glm)", c.Type)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required for provider %s", c.Type)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be in [0,2], got %v", *c.Temperature)
	}
	return nil
}

// detectProviderFromEnv picks a provider type based on which conventional
// API key environment variables are set.
func detectProviderFromEnv() LLMProvider {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return LLMProviderOpenAI
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return LLMProviderAnthropic
	}
	if os.Getenv("GOOGLE_API_KEY") != "" {
		return LLMProviderGoogle
	}
	if os.Getenv("GLM_API_KEY") != "" {
		return LLMProviderGLM
	}
	return LLMProviderOpenAI
}
