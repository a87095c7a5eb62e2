// Package llms implements the AI provider abstraction and the router
// that dispatches chat requests to whichever provider serves the
// requested model. Five provider variants are supported: openai,
// anthropic, codex (ChatGPT OAuth backend), google, and glm.
package llms

import (
	"context"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ImageData is an inline image attached to a message.
type ImageData struct {
	Base64Data string `json:"base64_data"`
	MIMEType   string `json:"mime_type"`
}

// Message is a provider-neutral chat message.
type Message struct {
	Role    string      `json:"role"`
	Content string      `json:"content"`
	Images  []ImageData `json:"images,omitempty"`
}

// Options carries per-request generation overrides. Zero values fall
// back to the provider's configured defaults.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// Usage reports token accounting when the upstream API provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed chat turn.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// StreamChunk is one unit of streamed output. A chunk with a non-nil
// Err terminates the stream; no further chunks follow it.
type StreamChunk struct {
	Text string
	Err  error
}

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Provider         string `json:"provider"`
	MaxContextTokens int    `json:"max_context_tokens"`
	Streaming        bool   `json:"streaming"`
	Default          bool   `json:"default,omitempty"`
}

// Provider is a chat backend. Stream always returns a channel; failures
// surface as a terminal StreamChunk carrying the error.
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []Message, model string, opts Options) (*Response, error)
	Stream(ctx context.Context, messages []Message, model string, opts Options) <-chan StreamChunk
	Models() []ModelInfo
	Close() error
}
