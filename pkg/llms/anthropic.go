package llms

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// The messages API rejects requests without max_tokens.
	anthropicDefaultMaxTokens = 4096
)

var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
}

// Anthropic talks to the messages API over raw HTTP.
type Anthropic struct {
	cfg    *config.LLMProviderConfig
	client *httpclient.Client
	base   string
}

// NewAnthropic builds the provider from configuration. The API key is
// required.
func NewAnthropic(cfg *config.LLMProviderConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "anthropic: api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = anthropicDefaultBaseURL
	}
	return &Anthropic{
		cfg:    cfg,
		client: newHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
		base:   strings.TrimSuffix(base, "/"),
	}, nil
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) Close() error { return nil }

func (p *Anthropic) Models() []ModelInfo {
	return modelCatalog("anthropic", p.cfg.Model, anthropicModels)
}

// Messages API wire types.

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      *anthropicUsage    `json:"usage"`
	Error      *anthropicError    `json:"error"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *anthropicError `json:"error"`
}

// buildRequest separates system messages: they are concatenated with a
// blank line into the top-level system parameter, the rest go through
// as content blocks.
func (p *Anthropic) buildRequest(messages []Message, model string, opts Options, stream bool) anthropicRequest {
	req := anthropicRequest{
		Model:       model,
		MaxTokens:   anthropicDefaultMaxTokens,
		Temperature: p.cfg.Temperature,
		Stream:      stream,
	}
	if p.cfg.MaxTokens > 0 {
		req.MaxTokens = p.cfg.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		content := make([]anthropicContent, 0, len(m.Images)+1)
		if m.Content != "" {
			content = append(content, anthropicContent{Type: "text", Text: m.Content})
		}
		for _, img := range m.Images {
			content = append(content, anthropicContent{
				Type: "image",
				Source: &anthropicSource{
					Type:      "base64",
					MediaType: img.MIMEType,
					Data:      img.Base64Data,
				},
			})
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: content})
	}
	req.System = strings.Join(system, "\n\n")
	return req
}

func (p *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

func (p *Anthropic) Chat(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	model = resolveModel(model, p.cfg)

	resp, err := postJSON(ctx, p.client, p.base+"/v1/messages", p.headers(),
		p.buildRequest(messages, model, opts, false))
	if err := checkResponse(resp, err, p.Name()); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, providerFailure(p.Name(), 0, "decode response: %v", err)
	}
	if body.Error != nil {
		return nil, providerFailure(p.Name(), 0, "api error: %s", body.Error.Message)
	}

	var text strings.Builder
	for _, block := range body.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := &Response{
		Content:      text.String(),
		Model:        model,
		Provider:     p.Name(),
		FinishReason: body.StopReason,
	}
	if body.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     body.Usage.InputTokens,
			CompletionTokens: body.Usage.OutputTokens,
			TotalTokens:      body.Usage.InputTokens + body.Usage.OutputTokens,
		}
	}
	return out, nil
}

func (p *Anthropic) Stream(ctx context.Context, messages []Message, model string, opts Options) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)
		if err := p.streamInto(ctx, messages, resolveModel(model, p.cfg), opts, out); err != nil {
			out <- StreamChunk{Err: err}
		}
	}()
	return out
}

func (p *Anthropic) streamInto(ctx context.Context, messages []Message, model string, opts Options, out chan<- StreamChunk) error {
	resp, err := postJSON(ctx, p.client, p.base+"/v1/messages", p.headers(),
		p.buildRequest(messages, model, opts, true))
	if err := checkResponse(resp, err, p.Name()); err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				select {
				case out <- StreamChunk{Text: event.Delta.Text}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case "error":
			msg := "stream error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			return providerFailure(p.Name(), 0, "api error: %s", msg)
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return providerFailure(p.Name(), 0, "read stream: %v", err)
	}
	return nil
}
