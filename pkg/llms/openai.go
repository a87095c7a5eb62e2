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

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// openAIModels are the chat models the hosted API serves, beyond
// whatever model the provider is configured with.
var openAIModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"}

// OpenAI talks to the chat-completions API over raw HTTP. It also
// backs any OpenAI-compatible endpoint via a custom base URL.
type OpenAI struct {
	cfg    *config.LLMProviderConfig
	client *httpclient.Client
	base   string
}

// NewOpenAI builds the provider from configuration. The API key is
// required.
func NewOpenAI(cfg *config.LLMProviderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "openai: api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = openAIDefaultBaseURL
	}
	return &OpenAI{
		cfg:    cfg,
		client: newHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
		base:   strings.TrimSuffix(base, "/"),
	}, nil
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Close() error { return nil }

func (p *OpenAI) Models() []ModelInfo {
	return modelCatalog("openai", p.cfg.Model, openAIModels)
}

// Chat-completions wire types.

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []openAIContentPart for multimodal turns
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
	Error   *openAIError   `json:"error"`
}

type openAIChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Error   *openAIError         `json:"error"`
}

type openAIStreamChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (p *OpenAI) buildRequest(messages []Message, model string, opts Options, stream bool) openAIRequest {
	req := openAIRequest{
		Model:       model,
		Messages:    make([]openAIMessage, 0, len(messages)),
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Stream:      stream,
	}
	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	for _, m := range messages {
		if len(m.Images) == 0 {
			req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := make([]openAIContentPart, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, openAIContentPart{Type: "text", Text: m.Content})
		}
		for _, img := range m.Images {
			parts = append(parts, openAIContentPart{
				Type:     "image_url",
				ImageURL: &openAIImageURL{URL: dataURL(img)},
			})
		}
		req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: parts})
	}
	return req
}

func (p *OpenAI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
}

func (p *OpenAI) Chat(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	model = resolveModel(model, p.cfg)

	resp, err := postJSON(ctx, p.client, p.base+"/chat/completions", p.headers(),
		p.buildRequest(messages, model, opts, false))
	if err := checkResponse(resp, err, p.Name()); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, providerFailure(p.Name(), 0, "decode response: %v", err)
	}
	if body.Error != nil {
		return nil, providerFailure(p.Name(), 0, "api error: %s", body.Error.Message)
	}
	if len(body.Choices) == 0 {
		return nil, providerFailure(p.Name(), 0, "empty response")
	}

	out := &Response{
		Content:      body.Choices[0].Message.Content,
		Model:        model,
		Provider:     p.Name(),
		FinishReason: body.Choices[0].FinishReason,
	}
	if body.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     body.Usage.PromptTokens,
			CompletionTokens: body.Usage.CompletionTokens,
			TotalTokens:      body.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (p *OpenAI) Stream(ctx context.Context, messages []Message, model string, opts Options) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)
		if err := p.streamInto(ctx, messages, resolveModel(model, p.cfg), opts, out); err != nil {
			out <- StreamChunk{Err: err}
		}
	}()
	return out
}

func (p *OpenAI) streamInto(ctx context.Context, messages []Message, model string, opts Options, out chan<- StreamChunk) error {
	resp, err := postJSON(ctx, p.client, p.base+"/chat/completions", p.headers(),
		p.buildRequest(messages, model, opts, true))
	if err := checkResponse(resp, err, p.Name()); err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			return nil
		}

		var event openAIStreamResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		if event.Error != nil {
			return providerFailure(p.Name(), 0, "api error: %s", event.Error.Message)
		}
		if len(event.Choices) == 0 {
			continue
		}
		if text := event.Choices[0].Delta.Content; text != "" {
			select {
			case out <- StreamChunk{Text: text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return providerFailure(p.Name(), 0, "read stream: %v", err)
	}
	return nil
}

