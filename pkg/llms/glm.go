package llms

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

const glmDefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4/"

var glmModels = []string{"glm-4-plus", "glm-4-flash", "glm-4v-plus"}

// GLM serves Zhipu's OpenAI-compatible API through the openai SDK with
// a custom base URL.
type GLM struct {
	cfg    *config.LLMProviderConfig
	client openai.Client
}

// NewGLM builds the provider from configuration. The API key is
// required.
func NewGLM(cfg *config.LLMProviderConfig) (*GLM, error) {
	if cfg.APIKey == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "glm: api key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = glmDefaultBaseURL
	}
	return &GLM{
		cfg:    cfg,
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithBaseURL(base)),
	}, nil
}

func (p *GLM) Name() string { return "glm" }

func (p *GLM) Close() error { return nil }

func (p *GLM) Models() []ModelInfo {
	return modelCatalog("glm", p.cfg.Model, glmModels)
}

func (p *GLM) buildParams(messages []Message, model string, opts Options) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				msgs = append(msgs, openai.UserMessage(m.Content))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Images)+1)
			if m.Content != "" {
				parts = append(parts, openai.TextContentPart(m.Content))
			}
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(
					openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL(img)}))
			}
			msgs = append(msgs, openai.UserMessage(parts))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}

	temp := p.cfg.Temperature
	if opts.Temperature != nil {
		temp = opts.Temperature
	}
	if temp != nil {
		params.Temperature = openai.Float(*temp)
	}

	maxTokens := p.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	return params
}

// glmError extracts the HTTP status from SDK errors.
func glmError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providerFailure("glm", apiErr.StatusCode, "api error: %s", apiErr.Message)
	}
	return providerFailure("glm", 0, "request failed: %v", err)
}

func (p *GLM) Chat(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	model = resolveModel(model, p.cfg)

	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(messages, model, opts))
	if err != nil {
		return nil, glmError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, providerFailure(p.Name(), 0, "empty response")
	}

	return &Response{
		Content:      completion.Choices[0].Message.Content,
		Model:        model,
		Provider:     p.Name(),
		FinishReason: string(completion.Choices[0].FinishReason),
		Usage: &Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (p *GLM) Stream(ctx context.Context, messages []Message, model string, opts Options) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(messages, resolveModel(model, p.cfg), opts))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				select {
				case out <- StreamChunk{Text: text}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Err: glmError(err)}
		}
	}()
	return out
}
