package llms

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com"

var googleModels = []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-2.5-pro"}

// Google serves Gemini models in one of two modes: API-key mode through
// the official genai SDK, or OAuth mode calling the REST endpoint with
// a bearer token.
type Google struct {
	cfg    *config.LLMProviderConfig
	base   string
	sdk    *genai.Client      // API-key mode
	client *httpclient.Client // OAuth mode
	token  string
}

// NewGoogle builds the API-key mode provider.
func NewGoogle(cfg *config.LLMProviderConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "google: api key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, noteerr.Newf(noteerr.KindProviderFailure, "google: create client: %v", err).WithProvider("google")
	}
	return &Google{cfg: cfg, sdk: client}, nil
}

// NewGoogleOAuth builds the OAuth mode provider around a bearer token.
func NewGoogleOAuth(cfg *config.LLMProviderConfig, token string) (*Google, error) {
	if token == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "google: access token is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = googleDefaultBaseURL
	}
	return &Google{
		cfg:    cfg,
		base:   strings.TrimSuffix(base, "/"),
		client: newHTTPClient(cfg, httpclient.ParseGoogleHeaders),
		token:  token,
	}, nil
}

func (p *Google) Name() string { return "google" }

func (p *Google) Close() error { return nil }

func (p *Google) Models() []ModelInfo {
	return modelCatalog("google", p.cfg.Model, googleModels)
}

func (p *Google) Chat(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	model = resolveModel(model, p.cfg)
	if p.sdk != nil {
		return p.chatSDK(ctx, messages, model, opts)
	}
	return p.chatREST(ctx, messages, model, opts)
}

func (p *Google) Stream(ctx context.Context, messages []Message, model string, opts Options) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)
		var err error
		if p.sdk != nil {
			err = p.streamSDK(ctx, messages, resolveModel(model, p.cfg), opts, out)
		} else {
			err = p.streamREST(ctx, messages, resolveModel(model, p.cfg), opts, out)
		}
		if err != nil {
			out <- StreamChunk{Err: err}
		}
	}()
	return out
}

// SDK mode.

// buildContents converts messages to genai contents. The assistant role
// becomes model; system messages are lifted into the returned
// systemInstruction content.
func (p *Google) buildContents(messages []Message) ([]*genai.Content, *genai.Content, error) {
	var contents []*genai.Content
	var systemParts []*genai.Part

	for _, m := range messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
			continue
		}

		parts := make([]*genai.Part, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, &genai.Part{Text: m.Content})
		}
		for _, img := range m.Images {
			data, err := base64.StdEncoding.DecodeString(img.Base64Data)
			if err != nil {
				return nil, nil, noteerr.Newf(noteerr.KindInvalidInput, "google: decode image: %v", err)
			}
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: data},
			})
		}
		if len(parts) == 0 {
			continue
		}

		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: systemParts}
	}
	return contents, system, nil
}

func (p *Google) buildGenConfig(system *genai.Content, opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SystemInstruction: system}

	temp := p.cfg.Temperature
	if opts.Temperature != nil {
		temp = opts.Temperature
	}
	if temp != nil {
		cfg.Temperature = genai.Ptr(float32(*temp))
	}

	maxTokens := p.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return cfg
}

func (p *Google) chatSDK(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	contents, system, err := p.buildContents(messages)
	if err != nil {
		return nil, err
	}

	resp, err := p.sdk.Models.GenerateContent(ctx, model, contents, p.buildGenConfig(system, opts))
	if err != nil {
		return nil, providerFailure(p.Name(), 0, "generate: %v", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, providerFailure(p.Name(), 0, "empty response")
	}

	out := &Response{
		Content:      genaiText(resp),
		Model:        model,
		Provider:     p.Name(),
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func (p *Google) streamSDK(ctx context.Context, messages []Message, model string, opts Options, out chan<- StreamChunk) error {
	contents, system, err := p.buildContents(messages)
	if err != nil {
		return err
	}

	for resp, err := range p.sdk.Models.GenerateContentStream(ctx, model, contents, p.buildGenConfig(system, opts)) {
		if err != nil {
			return providerFailure(p.Name(), 0, "stream: %v", err)
		}
		if text := genaiText(resp); text != "" {
			select {
			case out <- StreamChunk{Text: text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func genaiText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// OAuth REST mode wire types.

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MIMEType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData,omitempty"`
}

type googleGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Google) buildRESTRequest(messages []Message, opts Options) googleRequest {
	var req googleRequest
	var systemParts []googlePart

	for _, m := range messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, googlePart{Text: m.Content})
			continue
		}

		parts := make([]googlePart, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, googlePart{Text: m.Content})
		}
		for _, img := range m.Images {
			part := googlePart{}
			part.InlineData = &struct {
				MIMEType string `json:"mimeType"`
				Data     string `json:"data"`
			}{MIMEType: img.MIMEType, Data: img.Base64Data}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}

		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, googleContent{Role: role, Parts: parts})
	}

	if len(systemParts) > 0 {
		req.SystemInstruction = &googleContent{Parts: systemParts}
	}

	gen := &googleGenConfig{Temperature: p.cfg.Temperature, MaxOutputTokens: p.cfg.MaxTokens}
	if opts.Temperature != nil {
		gen.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		gen.MaxOutputTokens = opts.MaxTokens
	}
	if gen.Temperature != nil || gen.MaxOutputTokens > 0 {
		req.GenerationConfig = gen
	}
	return req
}

func (p *Google) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.token}
}

func (p *Google) chatREST(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.base, model)

	resp, err := postJSON(ctx, p.client, url, p.headers(), p.buildRESTRequest(messages, opts))
	if err := checkResponse(resp, err, p.Name()); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, providerFailure(p.Name(), 0, "decode response: %v", err)
	}
	if body.Error != nil {
		return nil, providerFailure(p.Name(), body.Error.Code, "api error: %s", body.Error.Message)
	}
	if len(body.Candidates) == 0 {
		return nil, providerFailure(p.Name(), 0, "empty response")
	}

	var text strings.Builder
	for _, part := range body.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	out := &Response{
		Content:      text.String(),
		Model:        model,
		Provider:     p.Name(),
		FinishReason: body.Candidates[0].FinishReason,
	}
	if body.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     body.UsageMetadata.PromptTokenCount,
			CompletionTokens: body.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      body.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (p *Google) streamREST(ctx context.Context, messages []Message, model string, opts Options, out chan<- StreamChunk) error {
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", p.base, model)

	resp, err := postJSON(ctx, p.client, url, p.headers(), p.buildRESTRequest(messages, opts))
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

		var event googleResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		if event.Error != nil {
			return providerFailure(p.Name(), event.Error.Code, "api error: %s", event.Error.Message)
		}
		for _, cand := range event.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case out <- StreamChunk{Text: part.Text}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return providerFailure(p.Name(), 0, "read stream: %v", err)
	}
	return nil
}
