package llms

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

const (
	codexDefaultBaseURL = "https://chatgpt.com/backend-api/codex"

	// Claim in ChatGPT OAuth access tokens carrying the account id.
	codexAuthClaim = "https://api.openai.com/auth"
)

var codexModels = []string{"gpt-5", "gpt-5-codex"}

// Codex serves OpenAI models through the ChatGPT OAuth backend. It
// authenticates with a bearer token plus the account id embedded in
// the token's claims, and speaks the responses API.
type Codex struct {
	cfg       *config.LLMProviderConfig
	client    *httpclient.Client
	base      string
	token     string
	accountID string
}

// NewCodex builds the provider around an OAuth access token. When
// accountID is empty it is extracted from the token's claims.
func NewCodex(cfg *config.LLMProviderConfig, token, accountID string) (*Codex, error) {
	if token == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "codex: access token is required")
	}
	if accountID == "" {
		var err error
		accountID, err = ChatGPTAccountID(token)
		if err != nil {
			return nil, err
		}
	}
	base := cfg.BaseURL
	if base == "" {
		base = codexDefaultBaseURL
	}
	return &Codex{
		cfg:       cfg,
		client:    newHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
		base:      strings.TrimSuffix(base, "/"),
		token:     token,
		accountID: accountID,
	}, nil
}

// ChatGPTAccountID pulls the account id out of an OAuth access token.
// The token is decoded without signature verification; the backend
// verifies it, we only need the claim.
func ChatGPTAccountID(token string) (string, error) {
	tok, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return "", noteerr.Newf(noteerr.KindInvalidInput, "codex: parse access token: %v", err)
	}
	raw, ok := tok.Get(codexAuthClaim)
	if !ok {
		return "", noteerr.New(noteerr.KindInvalidInput, "codex: token has no auth claim")
	}
	claims, ok := raw.(map[string]any)
	if !ok {
		return "", noteerr.New(noteerr.KindInvalidInput, "codex: malformed auth claim")
	}
	id, _ := claims["chatgpt_account_id"].(string)
	if id == "" {
		return "", noteerr.New(noteerr.KindInvalidInput, "codex: token has no account id")
	}
	return id, nil
}

func (p *Codex) Name() string { return "codex" }

func (p *Codex) Close() error { return nil }

func (p *Codex) Models() []ModelInfo {
	return modelCatalog("codex", p.cfg.Model, codexModels)
}

// Responses API wire types.

type codexRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Stream bool   `json:"stream"`
}

type codexStreamEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

var codexRoleLabels = map[string]string{
	RoleSystem:    "System",
	RoleUser:      "User",
	RoleAssistant: "Assistant",
}

// flattenInput renders the conversation as a single labeled transcript,
// the form the responses endpoint accepts as plain input.
func flattenInput(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label, ok := codexRoleLabels[m.Role]
		if !ok {
			label = "User"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func (p *Codex) headers() map[string]string {
	return map[string]string{
		"Authorization":      "Bearer " + p.token,
		"chatgpt-account-id": p.accountID,
		"Accept":             "text/event-stream",
	}
}

// Chat aggregates the stream; the backend only speaks SSE.
func (p *Codex) Chat(ctx context.Context, messages []Message, model string, opts Options) (*Response, error) {
	model = resolveModel(model, p.cfg)

	var content strings.Builder
	for chunk := range p.Stream(ctx, messages, model, opts) {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		content.WriteString(chunk.Text)
	}

	return &Response{
		Content:  content.String(),
		Model:    model,
		Provider: p.Name(),
	}, nil
}

func (p *Codex) Stream(ctx context.Context, messages []Message, model string, opts Options) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)
		if err := p.streamInto(ctx, messages, resolveModel(model, p.cfg), out); err != nil {
			out <- StreamChunk{Err: err}
		}
	}()
	return out
}

func (p *Codex) streamInto(ctx context.Context, messages []Message, model string, out chan<- StreamChunk) error {
	req := codexRequest{
		Model:  model,
		Input:  flattenInput(messages),
		Stream: true,
	}

	resp, err := postJSON(ctx, p.client, p.base+"/responses", p.headers(), req)
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

		var event codexStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				select {
				case out <- StreamChunk{Text: event.Delta}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case "response.failed", "error":
			msg := "stream error"
			if event.Error != nil && event.Error.Message != "" {
				msg = event.Error.Message
			}
			return providerFailure(p.Name(), 0, "api error: %s", msg)
		case "response.completed":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return providerFailure(p.Name(), 0, "read stream: %v", err)
	}
	return nil
}
