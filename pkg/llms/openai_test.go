package llms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

func testProviderConfig(typ config.LLMProvider, baseURL string) *config.LLMProviderConfig {
	cfg := &config.LLMProviderConfig{
		Type:    typ,
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
	cfg.SetDefaults()
	return cfg
}

func collectStream(t *testing.T, chunks <-chan StreamChunk) (string, error) {
	t.Helper()
	var b strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return b.String(), chunk.Err
		}
		b.WriteString(chunk.Text)
	}
	return b.String(), nil
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI(&config.LLMProviderConfig{Type: config.LLMProviderOpenAI})
	if !noteerr.IsKind(err, noteerr.KindInvalidInput) {
		t.Fatalf("NewOpenAI() error = %v, want invalid_input", err)
	}
}

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %s, want gpt-4o-mini", req.Model)
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if len(req.Messages) != 2 {
			t.Fatalf("messages = %d, want 2", len(req.Messages))
		}
		if req.Messages[0].Role != RoleSystem {
			t.Errorf("first role = %s, want system", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "you are terse"},
		{Role: RoleUser, Content: "hi"},
	}, "", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.Content != "hello there" {
		t.Errorf("content = %q, want %q", resp.Content, "hello there")
	}
	if resp.Provider != "openai" {
		t.Errorf("provider = %s, want openai", resp.Provider)
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("model = %s, want gpt-4o-mini", resp.Model)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish_reason = %s, want stop", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v, want total 15", resp.Usage)
	}
}

func TestOpenAIChatOptionsOverrideDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Temperature == nil || *req.Temperature != 0.1 {
			t.Errorf("temperature = %v, want 0.1", req.Temperature)
		}
		if req.MaxTokens != 256 {
			t.Errorf("max_tokens = %d, want 256", req.MaxTokens)
		}
		io.WriteString(w, `{"choices": [{"message": {"content": "ok"}}]}`)
	}))
	defer server.Close()

	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	temp := 0.1
	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "",
		Options{Temperature: &temp, MaxTokens: 256})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestOpenAIChatImageParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"image_url"`) {
			t.Error("request has no image_url part")
		}
		if !strings.Contains(string(body), "data:image/png;base64,iVBOR") {
			t.Error("request has no data URL")
		}
		io.WriteString(w, `{"choices": [{"message": {"content": "a diagram"}}]}`)
	}))
	defer server.Close()

	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{
		Role:    RoleUser,
		Content: "describe this",
		Images:  []ImageData{{Base64Data: "iVBOR", MIMEType: "image/png"}},
	}}, "", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestOpenAIChatUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "model overloaded", "type": "invalid_request_error"}}`)
	}))
	defer server.Close()

	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{})
	if !noteerr.IsKind(err, noteerr.KindProviderFailure) {
		t.Fatalf("Chat() error kind = %v, want provider_failure", noteerr.KindOf(err))
	}

	var tagged *noteerr.Error
	if !errors.As(err, &tagged) {
		t.Fatalf("error %v is not a tagged error", err)
	}
	if tagged.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", tagged.StatusCode)
	}
	if tagged.Provider != "openai" {
		t.Errorf("provider = %s, want openai", tagged.Provider)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error %q does not carry the upstream message", err.Error())
	}
}

func TestOpenAIStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream = false, want true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		io.WriteString(w, ": keepalive\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	text, err := collectStream(t, p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{}))
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("streamed text = %q, want %q", text, "Hello")
	}
}

func TestOpenAIStreamMidStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		io.WriteString(w, "data: {\"error\":{\"message\":\"stream interrupted\"}}\n\n")
	}))
	defer server.Close()

	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, server.URL))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	text, err := collectStream(t, p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{}))
	if !noteerr.IsKind(err, noteerr.KindProviderFailure) {
		t.Fatalf("stream error kind = %v, want provider_failure", noteerr.KindOf(err))
	}
	if text != "par" {
		t.Errorf("partial text = %q, want %q", text, "par")
	}
}

func TestOpenAIModelsListConfiguredFirst(t *testing.T) {
	p, err := NewOpenAI(testProviderConfig(config.LLMProviderOpenAI, ""))
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}

	models := p.Models()
	if len(models) == 0 {
		t.Fatal("Models() returned nothing")
	}
	if models[0].ID != "gpt-4o-mini" || !models[0].Default {
		t.Errorf("first model = %+v, want default gpt-4o-mini", models[0])
	}
	for i, m := range models {
		if m.Provider != "openai" {
			t.Errorf("model %d provider = %s, want openai", i, m.Provider)
		}
		if i > 0 && m.ID == models[0].ID {
			t.Errorf("configured model duplicated in catalog")
		}
	}
}
