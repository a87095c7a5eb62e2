package llms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

func TestAnthropicRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropic(&config.LLMProviderConfig{Type: config.LLMProviderAnthropic})
	if !noteerr.IsKind(err, noteerr.KindInvalidInput) {
		t.Fatalf("NewAnthropic() error = %v, want invalid_input", err)
	}
}

func TestAnthropicChatSeparatesSystemMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q, want 2023-06-01", got)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be terse\n\nanswer in korean" {
			t.Errorf("system = %q, want both system messages joined by blank line", req.System)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("max_tokens = %d, want 4096", req.MaxTokens)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("messages = %d, want 2 (system lifted out)", len(req.Messages))
		}
		if req.Messages[0].Role != RoleUser || req.Messages[1].Role != RoleAssistant {
			t.Errorf("roles = %s,%s want user,assistant", req.Messages[0].Role, req.Messages[1].Role)
		}

		io.WriteString(w, `{
			"content": [{"type": "text", "text": "ne, "}, {"type": "text", "text": "algesseumnida"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`)
	}))
	defer server.Close()

	p, err := NewAnthropic(testProviderConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "answer in korean"},
		{Role: RoleAssistant, Content: "annyeong"},
	}, "", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp.Content != "ne, algesseumnida" {
		t.Errorf("content = %q, want concatenated text blocks", resp.Content)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("provider = %s, want anthropic", resp.Provider)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 25 {
		t.Errorf("usage = %+v, want total 25", resp.Usage)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("finish_reason = %s, want end_turn", resp.FinishReason)
	}
}

func TestAnthropicMaxTokensOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxTokens != 512 {
			t.Errorf("max_tokens = %d, want 512", req.MaxTokens)
		}
		io.WriteString(w, `{"content": [{"type": "text", "text": "ok"}]}`)
	}))
	defer server.Close()

	p, err := NewAnthropic(testProviderConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "",
		Options{MaxTokens: 512})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestAnthropicChatImageBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"image"`) {
			t.Error("request has no image block")
		}
		if !strings.Contains(string(body), `"media_type":"image/jpeg"`) {
			t.Error("request has no media_type")
		}
		io.WriteString(w, `{"content": [{"type": "text", "text": "a photo"}]}`)
	}))
	defer server.Close()

	p, err := NewAnthropic(testProviderConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{
		Role:    RoleUser,
		Content: "what is this",
		Images:  []ImageData{{Base64Data: "/9j/4AAQ", MIMEType: "image/jpeg"}},
	}}, "", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestAnthropicChatUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"type": "invalid_request_error", "message": "max_tokens required"}}`)
	}))
	defer server.Close()

	p, err := NewAnthropic(testProviderConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{})
	if !noteerr.IsKind(err, noteerr.KindProviderFailure) {
		t.Fatalf("Chat() error kind = %v, want provider_failure", noteerr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "max_tokens required") {
		t.Errorf("error %q does not carry the upstream message", err.Error())
	}
}

func TestAnthropicStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "event: message_start\n")
		io.WriteString(w, "data: {\"type\":\"message_start\"}\n\n")
		io.WriteString(w, "event: content_block_delta\n")
		io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"An\"}}\n\n")
		io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"nyeong\"}}\n\n")
		io.WriteString(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	p, err := NewAnthropic(testProviderConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	text, err := collectStream(t, p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{}))
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if text != "Annyeong" {
		t.Errorf("streamed text = %q, want %q", text, "Annyeong")
	}
}

func TestAnthropicStreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"An\"}}\n\n")
		io.WriteString(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"overloaded\"}}\n\n")
	}))
	defer server.Close()

	p, err := NewAnthropic(testProviderConfig(config.LLMProviderAnthropic, server.URL))
	if err != nil {
		t.Fatalf("NewAnthropic() error = %v", err)
	}

	text, err := collectStream(t, p.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{}))
	if !noteerr.IsKind(err, noteerr.KindProviderFailure) {
		t.Fatalf("stream error kind = %v, want provider_failure", noteerr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("error %q does not carry the upstream message", err.Error())
	}
	if text != "An" {
		t.Errorf("partial text = %q, want %q", text, "An")
	}
}
