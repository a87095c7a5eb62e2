package llms

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

func TestGLMRequiresAPIKey(t *testing.T) {
	_, err := NewGLM(&config.LLMProviderConfig{Type: config.LLMProviderGLM})
	if !noteerr.IsKind(err, noteerr.KindInvalidInput) {
		t.Fatalf("NewGLM() error = %v, want invalid_input", err)
	}
}

func newGLMAgainst(t *testing.T, baseURL string) *GLM {
	t.Helper()
	p, err := NewGLM(testProviderConfig(config.LLMProviderGLM, baseURL+"/"))
	if err != nil {
		t.Fatalf("NewGLM() error = %v", err)
	}
	return p
}

func TestGLMChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s, want chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}

		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"model":"glm-4-plus"`) {
			t.Errorf("request %s does not carry the default model", body)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "glm-4-plus",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "annyeonghaseyo"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 2, "total_tokens": 11}
		}`)
	}))
	defer server.Close()

	p := newGLMAgainst(t, server.URL)

	resp, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "annyeonghaseyo" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Provider != "glm" {
		t.Errorf("provider = %s, want glm", resp.Provider)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 11 {
		t.Errorf("usage = %+v, want total 11", resp.Usage)
	}
}

func TestGLMChatImageDataURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"image_url"`) {
			t.Error("request has no image_url part")
		}
		if !strings.Contains(string(body), "data:image/png;base64,AAAA") {
			t.Error("request has no data URL")
		}
		io.WriteString(w, `{"id": "1", "choices": [{"message": {"content": "a chart"}}]}`)
	}))
	defer server.Close()

	p := newGLMAgainst(t, server.URL)

	_, err := p.Chat(context.Background(), []Message{{
		Role:    RoleUser,
		Content: "what is this",
		Images:  []ImageData{{Base64Data: "AAAA", MIMEType: "image/png"}},
	}}, "glm-4v-plus", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestGLMChatUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error", "code": "1002"}}`)
	}))
	defer server.Close()

	p := newGLMAgainst(t, server.URL)

	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", Options{})
	if !noteerr.IsKind(err, noteerr.KindProviderFailure) {
		t.Fatalf("Chat() error kind = %v, want provider_failure", noteerr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error %q does not carry the upstream message", err.Error())
	}
}

func TestGLMStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		io.WriteString(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := newGLMAgainst(t, server.URL)

	text, err := collectStream(t, p.Stream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, "", Options{}))
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("streamed text = %q, want Hello", text)
	}
}
