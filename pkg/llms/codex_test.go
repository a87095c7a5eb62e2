package llms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

// makeAccessToken builds an unsigned JWT carrying the given claims. The
// provider never verifies signatures, only decodes.
func makeAccessToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString(payload)
	sig := base64.RawURLEncoding.EncodeToString([]byte("unsigned"))
	return header + "." + body + "." + sig
}

func codexTestToken(t *testing.T) string {
	t.Helper()
	return makeAccessToken(t, map[string]any{
		"sub": "user-1",
		"https://api.openai.com/auth": map[string]any{
			"chatgpt_account_id": "acct-123",
		},
	})
}

func TestChatGPTAccountID(t *testing.T) {
	id, err := ChatGPTAccountID(codexTestToken(t))
	if err != nil {
		t.Fatalf("ChatGPTAccountID() error = %v", err)
	}
	if id != "acct-123" {
		t.Errorf("account id = %q, want acct-123", id)
	}
}

func TestChatGPTAccountIDMissingClaim(t *testing.T) {
	token := makeAccessToken(t, map[string]any{"sub": "user-1"})
	if _, err := ChatGPTAccountID(token); err == nil {
		t.Fatal("ChatGPTAccountID() = nil error for token without auth claim")
	}
}

func TestChatGPTAccountIDNotAToken(t *testing.T) {
	if _, err := ChatGPTAccountID("not-a-jwt"); err == nil {
		t.Fatal("ChatGPTAccountID() = nil error for garbage input")
	}
}

func TestFlattenInput(t *testing.T) {
	got := flattenInput([]Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
	})
	want := "System: be terse\n\nUser: hello\n\nAssistant: hi"
	if got != want {
		t.Errorf("flattenInput() = %q, want %q", got, want)
	}
}

func TestCodexRequiresToken(t *testing.T) {
	cfg := &config.LLMProviderConfig{Type: config.LLMProviderCodex}
	if _, err := NewCodex(cfg, "", ""); !noteerr.IsKind(err, noteerr.KindInvalidInput) {
		t.Fatalf("NewCodex() error = %v, want invalid_input", err)
	}
}

func newCodexAgainst(t *testing.T, baseURL string) *Codex {
	t.Helper()
	cfg := testProviderConfig(config.LLMProviderCodex, baseURL)
	p, err := NewCodex(cfg, codexTestToken(t), "")
	if err != nil {
		t.Fatalf("NewCodex() error = %v", err)
	}
	return p
}

func TestCodexStream(t *testing.T) {
	token := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %s, want /responses", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+token {
			t.Errorf("Authorization = %q, want the bearer token", got)
		}
		if got := r.Header.Get("chatgpt-account-id"); got != "acct-123" {
			t.Errorf("chatgpt-account-id = %q, want acct-123", got)
		}

		var req codexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream = false, want true")
		}
		if !strings.Contains(req.Input, "User: summarize my notes") {
			t.Errorf("input = %q, want labeled transcript", req.Input)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"response.created\"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"three \"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.output_item.done\"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"notes\"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.completed\"}\n\n")
	}))
	defer server.Close()

	p := newCodexAgainst(t, server.URL)
	token = p.token

	text, err := collectStream(t, p.Stream(context.Background(),
		[]Message{{Role: RoleUser, Content: "summarize my notes"}}, "", Options{}))
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if text != "three notes" {
		t.Errorf("streamed text = %q, want %q (only output_text deltas)", text, "three notes")
	}
}

func TestCodexChatAggregatesStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel\"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"lo\"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.completed\"}\n\n")
	}))
	defer server.Close()

	p := newCodexAgainst(t, server.URL)

	resp, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-5", Options{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "Hello" {
		t.Errorf("content = %q, want Hello", resp.Content)
	}
	if resp.Provider != "codex" {
		t.Errorf("provider = %s, want codex", resp.Provider)
	}
	if resp.Model != "gpt-5" {
		t.Errorf("model = %s, want gpt-5", resp.Model)
	}
}

func TestCodexStreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"par\"}\n\n")
		io.WriteString(w, "data: {\"type\":\"response.failed\",\"error\":{\"message\":\"quota exceeded\"}}\n\n")
	}))
	defer server.Close()

	p := newCodexAgainst(t, server.URL)

	text, err := collectStream(t, p.Stream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, "", Options{}))
	if !noteerr.IsKind(err, noteerr.KindProviderFailure) {
		t.Fatalf("stream error kind = %v, want provider_failure", noteerr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error %q does not carry the upstream message", err.Error())
	}
	if text != "par" {
		t.Errorf("partial text = %q, want %q", text, "par")
	}
}
