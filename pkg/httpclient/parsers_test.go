package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseAnthropicHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("retry-after", "30")
	headers.Set("anthropic-ratelimit-requests-remaining", "42")
	headers.Set("anthropic-ratelimit-input-tokens-remaining", "10000")
	headers.Set("anthropic-ratelimit-requests-reset", "2026-01-01T00:00:00Z")

	info := ParseAnthropicHeaders(headers)

	if info.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
	}
	if info.RequestsRemaining != 42 {
		t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
	}
	if info.InputTokensRemaining != 10000 {
		t.Errorf("InputTokensRemaining = %d, want 10000", info.InputTokensRemaining)
	}
	if info.ResetTime == 0 {
		t.Error("ResetTime should be parsed from RFC3339 header")
	}
}

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "5")
	headers.Set("x-ratelimit-remaining-requests", "99")
	headers.Set("x-ratelimit-remaining-tokens", "5000")

	info := ParseOpenAIHeaders(headers)

	if info.RetryAfter != 5*time.Second {
		t.Errorf("RetryAfter = %v, want 5s", info.RetryAfter)
	}
	if info.RequestsRemaining != 99 {
		t.Errorf("RequestsRemaining = %d, want 99", info.RequestsRemaining)
	}
	if info.TokensRemaining != 5000 {
		t.Errorf("TokensRemaining = %d, want 5000", info.TokensRemaining)
	}
}

func TestParseGoogleHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "12")

	info := ParseGoogleHeaders(headers)
	if info.RetryAfter != 12*time.Second {
		t.Errorf("RetryAfter = %v, want 12s", info.RetryAfter)
	}
}

func TestParsers_EmptyHeaders(t *testing.T) {
	empty := http.Header{}

	for name, parser := range map[string]RateLimitHeaderParser{
		"anthropic": ParseAnthropicHeaders,
		"openai":    ParseOpenAIHeaders,
		"google":    ParseGoogleHeaders,
	} {
		info := parser(empty)
		if info.RetryAfter != 0 || info.ResetTime != 0 {
			t.Errorf("%s: empty headers should produce zero info, got %+v", name, info)
		}
	}
}

func TestParsers_MalformedValues(t *testing.T) {
	headers := http.Header{}
	headers.Set("retry-after", "soon")
	headers.Set("Retry-After", "never")
	headers.Set("anthropic-ratelimit-requests-reset", "not-a-time")

	if info := ParseAnthropicHeaders(headers); info.RetryAfter != 0 || info.ResetTime != 0 {
		t.Errorf("anthropic malformed headers should be ignored, got %+v", info)
	}
	if info := ParseOpenAIHeaders(headers); info.RetryAfter != 0 {
		t.Errorf("openai malformed headers should be ignored, got %+v", info)
	}
}
