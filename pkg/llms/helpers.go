package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/httpclient"
	"github.com/noteum-io/noteum/pkg/noteerr"
)

// newHTTPClient builds the retrying HTTP client used by the raw-HTTP
// provider variants, honoring the configured request timeout. The header
// parser feeds provider rate-limit timing into the retry schedule.
func newHTTPClient(cfg *config.LLMProviderConfig, parser httpclient.RateLimitHeaderParser) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		httpclient.WithMaxRetries(2),
		httpclient.WithHeaderParser(parser),
	)
}

// providerFailure wraps an upstream error with provider identity and,
// when known, the HTTP status the upstream returned.
func providerFailure(provider string, status int, format string, args ...any) error {
	err := noteerr.Newf(noteerr.KindProviderFailure, format, args...).WithProvider(provider)
	if status != 0 {
		err = err.WithStatus(status)
	}
	return err
}

// postJSON sends a JSON POST with the given headers. The retry client
// may return both a response and an error for non-2xx statuses; callers
// own closing the body when the response is non-nil.
func postJSON(ctx context.Context, client *httpclient.Client, url string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return client.Do(req)
}

// upstreamError drains a failed response into a ProviderFailure, pulling
// the message out of the common {"error":{"message":...}} envelope when
// the body carries one.
func upstreamError(resp *http.Response, provider string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(bytes.TrimSpace(body))
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return providerFailure(provider, resp.StatusCode, "upstream returned %d: %s", resp.StatusCode, msg)
}

// checkResponse normalizes the (response, error) pair from the retry
// client into a single error, consuming the body on failure.
func checkResponse(resp *http.Response, err error, provider string) error {
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return upstreamError(resp, provider)
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return providerFailure(provider, 0, "request failed: %v", err)
	}
	if resp == nil {
		return providerFailure(provider, 0, "no response received")
	}
	return nil
}

// dataURL renders an image as the data: URL form used by the
// chat-completions image_url content part.
func dataURL(img ImageData) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, img.Base64Data)
}

// resolveModel picks the request model, falling back to the provider's
// configured default.
func resolveModel(model string, cfg *config.LLMProviderConfig) string {
	if model != "" {
		return model
	}
	return cfg.Model
}
