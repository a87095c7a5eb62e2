package llms

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/observability"
	"github.com/noteum-io/noteum/pkg/registry"
)

// ChatRequest is a routed chat call. Model may be empty, in which case
// the first model of the first registered provider serves it.
type ChatRequest struct {
	Model    string
	Messages []Message
	Options  Options

	// Observer, when set, sees the accumulated stream text after each
	// chunk. A non-nil error aborts the stream; its text reaches the
	// client in the error frame.
	Observer StreamObserver
}

// StreamObserver inspects streamed text as it accumulates.
type StreamObserver interface {
	Observe(total, chunk string) error
}

// Router dispatches chat requests to registered providers by model id.
// The name→provider registry iterates in sorted name order, so the
// "first" provider is deterministic regardless of config map order.
type Router struct {
	providers *registry.BaseRegistry[Provider]
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{providers: registry.NewBaseRegistry[Provider]()}
}

// NewRouterFromConfig instantiates every configured provider that has
// credentials. Instantiation failures are logged and skipped so one bad
// provider never takes the whole AI surface down.
func NewRouterFromConfig(cfgs map[string]*config.LLMProviderConfig) *Router {
	r := NewRouter()
	for name, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		p, err := NewProvider(cfg)
		if err != nil {
			slog.Warn("skipping AI provider", "provider", name, "type", cfg.Type, "error", err)
			continue
		}
		r.providers.Set(name, p)
		slog.Info("registered AI provider", "provider", name, "type", cfg.Type, "model", cfg.Model)
	}
	return r
}

// NewProvider constructs the variant named by the config type. For the
// codex variant the api_key field carries the OAuth access token.
func NewProvider(cfg *config.LLMProviderConfig) (Provider, error) {
	switch cfg.Type {
	case config.LLMProviderOpenAI:
		return NewOpenAI(cfg)
	case config.LLMProviderAnthropic:
		return NewAnthropic(cfg)
	case config.LLMProviderCodex:
		return NewCodex(cfg, cfg.APIKey, "")
	case config.LLMProviderGoogle:
		return NewGoogle(cfg)
	case config.LLMProviderGLM:
		return NewGLM(cfg)
	default:
		return nil, noteerr.Newf(noteerr.KindInvalidInput, "unknown provider type: %s", cfg.Type)
	}
}

// Register adds a provider under the given name.
func (r *Router) Register(name string, p Provider) error {
	return r.providers.Register(name, p)
}

// RegisterOAuth swaps in the OAuth variant of the named provider. For
// openai that is the codex backend; the account id comes from extras
// or is extracted from the token. Any construction failure makes the
// call a no-op.
func (r *Router) RegisterOAuth(name, accessToken string, extras map[string]string) {
	var (
		p   Provider
		err error
	)
	switch name {
	case "openai":
		cfg := &config.LLMProviderConfig{Type: config.LLMProviderCodex}
		cfg.SetDefaults()
		p, err = NewCodex(cfg, accessToken, extras["account_id"])
	case "google":
		cfg := &config.LLMProviderConfig{Type: config.LLMProviderGoogle}
		cfg.SetDefaults()
		p, err = NewGoogleOAuth(cfg, accessToken)
	default:
		slog.Debug("no OAuth provider variant", "provider", name)
		return
	}
	if err != nil {
		slog.Warn("OAuth provider registration skipped", "provider", name, "error", err)
		return
	}
	r.providers.Set(name, p)
}

// Remove drops a provider. Reports whether it was registered.
func (r *Router) Remove(name string) bool {
	return r.providers.Remove(name) == nil
}

// Providers lists registered provider names in sorted order.
func (r *Router) Providers() []string {
	return r.providers.Names()
}

// Models lists every model of every registered provider.
func (r *Router) Models() []ModelInfo {
	var models []ModelInfo
	for _, p := range r.providers.List() {
		models = append(models, p.Models()...)
	}
	return models
}

// Resolve maps a model id to its provider. An empty id picks the first
// model of the first registered provider.
func (r *Router) Resolve(modelID string) (string, Provider, error) {
	names := r.providers.Names()
	if len(names) == 0 {
		return "", nil, noteerr.New(noteerr.KindRouterFailure, "no AI providers registered")
	}

	if modelID == "" {
		for _, name := range names {
			p, _ := r.providers.Get(name)
			if models := p.Models(); len(models) > 0 {
				return models[0].ID, p, nil
			}
		}
		return "", nil, noteerr.New(noteerr.KindRouterFailure, "no models available")
	}

	for _, name := range names {
		p, _ := r.providers.Get(name)
		for _, m := range p.Models() {
			if m.ID == modelID {
				return modelID, p, nil
			}
		}
	}
	return "", nil, noteerr.Newf(noteerr.KindRouterFailure, "unknown model: %s", modelID)
}

// Chat resolves the model and forwards the call.
func (r *Router) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	model, p, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.GetTracer("noteum.llms").Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMProvider, p.Name()),
			attribute.String(observability.AttrLLMModel, model),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	started := time.Now()
	resp, err := p.Chat(ctx, req.Messages, model, req.Options)

	var inTokens, outTokens int
	if resp != nil && resp.Usage != nil {
		inTokens, outTokens = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	observability.GetGlobalMetrics().RecordLLMCall(ctx, p.Name(), model, time.Since(started), inTokens, outTokens, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, inTokens),
		attribute.Int(observability.AttrLLMTokensOutput, outTokens),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Stream resolves the model and returns pre-framed SSE lines: each text
// chunk as `data: {"chunk":...}`, then `data: [DONE]`. A mid-stream
// failure or observer abort emits an error event instead and stops
// without the terminator. Resolution failures return synchronously
// before any frame.
func (r *Router) Stream(ctx context.Context, req *ChatRequest) (<-chan string, error) {
	model, p, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.GetTracer("noteum.llms").Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMProvider, p.Name()),
			attribute.String(observability.AttrLLMModel, model),
			attribute.Bool("streaming", true),
		),
	)

	ctx, cancel := context.WithCancel(ctx)
	started := time.Now()
	chunks := p.Stream(ctx, req.Messages, model, req.Options)

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer cancel()
		defer span.End()

		// Streams carry no usage data; token counts stay zero.
		var streamErr error
		defer func() {
			observability.GetGlobalMetrics().RecordLLMCall(ctx, p.Name(), model, time.Since(started), 0, 0, streamErr)
			if streamErr != nil {
				span.RecordError(streamErr)
				span.SetStatus(codes.Error, streamErr.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
		}()

		var total strings.Builder
		for chunk := range chunks {
			if chunk.Err != nil {
				streamErr = chunk.Err
				emit(ctx, out, errorFrame(chunk.Err.Error()))
				return
			}
			if chunk.Text == "" {
				continue
			}
			total.WriteString(chunk.Text)

			if req.Observer != nil {
				if err := req.Observer.Observe(total.String(), chunk.Text); err != nil {
					streamErr = err
					emit(ctx, out, errorFrame(err.Error()))
					return
				}
			}
			if !emit(ctx, out, chunkFrame(chunk.Text)) {
				return
			}
		}
		emit(ctx, out, doneFrame)
	}()
	return out, nil
}

// Clone shallow-copies the provider map so per-request OAuth swaps
// never mutate the shared router.
func (r *Router) Clone() *Router {
	clone := NewRouter()
	for name, p := range r.providers.Snapshot() {
		clone.providers.Set(name, p)
	}
	return clone
}

// ProviderHint names the OAuth-capable provider for a model id. Only
// gpt- and gemini- prefixed models participate in OAuth injection.
func ProviderHint(modelID string) string {
	switch {
	case strings.HasPrefix(modelID, "gpt-"):
		return "openai"
	case strings.HasPrefix(modelID, "gemini-"):
		return "google"
	default:
		return ""
	}
}

const doneFrame = "data: [DONE]\n\n"

func chunkFrame(text string) string {
	b, _ := json.Marshal(map[string]string{"chunk": text})
	return "data: " + string(b) + "\n\n"
}

func errorFrame(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return "event: error\ndata: " + string(b) + "\n\n"
}

// emit sends a frame unless the request context is gone; a dead
// consumer must not strand the forwarding goroutine.
func emit(ctx context.Context, out chan<- string, frame string) bool {
	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
