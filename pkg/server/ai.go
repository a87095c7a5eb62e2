package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"log/slog"

	"github.com/noteum-io/noteum/pkg/auth"
	"github.com/noteum-io/noteum/pkg/llms"
	"github.com/noteum-io/noteum/pkg/metrics"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/prompts"
	"github.com/noteum-io/noteum/pkg/quality"
	"github.com/noteum-io/noteum/pkg/query"
	"github.com/noteum-io/noteum/pkg/search"
)

// searchQAContextLimit is how many retrieved notes ground a search_qa
// answer.
const searchQAContextLimit = 5

type aiRequest struct {
	Feature string     `json:"feature"`
	Content string     `json:"content"`
	Model   string     `json:"model,omitempty"`
	Options *aiOptions `json:"options,omitempty"`
}

type aiOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

func (req *aiRequest) options() llms.Options {
	if req.Options == nil {
		return llms.Options{}
	}
	return llms.Options{
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
	}
}

// decodeAIRequest parses and validates the shared chat/stream body.
func decodeAIRequest(r *http.Request) (*aiRequest, error) {
	var req aiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, noteerr.Wrap(noteerr.KindInvalidInput, "invalid JSON body", err)
	}
	if !prompts.ValidFeature(prompts.Feature(req.Feature)) {
		return nil, noteerr.Newf(noteerr.KindInvalidInput, "unknown feature %q", req.Feature)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "content must not be empty")
	}
	return &req, nil
}

type chatResponse struct {
	Content    string              `json:"content"`
	Model      string              `json:"model"`
	Provider   string              `json:"provider"`
	Usage      *llms.Usage         `json:"usage,omitempty"`
	Quality    *quality.GateResult `json:"quality,omitempty"`
	Evaluation *quality.Evaluation `json:"evaluation,omitempty"`
}

// handleChat serves POST /ai/chat: prompt assembly, the provider call,
// then the quality gate, and for search_qa the grounded evaluation.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAIRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	feature := prompts.Feature(req.Feature)

	messages, ctxNotes, err := s.buildMessages(ctx, feature, req.Content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp, err := s.routerFor(ctx, req.Model).Chat(ctx, &llms.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  req.options(),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := chatResponse{
		Content:  resp.Content,
		Model:    resp.Model,
		Provider: resp.Provider,
		Usage:    resp.Usage,
	}

	if s.deps.Gate != nil {
		// The search_qa grader needs the context notes to judge
		// groundedness, so it sees the same block the model saw.
		gateRequest := req.Content
		if feature == prompts.FeatureSearchQA {
			gateRequest = prompts.FormatContext(req.Content, ctxNotes)
		}
		out.Quality = s.deps.Gate.Evaluate(ctx, feature, gateRequest, resp.Content)
	}
	if feature == prompts.FeatureSearchQA && s.deps.Evaluator != nil {
		out.Evaluation = s.deps.Evaluator.Evaluate(ctx, req.Content, ctxNotes, resp.Content)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleStream serves POST /ai/stream: the same request shape answered
// as pre-framed SSE. The stream monitor rides along as the router's
// observer; an abort reaches the client as an error frame. A client
// disconnect cancels the provider stream through the request context.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAIRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, noteerr.New(noteerr.KindInternal, "response writer does not support streaming"))
		return
	}

	ctx := r.Context()
	feature := prompts.Feature(req.Feature)

	messages, _, err := s.buildMessages(ctx, feature, req.Content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	korean := query.DetectLanguage(req.Content) == query.LanguageKorean
	monitor := quality.NewMonitor(feature, korean, s.deps.Settings)

	frames, err := s.routerFor(ctx, req.Model).Stream(ctx, &llms.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  req.options(),
		Observer: monitor,
	})
	if err != nil {
		// Resolution failures arrive before any frame; answer JSON.
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for frame := range frames {
		if _, err := io.WriteString(w, frame); err != nil {
			slog.Debug("stream client gone", "error", err)
			return
		}
		flusher.Flush()
	}
}

// buildMessages assembles the feature prompt. search_qa retrieves
// context notes first; a retrieval failure degrades to an empty
// context rather than failing the request, since the prompt already
// tells the model to admit when the notes are silent.
func (s *Server) buildMessages(ctx context.Context, feature prompts.Feature, content string) ([]llms.Message, []prompts.ContextNote, error) {
	if feature != prompts.FeatureSearchQA {
		msgs, err := s.deps.Prompts.Build(feature, content)
		if err != nil {
			return nil, nil, noteerr.Wrap(noteerr.KindInvalidInput, "prompt assembly failed", err)
		}
		return msgs, nil, nil
	}

	var ctxNotes []prompts.ContextNote
	resp, err := s.deps.Search.Search(ctx, search.Request{
		Query:  content,
		Type:   search.TypeHybrid,
		Limit:  searchQAContextLimit,
		UserID: auth.UserID(ctx),
	})
	if err != nil {
		slog.Warn("search_qa retrieval failed, answering without context", "error", err)
	} else {
		ctxNotes = make([]prompts.ContextNote, len(resp.Results))
		for i, res := range resp.Results {
			ctxNotes[i] = prompts.ContextNote{Title: res.Title, Content: res.Snippet}
		}
	}

	return s.deps.Prompts.SearchQA(content, ctxNotes), ctxNotes, nil
}

// routerFor returns the router serving this request. When the model
// hints at an OAuth-capable provider and the user holds a token, a
// per-request clone carries the OAuth variant; the shared router is
// never mutated.
func (s *Server) routerFor(ctx context.Context, model string) *llms.Router {
	base := s.deps.Router
	hint := llms.ProviderHint(model)
	if hint == "" || s.deps.OAuth == nil {
		return base
	}

	token, err := s.deps.OAuth.AccessToken(ctx, auth.UserID(ctx), hint)
	if err != nil {
		if noteerr.IsKind(err, noteerr.KindInternal) || noteerr.IsKind(err, noteerr.KindProviderFailure) {
			slog.Warn("OAuth token lookup failed", "provider", hint, "error", err)
		}
		return base
	}

	clone := base.Clone()
	clone.RegisterOAuth(hint, token, nil)
	return clone
}

// handleModels serves GET /ai/models, aggregated across providers.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.deps.Router.Models()
	if models == nil {
		models = []llms.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string][]llms.ModelInfo{"models": models})
}

// handleProviders serves GET /ai/providers.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.deps.Router.Providers()
	if providers == nil {
		providers = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"providers": providers})
}

type aiFeedbackRequest struct {
	Feature        string `json:"feature"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
	Model          string `json:"model,omitempty"`
	RequestSummary string `json:"request_summary,omitempty"`
}

// handleAIFeedback serves POST /ai/feedback. Rating bounds are checked
// by the store.
func (s *Server) handleAIFeedback(w http.ResponseWriter, r *http.Request) {
	var req aiFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, noteerr.Wrap(noteerr.KindInvalidInput, "invalid JSON body", err))
		return
	}

	err := s.deps.Feedback.RecordAIFeedback(r.Context(), &metrics.AIFeedback{
		Feature:        req.Feature,
		Rating:         req.Rating,
		Comment:        req.Comment,
		Model:          req.Model,
		RequestSummary: req.RequestSummary,
		UserID:         auth.UserID(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}
