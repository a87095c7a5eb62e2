// Package quality guards AI output three ways: a checklist gate that
// scores finished responses with a secondary AI call, a grounded-QA
// evaluator for search answers, and a pure-heuristic stream monitor.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"log/slog"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/llms"
	"github.com/noteum-io/noteum/pkg/prompts"
)

// Chatter is the slice of the AI router the gate and evaluator need.
type Chatter interface {
	Chat(ctx context.Context, req *llms.ChatRequest) (*llms.Response, error)
}

// Checklists per feature. Summarize has none: a summary is judged by
// the reader, not a grader.
var checklists = map[prompts.Feature][]string{
	prompts.FeatureInsight: {
		"Does the response surface at least one connection or implication not stated in the note?",
		"Are the observations specific to this note rather than generic advice?",
		"Does the response end with concrete follow-up questions?",
		"Is the response written in the same language as the note?",
	},
	prompts.FeatureSearchQA: {
		"Is every claim in the answer supported by the provided notes?",
		"Does the answer name the note titles it draws from?",
		"When the notes lack the answer, does the response say so instead of guessing?",
		"Is the answer written in the same language as the question?",
	},
	prompts.FeatureWriting: {
		"Is the text structured as Markdown with headings?",
		"Does the draft keep the author's terminology and factual content?",
		"Is the writing clear and free of filler?",
		"Is the response written in the language of the request?",
	},
	prompts.FeatureSpellcheck: {
		"Does the response contain only the corrected text, with no commentary?",
		"Are all spelling, grammar, and spacing errors fixed?",
		"Are the original meaning, formatting, and language preserved?",
	},
	prompts.FeatureTemplate: {
		"Is the output a Markdown template with headings?",
		"Does the template contain placeholder hints to fill in?",
		"Does the structure fit the described purpose?",
	},
}

// ChecklistItem is one graded checklist question. A nil Passed means
// the item was only partially satisfied.
type ChecklistItem struct {
	Question string `json:"question"`
	Passed   *bool  `json:"passed"`
	Note     string `json:"note,omitempty"`
}

// GateResult is the scored checklist for one response.
type GateResult struct {
	Score   float64         `json:"score"`
	Passed  bool            `json:"passed"`
	Items   []ChecklistItem `json:"items"`
	Summary string          `json:"summary,omitempty"`
}

// Gate scores finished AI responses against per-feature checklists
// with a secondary low-temperature AI call.
type Gate struct {
	chatter  Chatter
	settings *config.Settings
}

// NewGate creates a quality gate backed by the given router.
func NewGate(chatter Chatter, settings *config.Settings) *Gate {
	return &Gate{chatter: chatter, settings: settings}
}

const gateSystemPrompt = `You are a strict quality reviewer. Grade the candidate response against this checklist:

%s
Answer with JSON only, no prose:
{"items": [{"question": "...", "passed": true, "note": "..."}], "summary": "..."}
Include every checklist item in order. Use true when an item is satisfied, false when it is not, and null when it is only partially satisfied.`

// Evaluate grades a response against the feature's checklist. It
// returns nil whenever no checklist applies or any step fails; the
// caller decides the fallback.
func (g *Gate) Evaluate(ctx context.Context, feature prompts.Feature, request, response string) *GateResult {
	checklist, ok := checklists[feature]
	if !ok {
		return nil
	}

	var numbered strings.Builder
	for i, item := range checklist {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, item)
	}

	temp := 0.1
	resp, err := g.chatter.Chat(ctx, &llms.ChatRequest{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: fmt.Sprintf(gateSystemPrompt, numbered.String())},
			{Role: llms.RoleUser, Content: fmt.Sprintf("Request:\n%s\n\nCandidate response:\n%s", request, response)},
		},
		Options: llms.Options{Temperature: &temp, MaxTokens: 800},
	})
	if err != nil {
		slog.Warn("Quality gate call failed", "feature", feature, "error", err)
		return nil
	}

	var parsed struct {
		Items   []ChecklistItem `json:"items"`
		Summary string          `json:"summary"`
	}
	if err := json.Unmarshal([]byte(StripFences(resp.Content)), &parsed); err != nil {
		slog.Warn("Quality gate returned unparseable JSON", "feature", feature, "error", err)
		return nil
	}
	if len(parsed.Items) == 0 {
		return nil
	}

	var score float64
	for _, item := range parsed.Items {
		switch {
		case item.Passed == nil:
			score += 0.5
		case *item.Passed:
			score += 1.0
		}
	}
	score /= float64(len(parsed.Items))

	return &GateResult{
		Score:   score,
		Passed:  score >= g.minPassRatio(feature),
		Items:   parsed.Items,
		Summary: parsed.Summary,
	}
}

// minPassRatio is 0.75 for most features and 1.0 for spellcheck, where
// a single miss means the text is not fully corrected. Settings can
// override per feature.
func (g *Gate) minPassRatio(f prompts.Feature) float64 {
	def := 0.75
	if f == prompts.FeatureSpellcheck {
		def = 1.0
	}
	if g.settings == nil {
		return def
	}
	return g.settings.GetFloat64(config.SettingQualityPassRatioPrefix+string(f), def)
}

// StripFences removes a surrounding markdown code fence, which models
// add around JSON no matter how firmly told not to.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
