package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"log/slog"

	"github.com/noteum-io/noteum/pkg/llms"
	"github.com/noteum-io/noteum/pkg/prompts"
)

// Confidence labels for an evaluation.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// SourceCoverage records whether one context note was used by the
// answer, aligned with the note numbering shown to the model.
type SourceCoverage struct {
	Title         string `json:"title,omitempty"`
	Cited         bool   `json:"cited"`
	RelevantClaim string `json:"relevant_claim,omitempty"`
}

// Evaluation is the grounded-QA breakdown for a search answer.
type Evaluation struct {
	// Correctness is the fraction of the answer's claims supported by
	// the context notes.
	Correctness float64 `json:"correctness"`

	// Utility is how completely the question is answered.
	Utility float64 `json:"utility"`

	// Confidence is high, medium, or low, derived from the two scores.
	Confidence string `json:"confidence"`

	SourceCoverage  []SourceCoverage `json:"source_coverage,omitempty"`
	GroundingIssues []string         `json:"grounding_issues,omitempty"`
	Summary         string           `json:"summary,omitempty"`
}

// Evaluator decomposes a grounded answer into correctness and utility
// with a secondary AI call.
type Evaluator struct {
	chatter Chatter
}

// NewEvaluator creates a search answer evaluator.
func NewEvaluator(chatter Chatter) *Evaluator {
	return &Evaluator{chatter: chatter}
}

const evaluatorSystemPrompt = `You grade an answer that was produced from a numbered set of notes.
Score two dimensions between 0 and 1:
- correctness: the fraction of the answer's claims the notes support.
- utility: how completely the question is answered.
Also report, per note, whether the answer drew on it, and list any claims the notes do not support.
Answer with JSON only, no prose:
{"correctness": 0.0, "utility": 0.0, "source_coverage": [{"title": "...", "cited": true, "relevant_claim": "..."}], "grounding_issues": ["..."], "summary": "one line"}`

// Evaluate grades a search answer against its context. Returns nil on
// any failure; the caller decides the fallback.
func (e *Evaluator) Evaluate(ctx context.Context, question string, notes []prompts.ContextNote, answer string) *Evaluation {
	temp := 0.1
	resp, err := e.chatter.Chat(ctx, &llms.ChatRequest{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: evaluatorSystemPrompt},
			{Role: llms.RoleUser, Content: fmt.Sprintf("%s\n\nCandidate answer:\n%s",
				prompts.FormatContext(question, notes), answer)},
		},
		Options: llms.Options{Temperature: &temp, MaxTokens: 1000},
	})
	if err != nil {
		slog.Warn("Answer evaluation call failed", "error", err)
		return nil
	}

	var parsed Evaluation
	if err := json.Unmarshal([]byte(StripFences(resp.Content)), &parsed); err != nil {
		slog.Warn("Answer evaluation returned unparseable JSON", "error", err)
		return nil
	}

	parsed.Correctness = clampRound(parsed.Correctness)
	parsed.Utility = clampRound(parsed.Utility)
	parsed.Confidence = confidenceLabel(parsed.Correctness, parsed.Utility)
	return &parsed
}

func confidenceLabel(correctness, utility float64) string {
	switch {
	case correctness >= 0.8 && utility >= 0.7:
		return ConfidenceHigh
	case correctness >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// clampRound clamps to [0, 1] and rounds to two decimals.
func clampRound(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}
