// Package prompts assembles the per-feature message lists sent to the
// AI router. System prompts ship with built-in defaults and can be
// overridden per feature through the settings store.
package prompts

import (
	"fmt"
	"strings"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/llms"
)

// Feature names an AI task type.
type Feature string

const (
	FeatureInsight    Feature = "insight"
	FeatureSearchQA   Feature = "search_qa"
	FeatureWriting    Feature = "writing"
	FeatureSpellcheck Feature = "spellcheck"
	FeatureTemplate   Feature = "template"
	FeatureSummarize  Feature = "summarize"
)

// ValidFeature reports whether f names a supported feature.
func ValidFeature(f Feature) bool {
	switch f {
	case FeatureInsight, FeatureSearchQA, FeatureWriting,
		FeatureSpellcheck, FeatureTemplate, FeatureSummarize:
		return true
	}
	return false
}

// Features lists the supported features in a stable order.
func Features() []Feature {
	return []Feature{
		FeatureInsight,
		FeatureSearchQA,
		FeatureWriting,
		FeatureSpellcheck,
		FeatureTemplate,
		FeatureSummarize,
	}
}

// ContextNote is a retrieved note injected into grounded prompts.
type ContextNote struct {
	Title   string
	Content string
}

var defaultSystemPrompts = map[Feature]string{
	FeatureInsight: "You are a research assistant reviewing a personal note. " +
		"Surface what the author is likely to miss: connections to adjacent topics, " +
		"contradictions or weak assumptions, open gaps, and two or three concrete " +
		"follow-up questions. Be specific to this note, never generic. " +
		"Respond in the language the note is written in.",

	FeatureSearchQA: "You answer questions strictly from the provided notes. " +
		"Base every claim on the context; when you use a note, name its title. " +
		"If the notes do not contain the answer, say so plainly instead of guessing. " +
		"Respond in the language the question is asked in.",

	FeatureWriting: "You are a writing assistant for research notes. " +
		"Draft or rework the requested text in clear, structured Markdown with " +
		"headings. Keep the author's terminology and factual content intact. " +
		"Respond in the language of the request.",

	FeatureSpellcheck: "Proofread the text for spelling, grammar, and spacing " +
		"errors. Return only the corrected text, preserving the original meaning, " +
		"formatting, and language. Do not add commentary or explanations.",

	FeatureTemplate: "Design a reusable note template for the described purpose. " +
		"Produce Markdown with headings and short placeholder hints in brackets. " +
		"Respond in the language of the request.",

	FeatureSummarize: "Summarize the note in a handful of sentences. Keep the " +
		"key facts, numbers, and decisions; drop filler. " +
		"Respond in the language the note is written in.",
}

// Builder builds feature message lists, consulting the settings store
// for per-feature system prompt overrides.
type Builder struct {
	settings *config.Settings
}

// NewBuilder creates a prompt builder. A nil settings store means the
// built-in defaults are always used.
func NewBuilder(settings *config.Settings) *Builder {
	return &Builder{settings: settings}
}

// SystemPrompt returns the system prompt for a feature, honoring the
// "prompts.<feature>.system" settings override.
func (b *Builder) SystemPrompt(f Feature) string {
	def := defaultSystemPrompts[f]
	if b.settings == nil {
		return def
	}
	key := config.SettingPromptPrefix + string(f) + ".system"
	return b.settings.GetString(key, def)
}

// Build assembles the messages for a feature request. search_qa needs
// retrieved context and goes through SearchQA instead.
func (b *Builder) Build(f Feature, content string) ([]llms.Message, error) {
	if !ValidFeature(f) {
		return nil, fmt.Errorf("unknown feature: %s", f)
	}
	if f == FeatureSearchQA {
		return nil, fmt.Errorf("feature %s requires context notes, use SearchQA", f)
	}
	return []llms.Message{
		{Role: llms.RoleSystem, Content: b.SystemPrompt(f)},
		{Role: llms.RoleUser, Content: content},
	}, nil
}

// SearchQA assembles the grounded question-answering messages: the
// retrieved notes are numbered and injected with their titles ahead of
// the question.
func (b *Builder) SearchQA(question string, notes []ContextNote) []llms.Message {
	return []llms.Message{
		{Role: llms.RoleSystem, Content: b.SystemPrompt(FeatureSearchQA)},
		{Role: llms.RoleUser, Content: FormatContext(question, notes)},
	}
}

// FormatContext renders the numbered note context block followed by the
// question. The same block shape feeds the quality evaluator so that
// both sides agree on note numbering.
func FormatContext(question string, notes []ContextNote) string {
	var sb strings.Builder
	sb.WriteString("Context notes:\n")
	if len(notes) == 0 {
		sb.WriteString("\n(no notes matched)\n")
	}
	for i, n := range notes {
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "\n[%d] %s\n%s\n", i+1, title, n.Content)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
