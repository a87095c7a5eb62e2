// Package query turns raw search input into a structured analysis
// shared by the keyword and semantic engines.
package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Language is the detected query language.
type Language string

const (
	LanguageKorean  Language = "ko"
	LanguageEnglish Language = "en"
	LanguageMixed   Language = "mixed"
)

// Analysis is the structured form of a search query.
type Analysis struct {
	// Raw is the input as received.
	Raw string `json:"raw"`

	// Normalized is the NFC-normalized, trimmed form.
	Normalized string `json:"normalized"`

	// Language is the detected language.
	Language Language `json:"language"`

	// Morphemes are extracted base forms, first-seen order, deduplicated.
	Morphemes []string `json:"morphemes"`

	// Expression is the keyword query expression: deduplicated morphemes
	// and whitespace tokens joined with " | ", single quotes doubled.
	Expression string `json:"expression"`

	// SingleTerm is true when the raw query splits into one token.
	SingleTerm bool `json:"single_term"`
}

// Analyze produces the analysis for a raw query. Empty input yields an
// empty analysis with an empty expression.
func Analyze(raw string) Analysis {
	normalized := strings.TrimSpace(norm.NFC.String(raw))
	if normalized == "" {
		return Analysis{Raw: raw, Language: LanguageEnglish}
	}

	analysis := Analysis{
		Raw:        raw,
		Normalized: normalized,
		Language:   DetectLanguage(normalized),
		SingleTerm: len(strings.Fields(raw)) == 1,
	}

	switch analysis.Language {
	case LanguageKorean, LanguageMixed:
		analysis.Morphemes = ExtractMorphemes(normalized)
	default:
		analysis.Morphemes = strings.Fields(strings.ToLower(normalized))
	}

	analysis.Expression = buildExpression(analysis.Morphemes, strings.Fields(normalized))

	return analysis
}

// DetectLanguage classifies text by script: Hangul only is Korean,
// Latin only is English, both is mixed. Neither defaults to English.
func DetectLanguage(s string) Language {
	var hasHangul, hasLatin bool
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Hangul, r):
			hasHangul = true
		case unicode.Is(unicode.Latin, r):
			hasLatin = true
		}
		if hasHangul && hasLatin {
			return LanguageMixed
		}
	}
	if hasHangul {
		return LanguageKorean
	}
	return LanguageEnglish
}

// HangulRatio reports the share of letters that are Hangul. Whitespace,
// digits, and punctuation are not counted.
func HangulRatio(s string) float64 {
	var hangul, letters int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Hangul, r) {
			hangul++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(hangul) / float64(letters)
}

// buildExpression joins deduplicated terms with " | " for the token
// index. Morphemes come first, then original tokens not already present.
// Single quotes are doubled so terms embed safely in the query syntax.
func buildExpression(morphemes, tokens []string) string {
	seen := make(map[string]bool, len(morphemes)+len(tokens))
	terms := make([]string, 0, len(morphemes)+len(tokens))

	add := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, strings.ReplaceAll(term, "'", "''"))
	}

	for _, m := range morphemes {
		add(m)
	}
	for _, t := range tokens {
		add(t)
	}

	return strings.Join(terms, " | ")
}
