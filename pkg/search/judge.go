package search

import (
	"fmt"
	"strings"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/notes"
	"github.com/noteum-io/noteum/pkg/query"
)

// Decision records why the judge did or did not run semantic search.
// It is logged and attached to the search event.
type Decision struct {
	RunSemantic bool    `json:"run_semantic"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
	FTSCount    int     `json:"fts_count"`
	MaxScore    float64 `json:"max_score"`
	Coverage    float64 `json:"coverage"`
}

// Judge decides whether keyword results are good enough to skip the
// embedding call. Quality blends the best FTS score against a
// language-aware floor with morpheme coverage of the returned text.
type Judge struct {
	cfg config.JudgeConfig
}

// NewJudge creates a judge with the given thresholds.
func NewJudge(cfg config.JudgeConfig) *Judge {
	return &Judge{cfg: cfg}
}

// Decide evaluates FTS output for one analyzed query.
func (j *Judge) Decide(analysis *query.Analysis, hits []notes.SearchHit) Decision {
	if j.cfg.Adaptive != nil && !*j.cfg.Adaptive {
		return Decision{
			RunSemantic: true,
			Reason:      "adaptive mode disabled, semantic always runs",
			FTSCount:    len(hits),
		}
	}

	if len(hits) == 0 {
		return Decision{
			RunSemantic: true,
			Reason:      "no keyword matches",
		}
	}

	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	coverage := termCoverage(analysis.Morphemes, hits)

	minScore := j.cfg.MinScoreEnglish
	if analysis.Language == query.LanguageKorean || analysis.Language == query.LanguageMixed {
		minScore = j.cfg.MinScoreKorean
	}

	quality := 0.4*clamp1(maxScore/minScore) + 0.6*clamp1(coverage/j.cfg.MinCoverage)

	d := Decision{
		RunSemantic: quality < j.cfg.Confidence,
		Confidence:  quality,
		FTSCount:    len(hits),
		MaxScore:    maxScore,
		Coverage:    coverage,
	}
	if d.RunSemantic {
		d.Reason = fmt.Sprintf("keyword quality %.2f below confidence %.2f", quality, j.cfg.Confidence)
	} else {
		d.Reason = fmt.Sprintf("keyword quality %.2f sufficient", quality)
	}
	return d
}

// termCoverage is the fraction of query morphemes found in the
// concatenated snippets and titles. No morphemes counts as full
// coverage so score quality alone decides.
func termCoverage(morphemes []string, hits []notes.SearchHit) float64 {
	if len(morphemes) == 0 {
		return 1
	}

	var sb strings.Builder
	for _, h := range hits {
		sb.WriteString(h.Title)
		sb.WriteString(" ")
		sb.WriteString(h.Snippet)
		sb.WriteString(" ")
	}
	haystack := strings.ToLower(sb.String())

	matched := 0
	for _, m := range morphemes {
		if strings.Contains(haystack, strings.ToLower(m)) {
			matched++
		}
	}
	return float64(matched) / float64(len(morphemes))
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
