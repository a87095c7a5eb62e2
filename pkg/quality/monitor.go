package quality

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"log/slog"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/prompts"
)

// Action is what the stream monitor tells the caller to do.
type Action string

const (
	ActionContinue Action = "continue"
	ActionWarn     Action = "warn"
	ActionAbort    Action = "abort"
)

// Issue types reported by the monitor.
const (
	IssueLanguageMismatch = "language_mismatch"
	IssueRepetition       = "repetition"
	IssueFormat           = "format"
	IssueLength           = "length"
)

// Verdict is the outcome of one monitor check.
type Verdict struct {
	Action    Action `json:"action"`
	Reason    string `json:"reason,omitempty"`
	IssueType string `json:"issue_type,omitempty"`
}

func verdictContinue() Verdict { return Verdict{Action: ActionContinue} }

// Thresholds for the stream heuristics, in characters.
const (
	defaultCheckInterval = 300
	defaultHangulMin     = 0.15

	languageWindow  = 500
	languageMinSize = 100

	minSentenceLen = 20
	minSentences   = 5
	maxRepeats     = 3
	formatMinSize  = 500
	lengthMinSize  = 3000
	lengthTail     = 1000
	minUniqueWords = 20
)

// Monitor watches streamed AI output with in-process heuristics, no AI
// calls. It implements the router's stream observer: abort verdicts
// end the stream, warns are logged and the stream continues.
type Monitor struct {
	feature   prompts.Feature
	korean    bool
	interval  int
	hangulMin float64

	lastCheck int
	warned    map[string]bool
}

// monitorKnobs is the "monitor" settings subtree.
type monitorKnobs struct {
	CheckInterval int     `mapstructure:"check_interval"`
	HangulRatio   float64 `mapstructure:"hangul_ratio"`
}

// NewMonitor creates a stream monitor for one request. korean marks
// requests whose responses are expected in Korean.
func NewMonitor(feature prompts.Feature, korean bool, settings *config.Settings) *Monitor {
	knobs := monitorKnobs{
		CheckInterval: defaultCheckInterval,
		HangulRatio:   defaultHangulMin,
	}
	if settings != nil {
		if err := settings.Decode("monitor", &knobs); err != nil {
			slog.Warn("Invalid monitor settings, using defaults", "error", err)
			knobs = monitorKnobs{CheckInterval: defaultCheckInterval, HangulRatio: defaultHangulMin}
		}
	}
	return &Monitor{
		feature:   feature,
		korean:    korean,
		interval:  knobs.CheckInterval,
		hangulMin: knobs.HangulRatio,
		warned:    make(map[string]bool),
	}
}

// Observe runs the checks once every check-interval characters of
// accumulated text. A non-nil return aborts the stream.
func (m *Monitor) Observe(total, chunk string) error {
	n := utf8.RuneCountInString(total)
	if n-m.lastCheck < m.interval {
		return nil
	}
	m.lastCheck = n

	v := m.Check(total)
	switch v.Action {
	case ActionAbort:
		return fmt.Errorf("%s: %s", v.IssueType, v.Reason)
	case ActionWarn:
		if !m.warned[v.IssueType] {
			m.warned[v.IssueType] = true
			slog.Warn("Stream quality warning", "feature", m.feature, "issue", v.IssueType, "reason", v.Reason)
		}
	}
	return nil
}

// Check runs the heuristics over the accumulated text in priority
// order; the first non-continue verdict wins.
func (m *Monitor) Check(total string) Verdict {
	runes := []rune(total)

	if v := m.checkLanguage(runes); v.Action != ActionContinue {
		return v
	}
	if v := checkRepetition(total); v.Action != ActionContinue {
		return v
	}
	if v := m.checkFormat(runes, total); v.Action != ActionContinue {
		return v
	}
	if v := checkLength(runes); v.Action != ActionContinue {
		return v
	}
	return verdictContinue()
}

// checkLanguage warns when a Korean request is drawing a non-Korean
// response. It looks at the trailing window so a foreign-language
// quote early on does not trip it forever.
func (m *Monitor) checkLanguage(runes []rune) Verdict {
	if !m.korean {
		return verdictContinue()
	}
	window := runes
	if len(window) > languageWindow {
		window = window[len(window)-languageWindow:]
	}

	var nonSpace, hangul int
	for _, r := range window {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if unicode.Is(unicode.Hangul, r) {
			hangul++
		}
	}
	if nonSpace < languageMinSize {
		return verdictContinue()
	}

	ratio := float64(hangul) / float64(nonSpace)
	if ratio >= m.hangulMin {
		return verdictContinue()
	}
	return Verdict{
		Action:    ActionWarn,
		Reason:    fmt.Sprintf("expected Korean output, hangul ratio %.0f%% over the last %d characters", ratio*100, len(window)),
		IssueType: IssueLanguageMismatch,
	}
}

// checkRepetition aborts when the model loops: enough full sentences
// accumulated and one of them keeps coming back.
func checkRepetition(total string) Verdict {
	counts := make(map[string]int)
	var long int
	for _, raw := range strings.Split(total, ".") {
		s := strings.TrimSpace(raw)
		if utf8.RuneCountInString(s) <= minSentenceLen {
			continue
		}
		long++
		counts[s]++
	}
	if long < minSentences {
		return verdictContinue()
	}
	for s, n := range counts {
		if n >= maxRepeats {
			return Verdict{
				Action:    ActionAbort,
				Reason:    fmt.Sprintf("sentence repeated %d times: %q", n, truncateRunes(s, 60)),
				IssueType: IssueRepetition,
			}
		}
	}
	return verdictContinue()
}

// checkFormat warns when a writing or template response has produced
// half a page without a single Markdown heading.
func (m *Monitor) checkFormat(runes []rune, total string) Verdict {
	if m.feature != prompts.FeatureWriting && m.feature != prompts.FeatureTemplate {
		return verdictContinue()
	}
	if len(runes) < formatMinSize || strings.ContainsRune(total, '#') {
		return verdictContinue()
	}
	return Verdict{
		Action:    ActionWarn,
		Reason:    fmt.Sprintf("no Markdown heading after %d characters", formatMinSize),
		IssueType: IssueFormat,
	}
}

// checkLength aborts degenerate long output: lots of text whose tail
// cycles through a handful of words.
func checkLength(runes []rune) Verdict {
	if len(runes) < lengthMinSize {
		return verdictContinue()
	}
	tail := runes[len(runes)-lengthTail:]
	unique := make(map[string]bool)
	for _, w := range strings.Fields(string(tail)) {
		unique[w] = true
	}
	if len(unique) >= minUniqueWords {
		return verdictContinue()
	}
	return Verdict{
		Action:    ActionAbort,
		Reason:    fmt.Sprintf("only %d unique words in the last %d characters", len(unique), lengthTail),
		IssueType: IssueLength,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
