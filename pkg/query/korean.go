package query

import (
	"strings"
	"unicode"
)

// josaSuffixes are particles stripped from the tail of Hangul tokens.
// Ordered longest first so the longest match wins.
var josaSuffixes = []string{
	"으로부터", "으로서", "으로써",
	"에게서", "한테서", "이라도",
	"에서", "에게", "께서", "이나", "라도", "부터", "까지",
	"처럼", "보다", "조차", "마저", "마다", "밖에", "이랑",
	"으로", "한테", "든지", "로서", "로써",
	"은", "는", "이", "가", "을", "를", "에", "와", "과",
	"의", "도", "만", "랑", "로", "나", "께",
}

// eomiReductions map common verb and adjective conjugation tails to
// their dictionary base form.
var eomiReductions = []struct {
	suffix string
	base   string
}{
	{"했습니다", "하다"}, {"합니다", "하다"}, {"했었던", "하다"},
	{"했던", "하다"}, {"했다", "하다"}, {"한다", "하다"},
	{"하는", "하다"}, {"하고", "하다"}, {"해서", "하다"},
	{"하면", "하다"}, {"하기", "하다"}, {"할", "하다"},
	{"됐습니다", "되다"}, {"됩니다", "되다"}, {"됐다", "되다"},
	{"된다", "되다"}, {"되는", "되다"}, {"되고", "되다"},
	{"되면", "되다"}, {"될", "되다"},
	{"입니다", "이다"}, {"이었다", "이다"}, {"였다", "이다"},
}

// genericEndings are conjugation tails stripped from remaining verb or
// adjective forms; the stem is restored to a base form by appending 다.
var genericEndings = []string{
	"었습니다", "았습니다", "습니다",
	"었던", "았던", "었다", "았다", "는다",
	"네요", "어요", "아요", "지요", "죠",
}

// koreanStopwords are grammatical or deictic tokens with no search value.
var koreanStopwords = map[string]bool{
	"것": true, "수": true, "등": true, "및": true, "또": true,
	"이것": true, "그것": true, "저것": true,
	"여기": true, "거기": true, "저기": true,
	"그": true, "이": true, "저": true, "때": true, "들": true,
	"좀": true, "잘": true, "더": true,
}

// ExtractMorphemes runs the rule-based Korean analyzer: tokens are
// segmented into script runs, Latin runs become lowercased foreign-word
// morphemes, and Hangul runs are reduced by conjugation and particle
// stripping. Results are deduplicated preserving first-seen order.
func ExtractMorphemes(text string) []string {
	seen := make(map[string]bool)
	var morphemes []string

	add := func(m string) {
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		morphemes = append(morphemes, m)
	}

	for _, token := range strings.Fields(text) {
		for _, run := range scriptRuns(token) {
			if run.latin {
				add(strings.ToLower(run.text))
				continue
			}
			add(reduceHangul(run.text))
		}
	}

	return morphemes
}

type scriptRun struct {
	text  string
	latin bool
}

// scriptRuns splits a token into maximal same-script runs. Digits and
// punctuation terminate runs and are dropped.
func scriptRuns(token string) []scriptRun {
	var runs []scriptRun
	var current []rune
	var currentLatin bool

	flush := func() {
		if len(current) > 0 {
			runs = append(runs, scriptRun{text: string(current), latin: currentLatin})
			current = nil
		}
	}

	for _, r := range token {
		switch {
		case unicode.Is(unicode.Hangul, r):
			if currentLatin {
				flush()
			}
			currentLatin = false
			current = append(current, r)
		case unicode.Is(unicode.Latin, r):
			if !currentLatin {
				flush()
			}
			currentLatin = true
			current = append(current, r)
		default:
			flush()
		}
	}
	flush()

	return runs
}

// reduceHangul reduces one Hangul run to a base form: conjugated verbs
// and adjectives map to their dictionary form, then one trailing
// particle is stripped. Stopwords reduce to the empty string.
func reduceHangul(run string) string {
	for _, red := range eomiReductions {
		if strings.HasSuffix(run, red.suffix) && len([]rune(run)) > len([]rune(red.suffix)) {
			stem := strings.TrimSuffix(run, red.suffix)
			return stem + red.base
		}
		if run == red.suffix {
			return red.base
		}
	}

	for _, ending := range genericEndings {
		if strings.HasSuffix(run, ending) {
			stem := strings.TrimSuffix(run, ending)
			if stem != "" {
				return stem + "다"
			}
		}
	}

	for _, josa := range josaSuffixes {
		if strings.HasSuffix(run, josa) {
			stem := strings.TrimSuffix(run, josa)
			if stem == "" {
				break
			}
			run = stem
			break
		}
	}

	if koreanStopwords[run] {
		return ""
	}
	return run
}
