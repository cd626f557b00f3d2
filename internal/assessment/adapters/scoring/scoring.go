// Package scoring holds the normalization helpers shared by every adapter.
package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/tkwa12358/newenglish/internal/assessment/domain"
)

const (
	// LowScoreThreshold marks a word worth calling out in feedback.
	LowScoreThreshold = 60
	maxCalledOutWords = 5
)

// Score rounds a vendor score and clamps it to 0..100.
func Score(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(int(math.Round(v)))
}

// Fraction converts a 0..1 vendor score to 0..100.
func Fraction(v float64) int {
	return Score(v * 100)
}

func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// LowScoringWords returns up to five words scoring below the threshold, in
// reading order.
func LowScoringWords(words []domain.WordResult) []string {
	out := make([]string, 0, maxCalledOutWords)
	for _, w := range words {
		if w.AccuracyScore >= LowScoreThreshold {
			continue
		}
		out = append(out, w.Word)
		if len(out) == maxCalledOutWords {
			break
		}
	}
	return out
}

// Tokens splits reference text into words, dropping surrounding punctuation.
// Each Han character counts as one word.
func Tokens(text string) []string {
	out := make([]string, 0)
	for _, f := range strings.Fields(text) {
		var run []rune
		flush := func() {
			if token := strings.TrimFunc(string(run), isPunct); token != "" {
				out = append(out, token)
			}
			run = run[:0]
		}
		for _, r := range f {
			if unicode.Is(unicode.Han, r) {
				flush()
				out = append(out, string(r))
				continue
			}
			run = append(run, r)
		}
		flush()
	}
	return out
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// LimitWords caps a word list at the number of tokens in the reference
// text. Text models sometimes invent extra entries.
func LimitWords(words []domain.WordResult, referenceText string) []domain.WordResult {
	limit := len(Tokens(referenceText))
	if len(words) <= limit {
		return words
	}
	return words[:limit]
}

// AccuracyFeedback renders the hint shown for vendors that report
// accuracy, fluency and completeness separately.
func AccuracyFeedback(accuracy, fluency, completeness int, words []domain.WordResult) string {
	parts := make([]string, 0, 4)
	switch {
	case accuracy >= 90:
		parts = append(parts, "Pronunciation is very accurate!")
	case accuracy >= 70:
		parts = append(parts, "Pronunciation is mostly accurate, keep practicing.")
	default:
		parts = append(parts, "Pronunciation needs more practice.")
	}
	if fluency < 70 {
		parts = append(parts, "Try to read more smoothly and naturally.")
	}
	if completeness < 90 {
		parts = append(parts, "Make sure to read the whole sentence.")
	}
	if low := LowScoringWords(words); len(low) > 0 {
		parts = append(parts, "Focus on: "+strings.Join(low, ", "))
	}
	return strings.Join(parts, " ")
}

// SuggestedFeedback renders the hint for vendors that report one suggested
// score. A negative score means the vendor omitted it.
func SuggestedFeedback(suggested int, words []domain.WordResult) string {
	parts := make([]string, 0, 2)
	switch {
	case suggested < 0:
	case suggested >= 90:
		parts = append(parts, "Very standard pronunciation!")
	case suggested >= 70:
		parts = append(parts, "Good pronunciation, keep it up.")
	default:
		parts = append(parts, "More practice is recommended.")
	}
	if low := LowScoringWords(words); len(low) > 0 {
		parts = append(parts, "Watch the pronunciation of: "+strings.Join(low, ", "))
	}
	return strings.Join(parts, " ")
}
