package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
)

func TestScoreRoundsAndClamps(t *testing.T) {
	assert.Equal(t, 88, Score(87.5))
	assert.Equal(t, 87, Score(87.4))
	assert.Equal(t, 0, Score(-3))
	assert.Equal(t, 100, Score(120))
	assert.Equal(t, 0, Score(math.NaN()))

	assert.Equal(t, 95, Fraction(0.95))
	assert.Equal(t, 100, Fraction(1.2))
}

func TestLowScoringWordsCapsAtFive(t *testing.T) {
	words := []domain.WordResult{
		{Word: "a", AccuracyScore: 10},
		{Word: "b", AccuracyScore: 59},
		{Word: "ok", AccuracyScore: 60},
		{Word: "c", AccuracyScore: 20},
		{Word: "d", AccuracyScore: 30},
		{Word: "e", AccuracyScore: 40},
		{Word: "f", AccuracyScore: 50},
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, LowScoringWords(words))
}

func TestLimitWordsNeverExceedsTokens(t *testing.T) {
	words := []domain.WordResult{{Word: "hello"}, {Word: "world"}, {Word: "extra"}}

	limited := LimitWords(words, "Hello, world!")
	assert.Len(t, limited, 2)
	assert.Equal(t, []string{"Hello", "world"}, Tokens("Hello, world!"))

	assert.Len(t, LimitWords(words[:1], "Hello, world!"), 1)
	assert.Empty(t, LimitWords(words, "  ... "))
}

func TestTokensSplitsHanCharacters(t *testing.T) {
	assert.Equal(t, []string{"你", "好", "世", "界"}, Tokens("你好，世界。"))
	assert.Equal(t, []string{"I", "love", "北", "京"}, Tokens("I love 北京!"))
	assert.Len(t, LimitWords(make([]domain.WordResult, 5), "你好"), 2)
}

func TestAccuracyFeedback(t *testing.T) {
	assert.Equal(t, "Pronunciation is very accurate!", AccuracyFeedback(95, 90, 100, nil))

	got := AccuracyFeedback(75, 60, 80, []domain.WordResult{{Word: "think", AccuracyScore: 40}})
	assert.Equal(t, "Pronunciation is mostly accurate, keep practicing. Try to read more smoothly and naturally. Make sure to read the whole sentence. Focus on: think", got)

	assert.Contains(t, AccuracyFeedback(50, 90, 95, nil), "needs more practice")
}

func TestSuggestedFeedback(t *testing.T) {
	assert.Equal(t, "Very standard pronunciation!", SuggestedFeedback(92, nil))
	assert.Equal(t, "Good pronunciation, keep it up.", SuggestedFeedback(70, nil))
	assert.Equal(t, "More practice is recommended.", SuggestedFeedback(10, nil))
	assert.Equal(t, "Watch the pronunciation of: th", SuggestedFeedback(-1, []domain.WordResult{{Word: "th", AccuracyScore: 5}}))
}
