package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreSentimentPositive(t *testing.T) {
	score, matched := scoreSentiment("This product is great and I love it")
	assert.Greater(t, score, 0.0)
	assert.Contains(t, matched, "great")
}

func TestScoreSentimentNegative(t *testing.T) {
	score, _ := scoreSentiment("Terrible, broken, and a complete waste of money")
	assert.Less(t, score, 0.0)
}

func TestScoreSentimentNeutralWhenNoLexiconHits(t *testing.T) {
	score, matched := scoreSentiment("the box arrived on tuesday")
	assert.Equal(t, 0.0, score)
	assert.Empty(t, matched)
}

func TestSentimentLabelThresholds(t *testing.T) {
	assert.Equal(t, "positive", sentimentLabel(0.5))
	assert.Equal(t, "negative", sentimentLabel(-0.5))
	assert.Equal(t, "neutral", sentimentLabel(0.0))
}
