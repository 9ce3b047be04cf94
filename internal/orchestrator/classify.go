package orchestrator

import (
	"regexp"
	"strings"
)

// Tier is the coarse complexity bucket the router assigns a turn to
// (spec.md §4.6 Phase R3).
type Tier string

const (
	TierSimple  Tier = "simple"
	TierMedium  Tier = "medium"
	TierComplex Tier = "complex"
)

// followUpPattern matches the pronoun/follow-up signals spec.md §4.6
// names for promoting a turn to medium tier when a prior turn exists.
var followUpPattern = regexp.MustCompile(`(?i)\b(that|this|it|those|these|more detail|more details|the table|again|continue|what about)\b`)

// conversationalPattern matches queries needing no data retrieval at
// all — greetings, thanks, and definitional/meta questions.
var conversationalPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|thanks|thank you|who are you|what can you do|what is your name|how are you)\b`)

// dataKeywords signal the query is about the dataset/review corpus
// domain and therefore needs the complex specialist graph.
var dataKeywords = []string{
	"sentiment", "review", "reviews", "complaint", "complaints", "trend",
	"gap", "cluster", "compare", "analyze", "analysis", "dataset", "table",
	"chart", "sql", "query", "statistic", "average", "percent", "breakdown",
}

// Classification is the router's tier decision, emitted as a `routing`
// event per spec.md §4.6.
type Classification struct {
	Tier       Tier
	Confidence float64
	Reasoning  string
}

// classifyTier implements the heuristic classifier spec.md §4.6 allows
// as an alternative to a cheap-model LLM call: a keyword/history-length
// heuristic over the signals the spec names explicitly.
func classifyTier(query string, hasHistory bool) Classification {
	trimmed := strings.TrimSpace(query)

	if hasHistory && followUpPattern.MatchString(trimmed) {
		return Classification{
			Tier:       TierMedium,
			Confidence: 0.82,
			Reasoning:  "query references the previous turn (pronoun/follow-up phrasing) with existing history",
		}
	}

	if conversationalPattern.MatchString(trimmed) {
		return Classification{
			Tier:       TierSimple,
			Confidence: 0.9,
			Reasoning:  "conversational/definitional query with no data-retrieval keywords",
		}
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range dataKeywords {
		if strings.Contains(lower, kw) {
			return Classification{
				Tier:       TierComplex,
				Confidence: 0.75,
				Reasoning:  "query references dataset/review-analysis terminology requiring the specialist graph",
			}
		}
	}

	if len(trimmed) < 40 && !hasHistory {
		return Classification{
			Tier:       TierSimple,
			Confidence: 0.6,
			Reasoning:  "short query, no prior history, no data-analysis keywords detected",
		}
	}

	return Classification{
		Tier:       TierComplex,
		Confidence: 0.55,
		Reasoning:  "no simple/medium signal matched; defaulting to the specialist graph",
	}
}
