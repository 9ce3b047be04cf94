package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Citation is one attributed source span surfaced by the citation tool.
type Citation struct {
	SourceKey string `json:"source_key"`
	Excerpt   string `json:"excerpt"`
	Relevance int    `json:"relevance"`
}

// NewCitationDescriptor builds the citation tool, grounded on
// original_source's report_writer_agent.py step of attributing claims
// back to the Environment entries that produced them (spec.md's
// report_writer specialist needs a concrete way to cite evidence
// rather than asserting unsourced conclusions).
func NewCitationDescriptor() Descriptor {
	return Descriptor{
		Name:             "citation",
		HumanDescription: "Finds Environment entries whose content supports a given claim and returns them as ranked excerpts for attribution.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"claim", "source_keys"},
			Properties: map[string]*ParameterSchema{
				"claim":       {Type: "string", Description: "The claim or statement to find supporting evidence for."},
				"source_keys": {Type: "array", Items: &ParameterSchema{Type: "string"}, Description: "Environment keys to search for supporting text."},
			},
		},
		CapabilitySet: []string{"citation"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			claim, _ := args["claim"].(string)
			rawKeys, _ := args["source_keys"].([]any)
			if claim == "" || len(rawKeys) == 0 {
				return Result{Success: false, Summary: "claim and source_keys are required"}, nil
			}

			terms := tokenize(claim)
			var citations []Citation
			for _, rk := range rawKeys {
				key, _ := rk.(string)
				value, ok := tc.Environment.Get(key)
				if !ok {
					continue
				}
				text := fmt.Sprintf("%v", value)
				relevance := overlapScore(terms, text)
				if relevance == 0 {
					continue
				}
				citations = append(citations, Citation{
					SourceKey: key,
					Excerpt:   excerptAround(text, terms),
					Relevance: relevance,
				})
			}

			sort.Slice(citations, func(i, j int) bool { return citations[i].Relevance > citations[j].Relevance })

			if len(citations) == 0 {
				return Result{Success: true, Summary: "no supporting evidence found", Data: map[string]any{"citations": []Citation{}}}, nil
			}
			return Result{
				Success: true,
				Summary: fmt.Sprintf("found %d supporting source(s) for claim", len(citations)),
				Data:    map[string]any{"citations": citations},
			}, nil
		},
	}
}

func overlapScore(terms []string, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, t := range terms {
		if len(t) < 3 {
			continue
		}
		score += strings.Count(lower, t)
	}
	return score
}

// excerptAround returns a short window of text around the first matched
// term, falling back to the leading characters of the text.
func excerptAround(text string, terms []string) string {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if len(t) < 3 {
			continue
		}
		if idx := strings.Index(lower, t); idx >= 0 {
			start := idx - 60
			if start < 0 {
				start = 0
			}
			end := idx + 120
			if end > len(text) {
				end = len(text)
			}
			return strings.TrimSpace(text[start:end])
		}
	}
	return truncate(text, 180)
}
