package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var validQueryIntents = []string{
	"Summarization", "Aggregation", "Filtering", "Ranking",
	"Trend Analysis", "Gap Analysis", "Competitive Analysis",
}

var validOutputFormats = []string{"text", "visualization", "cited_summary"}

func isValidEnum(value string, allowed []string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}

// queryPlanArgs mirrors analyze_query's ParameterSchema; mapstructure
// decodes the LLM's tool-call arguments straight into it instead of one
// type assertion per field. Weak typing is enabled since some model
// providers emit boolean/string tool arguments as JSON strings.
type queryPlanArgs struct {
	Query          string `mapstructure:"query"`
	Intent         string `mapstructure:"intent"`
	OutputFormat   string `mapstructure:"output_format"`
	NeedsRAG       bool   `mapstructure:"needs_rag"`
	NeedsWebSearch bool   `mapstructure:"needs_web_search"`
	NeedsAnalytics bool   `mapstructure:"needs_analytics"`
	NeedsNLP       bool   `mapstructure:"needs_nlp"`
	Reasoning      string `mapstructure:"reasoning"`
}

// NewQueryPlannerDescriptor builds the analyze_query tool, directly
// ported from original_source's QueryPlannerTool: the LLM calls it
// first with structured reasoning about intent/output-format/data-needs,
// and the tool normalizes and echoes the plan back as Environment data
// the coordinator specialist routes on.
func NewQueryPlannerDescriptor() Descriptor {
	return Descriptor{
		Name: "analyze_query",
		HumanDescription: "Analyze a user query to determine the optimal response strategy. " +
			"Use this tool FIRST to understand what the user wants before retrieving or processing data.",
		ParameterSchema: &ParameterSchema{
			Type: "object",
			Required: []string{
				"query", "intent", "output_format", "needs_rag",
				"needs_web_search", "needs_analytics", "needs_nlp", "reasoning",
			},
			Properties: map[string]*ParameterSchema{
				"query": {Type: "string", Description: "The user's query to analyze."},
				"intent": {
					Type:        "string",
					Description: "What the user wants to accomplish.",
					Enum:        stringsToAny(validQueryIntents),
				},
				"output_format": {
					Type:        "string",
					Description: "Best way to present results: text, visualization, or cited_summary.",
					Enum:        stringsToAny(validOutputFormats),
				},
				"needs_rag":        {Type: "boolean", Description: "True if the query asks about reviews, customers, products, or feedback from the dataset."},
				"needs_web_search": {Type: "boolean", Description: "True if the query needs current info or external facts."},
				"needs_analytics":  {Type: "boolean", Description: "True if the query asks for statistics, calculations, or aggregations."},
				"needs_nlp":        {Type: "boolean", Description: "True if the query needs keyword extraction, theme analysis, or sentiment scoring."},
				"reasoning":        {Type: "string", Description: "Brief explanation of the analysis (1-2 sentences)."},
			},
		},
		CapabilitySet: []string{"query_planner"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			var parsed queryPlanArgs
			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				WeaklyTypedInput: true,
				Result:           &parsed,
			})
			if err != nil {
				return Result{}, fmt.Errorf("analyze_query: building arguments decoder: %w", err)
			}
			if err := decoder.Decode(args); err != nil {
				return Result{}, fmt.Errorf("analyze_query: decoding arguments: %w", err)
			}

			if !isValidEnum(parsed.Intent, validQueryIntents) {
				parsed.Intent = "Summarization"
			}
			if !isValidEnum(parsed.OutputFormat, validOutputFormats) {
				parsed.OutputFormat = "text"
			}
			if strings.TrimSpace(parsed.Reasoning) == "" {
				parsed.Reasoning = "Query analysis complete"
			}

			plan := map[string]any{
				"intent":           parsed.Intent,
				"output_format":    parsed.OutputFormat,
				"needs_rag":        parsed.NeedsRAG,
				"needs_web_search": parsed.NeedsWebSearch,
				"needs_analytics":  parsed.NeedsAnalytics,
				"needs_nlp":        parsed.NeedsNLP,
				"reasoning":        parsed.Reasoning,
			}

			var toolsNeeded []string
			if parsed.NeedsRAG {
				toolsNeeded = append(toolsNeeded, "RAG")
			}
			if parsed.NeedsWebSearch {
				toolsNeeded = append(toolsNeeded, "Web Search")
			}
			if parsed.NeedsAnalytics {
				toolsNeeded = append(toolsNeeded, "Analytics")
			}
			if parsed.NeedsNLP {
				toolsNeeded = append(toolsNeeded, "NLP")
			}

			summary := fmt.Sprintf("Intent: %s, Format: %s", parsed.Intent, parsed.OutputFormat)
			if len(toolsNeeded) > 0 {
				summary += fmt.Sprintf(", Tools: %s", strings.Join(toolsNeeded, ", "))
			}

			return Result{
				Success: true,
				Summary: summary,
				Data:    plan,
				Metadata: map[string]any{
					"query_length": len(parsed.Query),
					"tools_needed": len(toolsNeeded),
				},
			}, nil
		},
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
