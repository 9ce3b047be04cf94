package specialist

// Catalog is the fixed specialist roster the router (C6) dispatches to,
// grounded on original_source/backend/app/core/llm/workflow/agents/*.py
// (coordinator_agent, data_discovery_agent, sentiment_analysis_agent,
// general_assistant_agent) and the simple_workflow variant's additional
// clustering/gap_analysis/trend_analysis agents. report_writer is
// synthesized from json_writer.py/chart_writer.py's synthesis role.
var Catalog = map[string]Config{
	"coordinator": {
		Name:        "coordinator",
		Description: "Classifies the query, plans which specialists to invoke, and sequences their execution.",
		Instruction: "You are the coordinator. Break the user's request into the specialist calls needed to answer it, in dependency order. Do not answer the question yourself.",
		ModelTier:   "router",
		ToolNames:   []string{"analyze_query"},
	},
	"data_discovery": {
		Name:         "data_discovery",
		Description:  "Explores dataset schema, column types, and summary statistics.",
		Instruction:  "You are the data discovery specialist. Inspect the available tables and describe their structure, types, and notable statistics relevant to the user's question.",
		ModelTier:    "simple",
		Capabilities: []string{"dataset_read", "sql"},
	},
	"sentiment_analysis": {
		Name:         "sentiment_analysis",
		Description:  "Scores sentiment and extracts representative phrases from review text.",
		Instruction:  "You are the sentiment analysis specialist. Compute sentiment distribution over the relevant review corpus and cite representative examples.",
		ModelTier:    "medium",
		Capabilities: []string{"nlp", "dataset_read"},
	},
	"general_assistant": {
		Name:        "general_assistant",
		Description: "Handles conversational or out-of-scope requests that don't need data tools.",
		Instruction: "You are a general assistant. Answer directly and concisely; only reach for a tool if the user's request actually requires dataset access.",
		ModelTier:   "simple",
	},
	"clustering": {
		Name:         "clustering",
		Description:  "Groups reviews or products into clusters by similarity.",
		Instruction:  "You are the clustering specialist. Produce coherent groupings over the requested entities and summarize what distinguishes each cluster.",
		ModelTier:    "medium",
		Capabilities: []string{"vector_search", "dataset_read"},
	},
	"gap_analysis": {
		Name:         "gap_analysis",
		Description:  "Identifies unmet needs or missing product/feature coverage from review text.",
		Instruction:  "You are the gap analysis specialist. Surface recurring complaints or requests that indicate an unmet need, with supporting citations.",
		ModelTier:    "medium",
		Capabilities: []string{"nlp", "vector_search", "dataset_read", "document_ingest"},
	},
	"trend_analysis": {
		Name:         "trend_analysis",
		Description:  "Analyzes how a metric or sentiment changes over time.",
		Instruction:  "You are the trend analysis specialist. Compute the requested metric over time and describe the trajectory, calling out inflection points.",
		ModelTier:    "medium",
		Capabilities: []string{"sql", "dataset_read", "visualization"},
	},
	"report_writer": {
		Name:        "report_writer",
		Description: "Synthesizes the specialists' outputs into one final answer with citations and, where useful, a chart.",
		Instruction: "You are the report writer. Combine the prior specialist findings into one coherent answer. Cite sources and include a chart_spec only when a visualization genuinely clarifies the answer.",
		ModelTier:   "medium",
		ToolNames:   []string{"visualization", "citation"},
	},
}

// Aliases maps the router's domain-facing synonyms (spec.md's "product"/
// "research"/"analytics" framing) onto catalog entries, grounded on the
// same original_source agent modules being reused across both the
// generic workflow and the domain-specific simple_workflow variant.
var Aliases = map[string]string{
	"product":   "gap_analysis",
	"research":  "data_discovery",
	"analytics": "trend_analysis",
}

// Resolve looks up a specialist Config by name, following Aliases first.
func Resolve(name string) (Config, bool) {
	if alias, ok := Aliases[name]; ok {
		name = alias
	}
	cfg, ok := Catalog[name]
	return cfg, ok
}
