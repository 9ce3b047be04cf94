package orchestrator

import (
	"regexp"
	"strings"
)

// injectionPhrases are phrase-level prompt-injection attempts to strip,
// directly grounded on the teacher's pkg/rag/sanitize.go sanitizeInput
// (itself a "direct port from legacy pkg/context/sanitize.go"): role
// markers, instruction-override phrases, and delimiter-break attempts.
var injectionPhrases = []string{
	"SYSTEM:", "System:", "system:",
	"ASSISTANT:", "Assistant:", "assistant:",
	"USER:", "User:", "user:",
	"Ignore previous instructions", "ignore previous instructions",
	"Ignore all previous", "ignore all previous",
	"Disregard previous", "disregard previous",
	"---", "===", "***", "```",
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	ccPattern    = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
)

// GuardrailResult reports what the pre/post-LLM security check found.
type GuardrailResult struct {
	Sanitized   string
	Flagged     bool
	FlagReasons []string
	PIIRedacted bool
}

// checkQuery runs the Phase R2 pre-check: strips prompt-injection
// patterns and redacts obvious PII from the incoming query. It never
// hard-fails on its own; a hard failure is reserved for callers that
// want to reject queries which are nothing but injection attempts (see
// the Phase R2 step in Orchestrator.run).
func checkQuery(raw string) GuardrailResult {
	sanitized := raw
	var reasons []string

	for _, phrase := range injectionPhrases {
		if strings.Contains(sanitized, phrase) {
			reasons = append(reasons, "prompt_injection_pattern")
			sanitized = strings.ReplaceAll(sanitized, phrase, "")
		}
	}
	sanitized = strings.TrimSpace(sanitized)

	redacted := false
	if emailPattern.MatchString(sanitized) {
		sanitized = emailPattern.ReplaceAllString(sanitized, "[redacted-email]")
		redacted = true
	}
	if ssnPattern.MatchString(sanitized) {
		sanitized = ssnPattern.ReplaceAllString(sanitized, "[redacted-ssn]")
		redacted = true
	}
	if ccPattern.MatchString(sanitized) {
		sanitized = ccPattern.ReplaceAllString(sanitized, "[redacted-card]")
		redacted = true
	}

	return GuardrailResult{
		Sanitized:   sanitized,
		Flagged:     len(reasons) > 0,
		FlagReasons: reasons,
		PIIRedacted: redacted,
	}
}

// checkOutgoing runs the Phase R5 post-check: redacts PII from the
// assistant's final answer before it is persisted/streamed further.
// Returns the possibly-rewritten text and whether a rewrite occurred.
func checkOutgoing(text string) (string, bool) {
	rewritten := text
	changed := false
	if emailPattern.MatchString(rewritten) {
		rewritten = emailPattern.ReplaceAllString(rewritten, "[redacted-email]")
		changed = true
	}
	if ssnPattern.MatchString(rewritten) {
		rewritten = ssnPattern.ReplaceAllString(rewritten, "[redacted-ssn]")
		changed = true
	}
	return rewritten, changed
}
