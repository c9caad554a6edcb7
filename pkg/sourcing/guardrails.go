package sourcing

import (
	"regexp"
	"strings"
	"time"

	"github.com/randalmurphal/procura/pkg/pipeline"
)

// PII category patterns. Matching warns but never blocks a turn.
var piiPatterns = map[string]*regexp.Regexp{
	"government_id": regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"payment_card":  regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{4}\b`),
	"email":         regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
	"phone":         regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
}

// Prompt-injection patterns: override phrasing, role-spoof prefixes,
// embedded markup payloads.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(instructions|rules)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s`),
	regexp.MustCompile(`(?i)^\s*(system|assistant)\s*:`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`),
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`\{\{.*\}\}`),
}

// Export-control keywords. Word-bounded so "year" does not match "ear".
var exportControlPattern = regexp.MustCompile(
	`(?i)\b(itar|ear99|export[ -]controlled?|export\s+control|defense\s+articles?|munitions?|dual[ -]use|military\s+grade|weapons?\s+systems?)\b`)

// checkPII returns the set of PII categories found in text.
func checkPII(text string) []string {
	var categories []string
	for category, pattern := range piiPatterns {
		if pattern.MatchString(text) {
			categories = append(categories, category)
		}
	}
	return categories
}

// checkInjection reports whether text carries prompt-injection phrasing.
func checkInjection(text string) bool {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// checkExportControl returns the export-control terms matched in text,
// lowercased and deduplicated.
func checkExportControl(text string) []string {
	matches := exportControlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var terms []string
	for _, m := range matches {
		term := strings.ToLower(m)
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	return terms
}

// GuardrailsStage gates unsafe or out-of-policy input before any model
// or domain call runs. Injection blocks the turn; PII warns; export-
// control terms force human approval. An empty message list passes
// through untouched.
func GuardrailsStage() pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		text := state.LastUserMessage()
		if text == "" {
			state.GuardrailsPassed = true
			return state.RecordOutput("guardrails", AgentOutput{
				Success:        true,
				Data:           map[string]any{"skipped": "no user message"},
				ProcessingTime: time.Since(start),
			}), nil
		}

		state.PIICategories = checkPII(text)
		state.PIIDetected = len(state.PIICategories) > 0
		if state.PIIDetected {
			ctx.Logger().Warn("pii detected in user message",
				"categories", state.PIICategories)
		}

		state.ITARTerms = checkExportControl(text)
		if len(state.ITARTerms) > 0 {
			state.ITARFlagged = true
			state.RequiresHumanApproval = true
			ctx.Logger().Info("export-control terms detected",
				"terms", state.ITARTerms)
		}

		if checkInjection(text) {
			state.GuardrailsPassed = false
			state.Intent = IntentBlocked
			ctx.Logger().Warn("prompt injection detected, blocking turn")
			return state.RecordOutput("guardrails", AgentOutput{
				Success:        true,
				Data:           map[string]any{"blocked": true, "reason": "injection"},
				ProcessingTime: time.Since(start),
			}), nil
		}

		state.GuardrailsPassed = true
		return state.RecordOutput("guardrails", AgentOutput{
			Success: true,
			Data: map[string]any{
				"pii_detected": state.PIIDetected,
				"itar_flagged": state.ITARFlagged,
			},
			ProcessingTime: time.Since(start),
		}), nil
	}
}
