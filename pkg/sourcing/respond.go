package sourcing

import (
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/procura/pkg/llm"
	"github.com/randalmurphal/procura/pkg/pipeline"
)

const respondSystemPrompt = `You are a procurement sourcing assistant.
Write the reply to the user using only the findings provided. Be
concrete: name suppliers, certifications, risk concerns, and the
recommendation when one exists. Do not invent data.`

// RespondStage synthesizes FinalResponse from the accumulated results.
// A turn always ends with a non-empty response: policy blocks and
// reviewer rejections get an explanation, empty results get guidance,
// and provider exhaustion falls back to a template.
func RespondStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		switch {
		case state.Intent == IntentBlocked:
			state.FinalResponse = "I can't process that request because it " +
				"conflicts with our usage policy. Please rephrase your " +
				"sourcing question and I'll be glad to help."
		case state.Err != "":
			state.FinalResponse = "This request was reviewed and could not be " +
				"approved. If you believe this is in error, contact your " +
				"compliance team. (" + state.Err + ")"
		case state.Intent == IntentGreeting:
			state.FinalResponse = "Hello! I can help you find suppliers, " +
				"compare vendors, assess supply risk, and answer sourcing " +
				"process questions. What are you looking for?"
		default:
			state.FinalResponse = synthesize(ctx, deps, state)
		}

		return state.RecordOutput("respond", AgentOutput{
			Success:        true,
			Data:           map[string]any{"length": len(state.FinalResponse)},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// synthesize produces the substantive answer, via the provider chain
// when one is reachable and a deterministic template otherwise.
func synthesize(ctx pipeline.Context, deps Deps, state State) string {
	findings := summarizeFindings(state)
	if findings == "" {
		return "I couldn't find any results matching your request. Try " +
			"broadening the category or region, or relaxing the " +
			"certification requirements, and I'll search again."
	}

	if deps.LLM != nil {
		messages := []llm.Message{
			{Role: llm.RoleSystem, Content: respondSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(
				"User request: %s\n\nFindings:\n%s", state.LastUserMessage(), findings)},
		}
		resp, err := deps.LLM.Generate(ctx, messages, llm.GenerationConfig{})
		if err == nil && strings.TrimSpace(resp.Content) != "" {
			return resp.Content
		}
		if err != nil {
			ctx.Logger().Warn("response synthesis call failed, using template",
				"error", err)
		}
	}

	return "Here's what I found:\n\n" + findings
}

// summarizeFindings renders the accumulated results as plain text,
// empty when no stage produced anything actionable.
func summarizeFindings(state State) string {
	var b strings.Builder

	if len(state.Suppliers) > 0 {
		riskByID := make(map[string]RiskResult, len(state.RiskResults))
		for _, r := range state.RiskResults {
			riskByID[r.SupplierID] = r
		}
		complianceByID := make(map[string]ComplianceResult, len(state.ComplianceResults))
		for _, c := range state.ComplianceResults {
			complianceByID[c.SupplierID] = c
		}

		fmt.Fprintf(&b, "Suppliers (%d):\n", len(state.Suppliers))
		for _, s := range state.Suppliers {
			fmt.Fprintf(&b, "- %s (%s), rating %.1f, lead time %d days",
				s.Name, s.Country, s.Rating, s.LeadTimeDays)
			if c, ok := complianceByID[s.ID]; ok && !c.Compliant {
				fmt.Fprintf(&b, "; compliance issues: %s", strings.Join(c.Issues, ", "))
			}
			if r, ok := riskByID[s.ID]; ok && len(r.Factors) > 0 {
				fmt.Fprintf(&b, "; risk %.2f (%s)", r.Score, strings.Join(r.Factors, ", "))
			}
			b.WriteString("\n")
		}
	}

	if state.ComparisonData != nil && state.ComparisonData.Recommendation != "" {
		fmt.Fprintf(&b, "\nRecommendation: %s\n", state.ComparisonData.Recommendation)
	}

	if out, ok := state.AgentOutputs["expertise"]; ok && out.Success {
		if answer, ok := out.Data["answer"].(string); ok && answer != "" {
			b.WriteString(answer)
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}
