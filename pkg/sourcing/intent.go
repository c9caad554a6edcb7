package sourcing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/procura/pkg/llm"
	"github.com/randalmurphal/procura/pkg/pipeline"
)

const intentSystemPrompt = `You classify procurement-assistant requests.
Reply with a single JSON object: {"intent": "<label>", "confidence": <0..1>}.
Valid labels: supplier_search, supplier_comparison, risk_assessment,
technical_question, clarification, greeting, itar_sensitive, unknown.`

// intentVerdict is the judge's reply shape.
type intentVerdict struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

var validIntents = map[Intent]bool{
	IntentSupplierSearch:     true,
	IntentSupplierComparison: true,
	IntentRiskAssessment:     true,
	IntentTechnicalQuestion:  true,
	IntentClarification:      true,
	IntentGreeting:           true,
	IntentITARSensitive:      true,
	IntentUnknown:            true,
}

// IntentStage classifies the latest user utterance into the closed
// intent set with a confidence. The provider chain does the
// classification; a keyword heuristic takes over when every backend is
// exhausted. Low confidence is one of the human-approval triggers.
func IntentStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		// Guardrails already decided this turn.
		if state.Intent == IntentBlocked {
			return state.RecordOutput("intent", AgentOutput{
				Success:        true,
				Data:           map[string]any{"intent": string(IntentBlocked), "forced": true},
				Confidence:     1.0,
				ProcessingTime: time.Since(start),
			}), nil
		}

		text := state.LastUserMessage()
		intent, confidence, source := classifyIntent(ctx, deps, state, text)

		// Export-control input dominates whatever the classifier said.
		if state.ITARFlagged {
			intent = IntentITARSensitive
			confidence = 1.0
		}

		state.Intent = intent
		state.IntentConfidence = confidence
		state = extractEntities(state, text)

		if confidence < deps.Config.ConfidenceThreshold && !state.RequiresHumanApproval {
			state.RequiresHumanApproval = true
			ctx.Logger().Info("low classification confidence, flagging for review",
				"intent", string(intent), "confidence", confidence)
		}

		return state.RecordOutput("intent", AgentOutput{
			Success:        true,
			Data:           map[string]any{"intent": string(intent), "source": source},
			Confidence:     confidence,
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// classifyIntent asks the provider chain for a verdict and falls back
// to keywords when no backend answers. Returns the intent, confidence,
// and which classifier produced them.
func classifyIntent(ctx pipeline.Context, deps Deps, state State, text string) (Intent, float64, string) {
	if text == "" {
		return IntentUnknown, 0, "empty"
	}

	if deps.LLM != nil {
		messages := []llm.Message{{Role: llm.RoleSystem, Content: intentSystemPrompt}}
		// Prior turns give the judge context for follow-up utterances.
		messages = append(messages, state.Messages...)

		resp, err := deps.LLM.Generate(ctx, messages, llm.GenerationConfig{Temperature: 0})
		if err == nil {
			if intent, confidence, ok := parseIntentVerdict(resp.Content); ok {
				return intent, confidence, "llm"
			}
			ctx.Logger().Warn("unparsable intent verdict, using keyword fallback",
				"content", resp.Content)
		} else {
			ctx.Logger().Warn("intent classification call failed, using keyword fallback",
				"error", err)
		}
	}

	intent, confidence := keywordIntent(text)
	return intent, confidence, "keyword"
}

// parseIntentVerdict extracts the JSON verdict from judge output that
// may carry surrounding prose.
func parseIntentVerdict(content string) (Intent, float64, bool) {
	open := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if open < 0 || end <= open {
		return IntentUnknown, 0, false
	}

	var verdict intentVerdict
	if err := json.Unmarshal([]byte(content[open:end+1]), &verdict); err != nil {
		return IntentUnknown, 0, false
	}

	intent := Intent(verdict.Intent)
	if !validIntents[intent] {
		return IntentUnknown, 0, false
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return IntentUnknown, 0, false
	}
	return intent, verdict.Confidence, true
}

// keywordIntent is the heuristic classifier used when no provider is
// reachable. Confidence is deliberately modest.
func keywordIntent(text string) (Intent, float64) {
	t := strings.ToLower(text)
	switch {
	case len(checkExportControl(t)) > 0:
		return IntentITARSensitive, 0.8
	case containsAny(t, "compare", " vs ", "versus", "side by side"):
		return IntentSupplierComparison, 0.6
	case containsAny(t, "risk", "reliab", "financial health", "stability"):
		return IntentRiskAssessment, 0.6
	case containsAny(t, "find", "search", "supplier", "vendor", "source", "quote"):
		return IntentSupplierSearch, 0.6
	case containsAny(t, "hello", "hi ", "hey", "good morning", "good afternoon"):
		return IntentGreeting, 0.7
	case containsAny(t, "how ", "what ", "why ", "explain", "process", "?"):
		return IntentTechnicalQuestion, 0.5
	case containsAny(t, "mean", "clarify", "rephrase"):
		return IntentClarification, 0.5
	default:
		return IntentUnknown, 0.3
	}
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// extractEntities pulls query slots out of the utterance. Existing
// entities (carried across turns by the session store) are preserved.
func extractEntities(state State, text string) State {
	if state.Entities == nil {
		state.Entities = make(map[string]string)
	}
	t := strings.ToLower(text)

	for _, category := range []string{"electronics", "machining", "fasteners", "castings", "pcb", "aerospace", "packaging"} {
		if strings.Contains(t, category) {
			state.Entities["category"] = category
			break
		}
	}
	for _, region := range []string{"north america", "europe", "asia", "domestic"} {
		if strings.Contains(t, region) {
			state.Entities["region"] = region
			break
		}
	}
	for _, cert := range []string{"iso 9001", "as9100", "itar registered", "iso 13485"} {
		if strings.Contains(t, cert) {
			state.Entities["certification"] = cert
			break
		}
	}
	return state
}

// String returns the intent label.
func (i Intent) String() string { return string(i) }

// ParseIntent validates a label against the closed set.
func ParseIntent(label string) (Intent, error) {
	intent := Intent(label)
	if intent == IntentBlocked || validIntents[intent] {
		return intent, nil
	}
	return IntentUnknown, fmt.Errorf("unrecognized intent label: %q", label)
}
