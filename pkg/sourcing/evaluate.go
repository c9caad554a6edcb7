package sourcing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/procura/pkg/llm"
	"github.com/randalmurphal/procura/pkg/pipeline"
)

// evaluationWeights must sum to 1.0.
var evaluationWeights = map[string]float64{
	"relevance":     0.25,
	"accuracy":      0.25,
	"completeness":  0.15,
	"clarity":       0.15,
	"actionability": 0.10,
	"safety":        0.10,
}

const neutralScore = 50.0

const evaluateSystemPrompt = `You grade procurement-assistant answers.
Score the answer 0-100 on each dimension and reply with a single JSON
object: {"relevance": N, "accuracy": N, "completeness": N, "clarity": N,
"actionability": N, "safety": N}.`

// neutralEvaluation is the substitute when the judge fails or returns
// something unparsable.
func neutralEvaluation() *Evaluation {
	dims := make(map[string]float64, len(evaluationWeights))
	for name := range evaluationWeights {
		dims[name] = neutralScore
	}
	return &Evaluation{Dimensions: dims, Overall: neutralScore}
}

// parseEvaluation extracts dimension scores from judge output and
// computes the weighted overall. Missing or out-of-range dimensions
// make the whole verdict unparsable.
func parseEvaluation(content string) (*Evaluation, bool) {
	open := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if open < 0 || end <= open {
		return nil, false
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(content[open:end+1]), &raw); err != nil {
		return nil, false
	}

	eval := &Evaluation{Dimensions: make(map[string]float64, len(evaluationWeights))}
	for name, weight := range evaluationWeights {
		score, ok := raw[name]
		if !ok || score < 0 || score > 100 {
			return nil, false
		}
		eval.Dimensions[name] = score
		eval.Overall += score * weight
	}
	return eval, true
}

// EvaluateStage is the sampled post-hoc scorer. The sampling decision
// comes from Config (injectable for deterministic tests); sampled turns
// get a judge call scoring the weighted dimensions, and a failed or
// unparsable judge yields the fixed neutral score instead of failing
// the turn.
func EvaluateStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		if !deps.Config.shouldSample() {
			return state.RecordOutput("evaluate", AgentOutput{
				Success:        true,
				Data:           map[string]any{"sampled": false},
				ProcessingTime: time.Since(start),
			}), nil
		}

		state.EvaluationScore = judge(ctx, deps, state)

		return state.RecordOutput("evaluate", AgentOutput{
			Success: true,
			Data: map[string]any{
				"sampled": true,
				"overall": state.EvaluationScore.Overall,
			},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

func judge(ctx pipeline.Context, deps Deps, state State) *Evaluation {
	if deps.LLM == nil {
		return neutralEvaluation()
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: evaluateSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Question: %s\n\nAnswer: %s", state.LastUserMessage(), state.FinalResponse)},
	}

	resp, err := deps.LLM.Generate(ctx, messages, llm.GenerationConfig{Temperature: 0})
	if err != nil {
		ctx.Logger().Warn("judge call failed, using neutral score", "error", err)
		return neutralEvaluation()
	}

	eval, ok := parseEvaluation(resp.Content)
	if !ok {
		ctx.Logger().Warn("unparsable judge verdict, using neutral score",
			"content", resp.Content)
		return neutralEvaluation()
	}
	return eval
}
