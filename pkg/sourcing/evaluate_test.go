package sourcing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluationWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range evaluationWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEvaluateStageSkippedWhenNotSampled(t *testing.T) {
	gen := &fakeLLM{content: "should not be called"}
	deps := testDeps(gen, nil)
	deps.Config.Sample = func() bool { return false }

	state, err := EvaluateStage(deps)(testCtx(), userTurn("q"))
	require.NoError(t, err)

	assert.Nil(t, state.EvaluationScore)
	assert.Equal(t, false, state.AgentOutputs["evaluate"].Data["sampled"])
	assert.Zero(t, gen.calls)
}

func TestEvaluateStageScoresSampledTurn(t *testing.T) {
	gen := &fakeLLM{content: `{"relevance": 90, "accuracy": 80, "completeness": 70, "clarity": 60, "actionability": 50, "safety": 100}`}
	deps := testDeps(gen, nil)
	deps.Config.Sample = func() bool { return true }

	state := userTurn("find suppliers")
	state.FinalResponse = "Here are three suppliers."

	state, err := EvaluateStage(deps)(testCtx(), state)
	require.NoError(t, err)

	require.NotNil(t, state.EvaluationScore)
	assert.Equal(t, 90.0, state.EvaluationScore.Dimensions["relevance"])
	// 90*.25 + 80*.25 + 70*.15 + 60*.15 + 50*.10 + 100*.10
	assert.InDelta(t, 77.0, state.EvaluationScore.Overall, 1e-9)
}

func TestEvaluateStageNeutralOnJudgeFailure(t *testing.T) {
	gen := &fakeLLM{err: errors.New("judge unreachable")}
	deps := testDeps(gen, nil)
	deps.Config.Sample = func() bool { return true }

	state, err := EvaluateStage(deps)(testCtx(), userTurn("q"))
	require.NoError(t, err)

	require.NotNil(t, state.EvaluationScore)
	assert.Equal(t, 50.0, state.EvaluationScore.Overall)
	for name, score := range state.EvaluationScore.Dimensions {
		assert.Equal(t, 50.0, score, name)
	}
}

func TestEvaluateStageNeutralOnUnparsableVerdict(t *testing.T) {
	gen := &fakeLLM{content: "pretty good answer I'd say"}
	deps := testDeps(gen, nil)
	deps.Config.Sample = func() bool { return true }

	state, err := EvaluateStage(deps)(testCtx(), userTurn("q"))
	require.NoError(t, err)

	require.NotNil(t, state.EvaluationScore)
	assert.Equal(t, 50.0, state.EvaluationScore.Overall)
	assert.Len(t, state.EvaluationScore.Dimensions, len(evaluationWeights))
}

func TestParseEvaluationRejectsPartialVerdicts(t *testing.T) {
	_, ok := parseEvaluation(`{"relevance": 90}`)
	assert.False(t, ok)

	_, ok = parseEvaluation(`{"relevance": 90, "accuracy": 120, "completeness": 70, "clarity": 60, "actionability": 50, "safety": 100}`)
	assert.False(t, ok)

	eval, ok := parseEvaluation(`judge says: {"relevance": 100, "accuracy": 100, "completeness": 100, "clarity": 100, "actionability": 100, "safety": 100} done`)
	require.True(t, ok)
	assert.Equal(t, 100.0, eval.Overall)
}
