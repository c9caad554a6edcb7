package sourcing

import (
	"sort"
	"strings"
	"time"

	"github.com/randalmurphal/procura/pkg/llm"
	"github.com/randalmurphal/procura/pkg/pipeline"
)

// Failure classes assigned by ClassifyFailure.
const (
	FailureTransient = "transient"
	FailurePermanent = "permanent"
	FailureUnknown   = "unknown"
)

var transientWording = []string{
	"timeout", "timed out", "connection", "temporarily", "retry",
	"unavailable", "rate limit", "overloaded", "too many requests",
}

var permanentWording = []string{
	"authentication", "unauthorized", "forbidden", "permission",
	"not found", "invalid credential", "api key",
}

// ClassifyFailure tags a failure message by its wording. Transient
// failures are worth retrying later; permanent ones are configuration
// or policy defects.
func ClassifyFailure(message string) string {
	m := strings.ToLower(message)
	for _, w := range transientWording {
		if strings.Contains(m, w) {
			return FailureTransient
		}
	}
	for _, w := range permanentWording {
		if strings.Contains(m, w) {
			return FailurePermanent
		}
	}
	return FailureUnknown
}

const degradedDisclosure = "Note: some data sources were unavailable, so this answer may be incomplete."

// DegradeStage turns partial failures into an honestly-labeled
// response. When prior stages recorded failures it marks the turn
// degraded and prepends an incompleteness disclosure to whatever
// content already exists, synthesizing an apology when nothing does.
// Per-service circuit breakers are consulted so repeatedly failing
// dependencies are noted.
func DegradeStage() pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		failed := state.FailedStages()
		if len(failed) == 0 {
			return state, nil
		}
		sort.Strings(failed)

		classes := make(map[string]string, len(failed))
		for _, name := range failed {
			class := ClassifyFailure(state.AgentOutputs[name].Error)
			classes[name] = class

			breaker := llm.BreakerFor(name)
			if class == FailureTransient {
				breaker.RecordFailure()
			}
			if !breaker.CanExecute() {
				ctx.Logger().Warn("dependency circuit open",
					"service", name, "state", breaker.State())
			}
		}

		state.DegradedMode = true
		if strings.TrimSpace(state.FinalResponse) == "" {
			state.FinalResponse = "I'm sorry, I wasn't able to complete your " +
				"request because some of my data sources are unavailable. " +
				"Please try again shortly."
		} else {
			state.FinalResponse = degradedDisclosure + "\n\n" + state.FinalResponse
		}

		ctx.Logger().Info("turn degraded",
			"failed_stages", failed)

		return state.RecordOutput("degrade", AgentOutput{
			Success: true,
			Data: map[string]any{
				"failed_stages":   failed,
				"classifications": classes,
			},
			ProcessingTime: time.Since(start),
		}), nil
	}
}
