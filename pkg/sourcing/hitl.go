package sourcing

import (
	"time"

	"github.com/randalmurphal/procura/pkg/pipeline"
)

// determineTrigger resolves the review reason and priority by fixed
// precedence: export control beats high risk beats low confidence.
func determineTrigger(state State, cfg Config) (trigger, priority string) {
	if state.ITARFlagged {
		return TriggerITARDecision, PriorityCritical
	}

	maxRisk := 0.0
	for _, r := range state.RiskResults {
		if r.Score > maxRisk {
			maxRisk = r.Score
		}
	}
	if maxRisk >= cfg.RiskApprovalThreshold {
		switch {
		case maxRisk >= cfg.UrgentRiskThreshold:
			return TriggerHighRisk, PriorityUrgent
		case maxRisk >= cfg.HighRiskThreshold:
			return TriggerHighRisk, PriorityHigh
		default:
			return TriggerHighRisk, PriorityNormal
		}
	}

	return TriggerLowConfidence, PriorityNormal
}

// HITLStage pauses turns that need a human decision. Without an
// attached decision it raises a pipeline interrupt; the run is
// checkpointed and resumed once a reviewer verdict is attached to the
// state. With a decision attached it applies it: approve clears the
// approval flag, reject ends the turn with a terminal error, modify
// merges the reviewer's entity overrides and clears the flag.
// Decision application is idempotent.
func HITLStage(cfg Config) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		if !state.RequiresHumanApproval && state.HITLDecision == nil {
			return state, nil
		}

		if state.ApprovalTrigger == "" {
			state.ApprovalTrigger, state.ApprovalPriority = determineTrigger(state, cfg)
		}

		if state.HITLDecision == nil {
			ctx.Logger().Info("turn paused for human review",
				"trigger", state.ApprovalTrigger,
				"priority", state.ApprovalPriority)
			return state, &pipeline.InterruptError{
				StageID: "hitl",
				RunID:   ctx.RunID(),
				Reason:  state.ApprovalTrigger,
			}
		}

		decision := state.HITLDecision
		switch decision.Action {
		case DecisionApprove:
			state.RequiresHumanApproval = false
		case DecisionReject:
			state.RequiresHumanApproval = false
			state.Err = "request rejected by reviewer"
			if decision.Note != "" {
				state.Err = "request rejected by reviewer: " + decision.Note
			}
		case DecisionModify:
			if state.Entities == nil {
				state.Entities = make(map[string]string)
			}
			for k, v := range decision.EntityOverrides {
				state.Entities[k] = v
			}
			state.RequiresHumanApproval = false
		default:
			ctx.Logger().Warn("unrecognized review action, leaving turn flagged",
				"action", decision.Action)
			return state.RecordOutput("hitl", AgentOutput{
				Error:          "unrecognized review action: " + decision.Action,
				ProcessingTime: time.Since(start),
			}), nil
		}

		ctx.Logger().Info("review decision applied",
			"action", decision.Action,
			"trigger", state.ApprovalTrigger)

		return state.RecordOutput("hitl", AgentOutput{
			Success: true,
			Data: map[string]any{
				"action":   decision.Action,
				"trigger":  state.ApprovalTrigger,
				"priority": state.ApprovalPriority,
			},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// AttachDecision returns a state-override function for
// pipeline.Resume that attaches a reviewer decision to the paused
// state.
func AttachDecision(decision Decision) func(any) any {
	return func(raw any) any {
		state, ok := raw.(State)
		if !ok {
			return raw
		}
		state.HITLDecision = &decision
		return state
	}
}
