package sourcing

import (
	"github.com/randalmurphal/procura/pkg/pipeline"
)

// Stage names used in the turn pipeline.
const (
	StageGuardrails = "guardrails"
	StageIntent     = "intent"
	StageMemory     = "memory"
	StageSearch     = "search"
	StageCompliance = "compliance"
	StageComparison = "comparison"
	StageRisk       = "risk"
	StageExpertise  = "expertise"
	StageHITL       = "hitl"
	StageRespond    = "respond"
	StageDegrade    = "degrade"
	StageEvaluate   = "evaluate"
)

// routeApproval sends flagged turns through human review before any
// response is generated.
func routeApproval(_ pipeline.Context, state State) string {
	if state.RequiresHumanApproval {
		return StageHITL
	}
	return StageRespond
}

// routeAfterIntent picks the domain branch for the classified intent.
// Intents without domain work go straight to approval routing.
func routeAfterIntent(ctx pipeline.Context, state State) string {
	switch state.Intent {
	case IntentTechnicalQuestion:
		return StageExpertise
	case IntentSupplierSearch, IntentSupplierComparison, IntentRiskAssessment, IntentITARSensitive:
		return StageMemory
	default:
		// blocked, greeting, clarification, unknown
		return routeApproval(ctx, state)
	}
}

// routeAfterSearch branches comparison turns to the side-by-side stage;
// everything else goes through compliance checking.
func routeAfterSearch(_ pipeline.Context, state State) string {
	if state.Intent == IntentSupplierComparison {
		return StageComparison
	}
	return StageCompliance
}

// routeAfterRespond runs degradation only when a prior stage failed,
// then evaluation.
func routeAfterRespond(_ pipeline.Context, state State) string {
	if len(state.FailedStages()) > 0 {
		return StageDegrade
	}
	return StageEvaluate
}

// BuildPipeline wires the full turn pipeline. Stages never call each
// other; these routers decide all sequencing.
//
//	guardrails -> intent -> [domain branch] -> (hitl?) -> respond
//	           -> (degrade?) -> evaluate -> End
func BuildPipeline(deps Deps) (*pipeline.CompiledPipeline[State], error) {
	p := pipeline.New[State]().
		AddStage(StageGuardrails, GuardrailsStage()).
		AddStage(StageIntent, IntentStage(deps)).
		AddStage(StageMemory, MemoryStage()).
		AddStage(StageSearch, SearchStage(deps)).
		AddStage(StageCompliance, ComplianceStage(deps)).
		AddStage(StageComparison, ComparisonStage(deps)).
		AddStage(StageRisk, RiskStage(deps)).
		AddStage(StageExpertise, ExpertiseStage(deps)).
		AddStage(StageHITL, HITLStage(deps.Config)).
		AddStage(StageRespond, RespondStage(deps)).
		AddStage(StageDegrade, DegradeStage()).
		AddStage(StageEvaluate, EvaluateStage(deps)).
		SetEntry(StageGuardrails).
		AddTransition(StageGuardrails, StageIntent).
		AddConditional(StageIntent, routeAfterIntent).
		AddTransition(StageMemory, StageSearch).
		AddConditional(StageSearch, routeAfterSearch).
		AddTransition(StageCompliance, StageRisk).
		AddTransition(StageComparison, StageRisk).
		AddConditional(StageRisk, routeApproval).
		AddConditional(StageExpertise, routeApproval).
		AddTransition(StageHITL, StageRespond).
		AddConditional(StageRespond, routeAfterRespond).
		AddTransition(StageDegrade, StageEvaluate).
		AddTransition(StageEvaluate, pipeline.End)

	return p.Compile()
}
