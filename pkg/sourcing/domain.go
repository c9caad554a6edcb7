package sourcing

import (
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/procura/pkg/llm"
	"github.com/randalmurphal/procura/pkg/pipeline"
)

// Domain stages are pure transformations over State plus calls to the
// storage collaborator or the provider chain. Their failures are
// recorded in AgentOutputs and never abort the turn; the degrade stage
// discloses them later.

// MemoryStage folds prior-turn context into the entity map so follow-up
// utterances inherit the slots established earlier in the session.
func MemoryStage() pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		if state.Entities == nil {
			state.Entities = make(map[string]string)
		}

		// Earlier turns left their slots in Entities (the session store
		// carries them); earlier supplier results anchor follow-ups like
		// "compare those two".
		carried := 0
		if len(state.Suppliers) > 0 {
			ids := make([]string, 0, len(state.Suppliers))
			for _, s := range state.Suppliers {
				ids = append(ids, s.ID)
			}
			if _, ok := state.Entities["prior_suppliers"]; !ok {
				state.Entities["prior_suppliers"] = strings.Join(ids, ",")
				carried++
			}
		}

		return state.RecordOutput("memory", AgentOutput{
			Success:        true,
			Data:           map[string]any{"entities": len(state.Entities), "carried": carried},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// SearchStage queries the supplier store with filters derived from the
// extracted entities and appends the hits to State.Suppliers.
func SearchStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		filters := SearchFilters{
			Category: state.Entities["category"],
			Region:   state.Entities["region"],
			Limit:    10,
		}
		if cert := state.Entities["certification"]; cert != "" {
			filters.Certifications = []string{cert}
		}
		if filters.Category == "" && filters.Region == "" && len(filters.Certifications) == 0 {
			filters.Query = state.LastUserMessage()
		}

		suppliers, err := deps.Suppliers.SearchSuppliers(ctx, filters)
		if err != nil {
			ctx.Logger().Error("supplier search failed", "error", err)
			return state.RecordOutput("search", AgentOutput{
				Error:          fmt.Sprintf("supplier search: %v", err),
				ProcessingTime: time.Since(start),
			}), nil
		}

		state.Suppliers = append(state.Suppliers, suppliers...)
		return state.RecordOutput("search", AgentOutput{
			Success:        true,
			Data:           map[string]any{"matches": len(suppliers)},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// ComplianceStage checks each found supplier against the required
// certifications and appends one ComplianceResult per supplier,
// aligned by id. Export-control sensitive turns additionally demand an
// ITAR registration.
func ComplianceStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		var required []string
		if cert := state.Entities["certification"]; cert != "" {
			required = append(required, cert)
		}
		if state.ITARFlagged {
			required = append(required, "itar registered")
		}

		compliant := 0
		for _, s := range state.Suppliers {
			result := ComplianceResult{
				SupplierID:     s.ID,
				Compliant:      true,
				Certifications: s.Certifications,
			}
			for _, req := range required {
				if !containsFold(s.Certifications, req) {
					result.Compliant = false
					result.Issues = append(result.Issues, "missing certification: "+req)
				}
			}
			if result.Compliant {
				compliant++
			}
			state.ComplianceResults = append(state.ComplianceResults, result)
		}

		return state.RecordOutput("compliance", AgentOutput{
			Success: true,
			Data: map[string]any{
				"checked":   len(state.Suppliers),
				"compliant": compliant,
			},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// ComparisonStage asks the store for a side-by-side comparison of the
// found suppliers.
func ComparisonStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		if len(state.Suppliers) < 2 {
			return state.RecordOutput("comparison", AgentOutput{
				Error:          "need at least two suppliers to compare",
				ProcessingTime: time.Since(start),
			}), nil
		}

		ids := make([]string, 0, len(state.Suppliers))
		for _, s := range state.Suppliers {
			ids = append(ids, s.ID)
		}

		cmp, err := deps.Suppliers.CompareSuppliers(ctx, ids)
		if err != nil {
			ctx.Logger().Error("supplier comparison failed", "error", err)
			return state.RecordOutput("comparison", AgentOutput{
				Error:          fmt.Sprintf("supplier comparison: %v", err),
				ProcessingTime: time.Since(start),
			}), nil
		}

		state.ComparisonData = cmp
		return state.RecordOutput("comparison", AgentOutput{
			Success:        true,
			Data:           map[string]any{"compared": len(ids), "recommendation": cmp.Recommendation},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

// riskFor scores one supplier in [0,1], higher is riskier.
func riskFor(s Supplier) RiskResult {
	result := RiskResult{SupplierID: s.ID}

	// Low ratings dominate the score; thin certification coverage and
	// long lead times add smaller increments.
	result.Score = (5.0 - s.Rating) / 5.0 * 0.6
	if s.Rating < 3.0 {
		result.Factors = append(result.Factors, "low rating")
	}
	if len(s.Certifications) == 0 {
		result.Score += 0.2
		result.Factors = append(result.Factors, "no certifications on file")
	}
	if s.LeadTimeDays > 60 {
		result.Score += 0.2
		result.Factors = append(result.Factors, "long lead time")
	} else if s.LeadTimeDays > 30 {
		result.Score += 0.1
		result.Factors = append(result.Factors, "extended lead time")
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return result
}

// RiskStage scores each found supplier and appends aligned RiskResults.
// Any score at or above the approval threshold forces a human review.
func RiskStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		maxScore := 0.0
		for _, s := range state.Suppliers {
			result := riskFor(s)
			if result.Score > maxScore {
				maxScore = result.Score
			}
			state.RiskResults = append(state.RiskResults, result)
		}

		if maxScore >= deps.Config.RiskApprovalThreshold && !state.RequiresHumanApproval {
			state.RequiresHumanApproval = true
			ctx.Logger().Info("high-risk supplier found, flagging for review",
				"max_score", maxScore)
		}

		return state.RecordOutput("risk", AgentOutput{
			Success:        true,
			Data:           map[string]any{"scored": len(state.RiskResults), "max_score": maxScore},
			ProcessingTime: time.Since(start),
		}), nil
	}
}

const expertiseSystemPrompt = `You are a procurement process expert.
Answer the user's question about sourcing, supplier qualification,
compliance, or logistics concisely and practically.`

// ExpertiseStage answers technical process questions via the provider
// chain and stashes the answer for the respond stage.
func ExpertiseStage(deps Deps) pipeline.StageFunc[State] {
	return func(ctx pipeline.Context, state State) (State, error) {
		start := time.Now()

		if deps.LLM == nil {
			return state.RecordOutput("expertise", AgentOutput{
				Error:          "no provider configured",
				ProcessingTime: time.Since(start),
			}), nil
		}

		messages := []llm.Message{{Role: llm.RoleSystem, Content: expertiseSystemPrompt}}
		messages = append(messages, state.Messages...)

		resp, err := deps.LLM.Generate(ctx, messages, llm.GenerationConfig{})
		if err != nil {
			ctx.Logger().Error("expertise call failed", "error", err)
			return state.RecordOutput("expertise", AgentOutput{
				Error:          fmt.Sprintf("expertise: %v", err),
				ProcessingTime: time.Since(start),
			}), nil
		}

		return state.RecordOutput("expertise", AgentOutput{
			Success:        true,
			Data:           map[string]any{"answer": resp.Content, "model": resp.Model},
			ProcessingTime: time.Since(start),
		}), nil
	}
}
