package sourcing

import (
	"context"
	"math/rand"

	"github.com/randalmurphal/procura/pkg/llm"
)

// Generator is the slice of the provider layer the stages consume.
// *llm.Client satisfies it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerationConfig, preferred ...string) (*llm.Response, error)
}

// Config carries the tunable thresholds for a pipeline instance.
type Config struct {
	// ConfidenceThreshold is the classification confidence below which a
	// turn requires human approval.
	ConfidenceThreshold float64

	// RiskApprovalThreshold is the risk score at or above which a turn
	// requires human approval.
	RiskApprovalThreshold float64

	// UrgentRiskThreshold and HighRiskThreshold band the approval
	// priority for risk-triggered reviews.
	UrgentRiskThreshold float64
	HighRiskThreshold   float64

	// EvaluationRate is the fraction of turns scored post-hoc.
	EvaluationRate float64

	// Sample overrides the evaluation sampling decision. Nil means
	// draw against EvaluationRate; tests inject a deterministic func.
	Sample func() bool
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:   0.5,
		RiskApprovalThreshold: 0.7,
		UrgentRiskThreshold:   0.9,
		HighRiskThreshold:     0.75,
		EvaluationRate:        0.1,
	}
}

// shouldSample reports whether this turn gets evaluated.
func (c Config) shouldSample() bool {
	if c.Sample != nil {
		return c.Sample()
	}
	return rand.Float64() < c.EvaluationRate
}

// Deps bundles the collaborators the stages need.
type Deps struct {
	LLM       Generator
	Suppliers SupplierStore
	Config    Config
}
