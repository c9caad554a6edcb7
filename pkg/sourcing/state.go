package sourcing

import (
	"time"

	"github.com/randalmurphal/procura/pkg/llm"
)

// Intent is the closed classification of a user utterance.
type Intent string

// Recognized intents. The classifier sets exactly one per turn;
// guardrails may override it to IntentBlocked.
const (
	IntentSupplierSearch     Intent = "supplier_search"
	IntentSupplierComparison Intent = "supplier_comparison"
	IntentRiskAssessment     Intent = "risk_assessment"
	IntentTechnicalQuestion  Intent = "technical_question"
	IntentClarification      Intent = "clarification"
	IntentGreeting           Intent = "greeting"
	IntentITARSensitive      Intent = "itar_sensitive"
	IntentBlocked            Intent = "blocked"
	IntentUnknown            Intent = "unknown"
)

// Approval trigger reasons, in precedence order.
const (
	TriggerITARDecision  = "itar_decision"
	TriggerHighRisk      = "high_risk"
	TriggerLowConfidence = "low_confidence"
)

// Approval priority levels.
const (
	PriorityCritical = "critical"
	PriorityUrgent   = "urgent"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
)

// Decision actions a reviewer can take on a paused turn.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionModify  = "modify"
)

// Decision is the reviewer's verdict attached to a paused turn.
type Decision struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
	// EntityOverrides is merged into State.Entities on a modify decision.
	EntityOverrides map[string]string `json:"entity_overrides,omitempty"`
}

// AgentOutput records one stage's execution for auditing and
// degradation detection.
type AgentOutput struct {
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Confidence     float64        `json:"confidence,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time"`
}

// Evaluation is the sampled post-hoc quality score for a turn.
// Dimensions and Overall are on a 0-100 scale.
type Evaluation struct {
	Dimensions map[string]float64 `json:"dimensions"`
	Overall    float64            `json:"overall"`
}

// State is the single conversation record threaded through every stage.
// One instance per turn; the session store persists it across turns.
// It is JSON-serializable so paused turns survive checkpointing.
type State struct {
	SessionID string        `json:"session_id"`
	Messages  []llm.Message `json:"messages"`

	Intent           Intent            `json:"intent,omitempty"`
	IntentConfidence float64           `json:"intent_confidence,omitempty"`
	Entities         map[string]string `json:"entities,omitempty"`

	Suppliers         []Supplier         `json:"suppliers,omitempty"`
	ComplianceResults []ComplianceResult `json:"compliance_results,omitempty"`
	RiskResults       []RiskResult       `json:"risk_results,omitempty"`
	ComparisonData    *Comparison        `json:"comparison_data,omitempty"`

	GuardrailsPassed      bool      `json:"guardrails_passed"`
	PIIDetected           bool      `json:"pii_detected"`
	PIICategories         []string  `json:"pii_categories,omitempty"`
	ITARFlagged           bool      `json:"itar_flagged"`
	ITARTerms             []string  `json:"itar_terms,omitempty"`
	RequiresHumanApproval bool      `json:"requires_human_approval"`
	ApprovalTrigger       string    `json:"approval_trigger,omitempty"`
	ApprovalPriority      string    `json:"approval_priority,omitempty"`
	HITLDecision          *Decision `json:"hitl_decision,omitempty"`

	AgentOutputs map[string]AgentOutput `json:"agent_outputs,omitempty"`

	DegradedMode    bool        `json:"degraded_mode"`
	EvaluationScore *Evaluation `json:"evaluation_score,omitempty"`
	FinalResponse   string      `json:"final_response,omitempty"`
	Err             string      `json:"error,omitempty"`
}

// NewState creates a turn state bound to a session.
func NewState(sessionID string) State {
	return State{
		SessionID:    sessionID,
		Entities:     make(map[string]string),
		AgentOutputs: make(map[string]AgentOutput),
	}
}

// AppendMessage appends an utterance. Messages are append-only within
// a turn.
func (s State) AppendMessage(role llm.Role, content string) State {
	s.Messages = append(s.Messages, llm.Message{Role: role, Content: content})
	return s
}

// LastUserMessage returns the most recent user utterance, or "" when
// the turn has none.
func (s State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// RecordOutput records a stage execution. Outputs are append-only:
// stages only add entries, one per stage name.
func (s State) RecordOutput(stage string, out AgentOutput) State {
	outputs := make(map[string]AgentOutput, len(s.AgentOutputs)+1)
	for k, v := range s.AgentOutputs {
		outputs[k] = v
	}
	outputs[stage] = out
	s.AgentOutputs = outputs
	return s
}

// FailedStages returns the names of stages that recorded a failure,
// in no particular order.
func (s State) FailedStages() []string {
	var failed []string
	for name, out := range s.AgentOutputs {
		if !out.Success {
			failed = append(failed, name)
		}
	}
	return failed
}

// AgentsExecuted returns the names of stages that recorded output.
func (s State) AgentsExecuted() []string {
	names := make([]string, 0, len(s.AgentOutputs))
	for name := range s.AgentOutputs {
		names = append(names, name)
	}
	return names
}
