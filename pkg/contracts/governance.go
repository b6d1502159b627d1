// Package contracts defines the shared data contracts of the Sentinel review
// console: the canonical GovernanceResult produced by the coordinator pipeline
// and the AuditEntry records kept in the ledger.
package contracts

import (
	"encoding/json"
	"fmt"
)

// Decision is the coordinator's final verdict for a submitted task.
type Decision string

// Decision constants.
const (
	DecisionApprove               Decision = "APPROVE"
	DecisionApproveWithConditions Decision = "APPROVE_WITH_CONDITIONS"
	DecisionModify                Decision = "MODIFY"
	DecisionBlock                 Decision = "BLOCK"
	DecisionClarify               Decision = "CLARIFY"
)

// Decisions lists all valid decisions in display order.
var Decisions = []Decision{
	DecisionApprove,
	DecisionApproveWithConditions,
	DecisionModify,
	DecisionBlock,
	DecisionClarify,
}

// Valid reports whether d is one of the five known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionApproveWithConditions, DecisionModify, DecisionBlock, DecisionClarify:
		return true
	}
	return false
}

// Severity is the ordinal risk bucket attached to a risk evaluation.
type Severity string

// Severity constants.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists all severity levels in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Complexity categorizes the submitted task.
type Complexity string

// Complexity constants.
const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// GovernanceResult is the canonical, validated verdict for one submission.
// Field names follow the coordinator's wire format.
type GovernanceResult struct {
	WorkflowStatus     string          `json:"workflow_status"`
	FinalDecision      Decision        `json:"final_decision"`
	TaskOverview       TaskOverview    `json:"task_overview"`
	ExecutionPlan      ExecutionPlan   `json:"execution_plan"`
	RiskEvaluation     RiskEvaluation  `json:"risk_evaluation"`
	WorkflowTimeline   []TimelineEvent `json:"workflow_timeline"`
	NextSteps          string          `json:"next_steps"`
	ReplanningCount    int             `json:"replanning_count"`
	UserActionRequired *string         `json:"user_action_required,omitempty"`
}

// TaskOverview describes the task as understood by the pipeline.
type TaskOverview struct {
	OriginalTask    string     `json:"original_task"`
	TaskCategory    string     `json:"task_category"`
	ComplexityLevel Complexity `json:"complexity_level"`
}

// ExecutionPlan is the worker agent's proposed plan.
type ExecutionPlan struct {
	PlanVersion       int             `json:"plan_version"`
	TaskSummary       string          `json:"task_summary"`
	ExecutionSteps    []ExecutionStep `json:"execution_steps"`
	ResourcesRequired []string        `json:"resources_required"`
	EstimatedDuration string          `json:"estimated_duration"`
}

// RiskBreakdown carries the five fixed sub-scores, each in [0,10].
type RiskBreakdown struct {
	SafetyScore          float64 `json:"safety_score"`
	IrreversibilityScore float64 `json:"irreversibility_score"`
	EthicsScore          float64 `json:"ethics_score"`
	FinancialScore       float64 `json:"financial_score"`
	ReputationScore      float64 `json:"reputation_score"`
}

// RiskEvaluation is the sentinel agent's risk verdict.
type RiskEvaluation struct {
	Decision               string        `json:"decision"`
	OverallRiskScore       float64       `json:"overall_risk_score"`
	SeverityLevel          Severity      `json:"severity_level"`
	RiskBreakdown          RiskBreakdown `json:"risk_breakdown"`
	EvaluationSummary      string        `json:"evaluation_summary"`
	SpecificConcerns       []string      `json:"specific_concerns,omitempty"`
	ModificationGuidance   *string       `json:"modification_guidance,omitempty"`
	BlockedReasons         []string      `json:"blocked_reasons,omitempty"`
	ClarificationRequests  *string       `json:"clarification_requests,omitempty"`
	ApprovedWithConditions *string       `json:"approved_with_conditions,omitempty"`
}

// TimelineEvent is one chronological stage of the pipeline run.
// The timeline is append-only upstream; the console never reorders it.
type TimelineEvent struct {
	Stage   string `json:"stage"`
	Agent   string `json:"agent"`
	Outcome string `json:"outcome"`
}

// StructuredStep is the object form of an execution step.
type StructuredStep struct {
	StepNumber      int    `json:"step_number,omitempty"`
	Action          string `json:"action"`
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
	Considerations  string `json:"considerations,omitempty"`
}

// ExecutionStep is a tagged union: the coordinator emits steps either as bare
// strings or as structured objects, and both forms are preserved as-is.
// Exactly one of Text/Structured is set.
type ExecutionStep struct {
	Text       string
	Structured *StructuredStep
}

// IsStructured reports whether the step carries the object form.
func (s ExecutionStep) IsStructured() bool { return s.Structured != nil }

// Action returns the step's action text regardless of form.
func (s ExecutionStep) Action() string {
	if s.Structured != nil {
		return s.Structured.Action
	}
	return s.Text
}

// ResolvedNumber returns the step number to display for the step at position
// idx (0-based). A structured step without an explicit number, and any plain
// step, is numbered positionally (1-based). The normalizer never fills
// numbers; consumers resolve them at render time.
func (s ExecutionStep) ResolvedNumber(idx int) int {
	if s.Structured != nil && s.Structured.StepNumber > 0 {
		return s.Structured.StepNumber
	}
	return idx + 1
}

// UnmarshalJSON accepts either a JSON string or a structured step object.
func (s *ExecutionStep) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = ExecutionStep{Text: text}
		return nil
	}
	var obj StructuredStep
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("execution step is neither string nor object: %w", err)
	}
	*s = ExecutionStep{Structured: &obj}
	return nil
}

// MarshalJSON writes the step back in its original form.
func (s ExecutionStep) MarshalJSON() ([]byte, error) {
	if s.Structured != nil {
		return json.Marshal(s.Structured)
	}
	return json.Marshal(s.Text)
}
