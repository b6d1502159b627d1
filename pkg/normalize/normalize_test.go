package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/sentinel/pkg/contracts"
)

// validPayload returns a minimal coordinator reply that satisfies the
// required-field invariant, decoded as generic JSON.
func validPayload(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"workflow_status": "completed",
		"final_decision": "BLOCK",
		"task_overview": {
			"original_task": "Send promotional email to all customers",
			"task_category": "Marketing Campaign",
			"complexity_level": "MEDIUM"
		},
		"execution_plan": {
			"plan_version": 1,
			"task_summary": "bulk discount email",
			"execution_steps": [
				"Validate recipient list",
				{"step_number": 2, "action": "Draft copy", "expected_outcome": "reviewed draft"}
			],
			"resources_required": ["crm"],
			"estimated_duration": "1 day"
		},
		"risk_evaluation": {
			"decision": "BLOCK",
			"overall_risk_score": 8,
			"severity_level": "HIGH",
			"risk_breakdown": {
				"safety_score": 2,
				"irreversibility_score": 9,
				"ethics_score": 4,
				"financial_score": 8,
				"reputation_score": 7
			},
			"evaluation_summary": "mass outbound communication with financial exposure"
		},
		"workflow_timeline": [
			{"stage": "planning", "agent": "worker", "outcome": "plan v1"},
			{"stage": "risk", "agent": "sentinel", "outcome": "BLOCK"}
		],
		"next_steps": "await human review",
		"replanning_count": 0
	}`
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestNormalize_DirectPayload(t *testing.T) {
	n := New()

	result, err := n.Normalize(validPayload(t))
	require.NoError(t, err)

	assert.Equal(t, contracts.DecisionBlock, result.FinalDecision)
	assert.Equal(t, contracts.SeverityHigh, result.RiskEvaluation.SeverityLevel)
	assert.InDelta(t, 8.0, result.RiskEvaluation.OverallRiskScore, 0.001)
	require.Len(t, result.ExecutionPlan.ExecutionSteps, 2)
	assert.False(t, result.ExecutionPlan.ExecutionSteps[0].IsStructured())
	assert.True(t, result.ExecutionPlan.ExecutionSteps[1].IsStructured())
}

func TestNormalize_WrappingDepthInvariance(t *testing.T) {
	n := New()
	payload := validPayload(t)

	direct, err := n.Normalize(payload)
	require.NoError(t, err)

	wrapped, err := n.Normalize(map[string]any{"result": payload})
	require.NoError(t, err)

	assert.Equal(t, direct, wrapped, "wrapping under result must not change the canonical result")
}

func TestNormalize_StringEncodedPayload(t *testing.T) {
	n := New()
	payload := validPayload(t)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	fromString, err := n.Normalize(string(data))
	require.NoError(t, err)

	fromValue, err := n.Normalize(payload)
	require.NoError(t, err)

	assert.Equal(t, fromValue, fromString)
}

func TestNormalize_StringEncodedWrappedPayload(t *testing.T) {
	n := New()

	data, err := json.Marshal(map[string]any{"result": validPayload(t)})
	require.NoError(t, err)

	result, err := n.Normalize(string(data))
	require.NoError(t, err)
	assert.Equal(t, contracts.DecisionBlock, result.FinalDecision)
}

func TestNormalize_UnparsableString(t *testing.T) {
	n := New()

	_, err := n.Normalize("{not json")
	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, ReasonUnparsable, nerr.Reason)
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	n := New()

	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"no final_decision", func(m map[string]any) { delete(m, "final_decision") }},
		{"no risk_evaluation", func(m map[string]any) { delete(m, "risk_evaluation") }},
		{"null risk_evaluation", func(m map[string]any) { m["risk_evaluation"] = nil }},
		{"empty final_decision", func(m map[string]any) { m["final_decision"] = "" }},
		{"unknown final_decision", func(m map[string]any) { m["final_decision"] = "ESCALATE" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload(t)
			tc.mutate(payload)

			_, err := n.Normalize(payload)
			var nerr *Error
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, ReasonMissingFields, nerr.Reason)
		})
	}
}

func TestNormalize_NonObjectPayload(t *testing.T) {
	n := New()

	for _, raw := range []any{42.0, true, []any{"x"}, nil} {
		_, err := n.Normalize(raw)
		var nerr *Error
		require.ErrorAs(t, err, &nerr, "raw=%v", raw)
		assert.Equal(t, ReasonMissingFields, nerr.Reason)
	}
}

func TestNormalize_UnwrapIsSingleLevel(t *testing.T) {
	n := New()

	// The real payload sits two levels deep; resolution stops after one
	// unwrap, so this must fail validation rather than recurse further.
	doubleWrapped := map[string]any{
		"result": map[string]any{
			"result": validPayload(t),
		},
	}

	_, err := n.Normalize(doubleWrapped)
	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, ReasonMissingFields, nerr.Reason)
}

func TestNormalize_DirectPayloadWinsOverNested(t *testing.T) {
	n := New()

	// A payload that carries the required top-level fields is used as-is,
	// even when a nested result object is also present.
	payload := validPayload(t)
	payload["result"] = map[string]any{"final_decision": "APPROVE"}

	result, err := n.Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, contracts.DecisionBlock, result.FinalDecision)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Reason: ReasonUnparsable, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), ReasonUnparsable)
}
