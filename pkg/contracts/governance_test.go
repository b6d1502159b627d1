package contracts

import (
	"encoding/json"
	"testing"
)

func TestExecutionStep_UnmarshalUnion(t *testing.T) {
	raw := []byte(`{
		"plan_version": 2,
		"task_summary": "draft and send the campaign",
		"execution_steps": [
			"Collect recipient list",
			{"step_number": 5, "action": "Draft email copy", "expected_outcome": "approved draft"},
			{"action": "Schedule send", "considerations": "respect opt-outs"}
		],
		"resources_required": ["crm", "email-gateway"],
		"estimated_duration": "2 days"
	}`)

	var plan ExecutionPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if len(plan.ExecutionSteps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.ExecutionSteps))
	}

	if plan.ExecutionSteps[0].IsStructured() {
		t.Error("step 0 should be plain text")
	}
	if got := plan.ExecutionSteps[0].Action(); got != "Collect recipient list" {
		t.Errorf("step 0 action = %q", got)
	}

	if !plan.ExecutionSteps[1].IsStructured() {
		t.Fatal("step 1 should be structured")
	}
	if plan.ExecutionSteps[1].Structured.ExpectedOutcome != "approved draft" {
		t.Errorf("step 1 expected outcome = %q", plan.ExecutionSteps[1].Structured.ExpectedOutcome)
	}
}

func TestExecutionStep_ResolvedNumber(t *testing.T) {
	steps := []ExecutionStep{
		{Text: "first"},
		{Structured: &StructuredStep{Action: "second"}},
		{Structured: &StructuredStep{StepNumber: 9, Action: "third"}},
	}

	want := []int{1, 2, 9}
	for i, s := range steps {
		if got := s.ResolvedNumber(i); got != want[i] {
			t.Errorf("step %d resolved number = %d, want %d", i, got, want[i])
		}
	}
}

func TestExecutionStep_MarshalRoundTrip(t *testing.T) {
	steps := []ExecutionStep{
		{Text: "plain step"},
		{Structured: &StructuredStep{StepNumber: 1, Action: "structured step"}},
	}

	data, err := json.Marshal(steps)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back []ExecutionStep
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[0].IsStructured() || !back[1].IsStructured() {
		t.Error("union forms not preserved through round trip")
	}
}

func TestExecutionStep_RejectsOtherShapes(t *testing.T) {
	var s ExecutionStep
	if err := json.Unmarshal([]byte(`42`), &s); err == nil {
		t.Error("expected error for numeric step")
	}
}

func TestDecision_Valid(t *testing.T) {
	for _, d := range Decisions {
		if !d.Valid() {
			t.Errorf("%s should be valid", d)
		}
	}
	if Decision("ESCALATE").Valid() {
		t.Error("unknown decision should be invalid")
	}
	if Decision("").Valid() {
		t.Error("empty decision should be invalid")
	}
}
