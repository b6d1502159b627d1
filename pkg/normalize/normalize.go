// Package normalize reconciles the coordinator's variably-shaped replies into
// the canonical GovernanceResult contract.
//
// The coordinator does not guarantee a fixed reply shape: the payload may be a
// bare object, may sit one level deeper under a "result" field, or may arrive
// as a JSON-encoded string. Normalization applies a bounded-depth resolution
// algorithm (first match wins) and then validates the resolved payload against
// a compiled JSON Schema that enforces the two required fields.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sentinel-labs/sentinel/pkg/contracts"
)

// Failure reasons carried by Error.
const (
	ReasonUnparsable    = "unparsable"
	ReasonMissingFields = "missing-required-fields"
)

// Error is a typed normalization failure. It is the only error type returned
// by Normalize; callers branch on Reason.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize: %s: %v", e.Reason, e.Err)
	}
	return "normalize: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// resultSchema enforces the validity invariant: a result without a
// final_decision drawn from the five-member enum, or without a non-null
// risk_evaluation object, is a validation failure, never a partial result.
var resultSchema = jsonschema.MustCompileString(
	"https://sentinel.schemas.local/governance_result.schema.json", `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["final_decision", "risk_evaluation"],
	"properties": {
		"final_decision": {
			"type": "string",
			"enum": ["APPROVE", "APPROVE_WITH_CONDITIONS", "MODIFY", "BLOCK", "CLARIFY"]
		},
		"risk_evaluation": {"type": "object"}
	}
}`)

// Normalizer turns raw coordinator replies into canonical results.
// The zero value is ready to use; Normalize is pure and safe for
// concurrent use.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer { return &Normalizer{} }

// Normalize resolves and validates a raw reply. It never returns a partial
// result: the outcome is either a valid *contracts.GovernanceResult or an
// *Error with a machine-readable reason.
func (n *Normalizer) Normalize(raw any) (*contracts.GovernanceResult, error) {
	// Rule 1: a string reply needs one JSON parse before shape resolution.
	if text, ok := raw.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil, &Error{Reason: ReasonUnparsable, Err: err}
		}
		raw = parsed
	}

	payload := resolvePayload(raw)

	// Rule 5: required-field validation on the resolved payload.
	if err := resultSchema.Validate(payload); err != nil {
		return nil, &Error{Reason: ReasonMissingFields, Err: err}
	}

	result, err := decode(payload)
	if err != nil {
		return nil, &Error{Reason: ReasonUnparsable, Err: err}
	}
	return result, nil
}

// resolvePayload applies rules 2-4: direct payload detection, a single-level
// "result" unwrap, then best-effort. Recursion is bounded to one level.
func resolvePayload(raw any) any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	if isDirectPayload(obj) {
		return obj
	}
	if nested, ok := obj["result"].(map[string]any); ok {
		return nested
	}
	return obj
}

// isDirectPayload reports whether the object carries both a decision-bearing
// field and a workflow-status field at its top level.
func isDirectPayload(obj map[string]any) bool {
	_, hasDecision := obj["final_decision"]
	_, hasStatus := obj["workflow_status"]
	return hasDecision && hasStatus
}

// decode maps the validated payload onto the canonical contract. Execution
// steps keep their union form (plain string or structured object); nothing
// is coerced here.
func decode(payload any) (*contracts.GovernanceResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("re-encode payload: %w", err)
	}
	var result contracts.GovernanceResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &result, nil
}
