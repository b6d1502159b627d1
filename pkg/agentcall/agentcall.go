// Package agentcall is the boundary to the external multi-agent coordinator.
// The console never runs governance itself; it hands a prompt to a remote
// agent and receives an opaque payload back.
package agentcall

import (
	"context"
)

// Response is the coordinator's envelope around its payload. Result is left
// opaque here; normalization owns its interpretation.
type Response struct {
	Status  string `json:"status,omitempty"`
	Result  any    `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

// CallResult is the outcome of one coordinator invocation. Exactly one of
// Response and Error is meaningful: Success selects which.
type CallResult struct {
	Success  bool      `json:"success"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Caller invokes a named agent with a prompt. A non-nil error means the call
// itself could not complete; a CallResult with Success=false means the
// coordinator ran and reported a failure.
type Caller interface {
	Call(ctx context.Context, promptText, agentID string) (*CallResult, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, promptText, agentID string) (*CallResult, error)

func (f CallerFunc) Call(ctx context.Context, promptText, agentID string) (*CallResult, error) {
	return f(ctx, promptText, agentID)
}
