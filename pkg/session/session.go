// Package session drives one review submission at a time through an explicit
// state machine. The single-flight guarantee lives here: no new submission may
// start while one is outstanding, so the ledger never sees overlapping writes
// from a review.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sentinel-labs/sentinel/pkg/agentcall"
	"github.com/sentinel-labs/sentinel/pkg/contracts"
	"github.com/sentinel-labs/sentinel/pkg/ledger"
	"github.com/sentinel-labs/sentinel/pkg/normalize"
)

// State of the review session.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// ErrSubmissionInFlight rejects a submission while another is outstanding.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// ValidationError rejects a submission before any external call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// TransportError reports a coordinator failure verbatim, including any message
// the collaborator supplied.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrInvalidResponse is the generic user-facing failure when the coordinator
// replied but the payload could not be normalized. The raw payload is logged,
// not surfaced.
var ErrInvalidResponse = errors.New("the coordinator returned an invalid response")

// Outcome captures the terminal result of one submission.
// PersistenceWarning is set when the review succeeded but the ledger save
// did not; the entry still lives in memory.
type Outcome struct {
	Result             *contracts.GovernanceResult
	Entry              contracts.AuditEntry
	PersistenceWarning string
}

// ReviewSession owns the submission lifecycle. It holds a coordinator caller,
// a normalizer and the audit ledger; a successful review appends exactly one
// entry atomically with the Succeeded transition.
type ReviewSession struct {
	mu         sync.Mutex
	state      State
	lastErr    error
	outcome    *Outcome
	caller     agentcall.Caller
	normalizer *normalize.Normalizer
	ledger     *ledger.AuditLedger
	agentID    string
	logger     *slog.Logger
}

// New builds an idle session. agentID names the coordinator agent to invoke.
func New(caller agentcall.Caller, ldg *ledger.AuditLedger, agentID string) *ReviewSession {
	return &ReviewSession{
		state:      StateIdle,
		caller:     caller,
		normalizer: normalize.New(),
		ledger:     ldg,
		agentID:    agentID,
		logger:     slog.Default(),
	}
}

// WithLogger overrides the structured logger.
func (s *ReviewSession) WithLogger(logger *slog.Logger) *ReviewSession {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// State returns the current state.
func (s *ReviewSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure from the last submission, nil unless Failed.
func (s *ReviewSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Outcome returns the last successful result, nil unless Succeeded.
func (s *ReviewSession) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Reset returns a terminal session to Idle, clearing error and outcome. It is
// a no-op while a submission is in flight.
func (s *ReviewSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return
	}
	s.state = StateIdle
	s.lastErr = nil
	s.outcome = nil
}

// Submit runs one review: validate, call the coordinator, normalize, append.
// The ledger is only touched after the external call has fully completed with
// a normalizable payload. A prior terminal state is cleared before the new
// attempt starts.
func (s *ReviewSession) Submit(ctx context.Context, task, taskContext string) (*Outcome, error) {
	task = strings.TrimSpace(task)

	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	s.lastErr = nil
	s.outcome = nil
	if task == "" {
		s.state = StateIdle
		s.mu.Unlock()
		return nil, &ValidationError{Msg: "task description must not be empty"}
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	outcome, err := s.run(ctx, task, taskContext)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		return nil, err
	}
	s.state = StateSucceeded
	s.outcome = outcome
	return outcome, nil
}

func (s *ReviewSession) run(ctx context.Context, task, taskContext string) (*Outcome, error) {
	prompt := fmt.Sprintf("Task: %s\nContext: %s", task, taskContext)

	res, err := s.caller.Call(ctx, prompt, s.agentID)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if !res.Success {
		return nil, &TransportError{Msg: coordinatorFailureMessage(res)}
	}
	if res.Response == nil {
		return nil, &TransportError{Msg: "the coordinator returned no response"}
	}
	// A successful call can still carry a failed pipeline run; only a
	// "success" status makes the payload trustworthy.
	if res.Response.Status != "success" {
		return nil, &TransportError{Msg: coordinatorFailureMessage(res)}
	}

	result, err := s.normalizer.Normalize(res.Response.Result)
	if err != nil {
		s.logRawPayload(res.Response.Result, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	outcome := &Outcome{Result: result}
	entry, err := s.ledger.Append(ctx, task, result)
	if err != nil {
		// Persistence trouble is non-fatal: the review succeeded and the
		// in-memory ledger already holds the entry.
		var perr *ledger.PersistenceError
		if !errors.As(err, &perr) {
			return nil, err
		}
		s.logger.Warn("audit entry not persisted", "entry_id", entry.ID, "error", err)
		outcome.PersistenceWarning = err.Error()
	}
	outcome.Entry = entry
	return outcome, nil
}

// coordinatorFailureMessage surfaces the collaborator's own words: the error
// field first, then the response message, then a generic fallback.
func coordinatorFailureMessage(res *agentcall.CallResult) string {
	if res.Error != "" {
		return res.Error
	}
	if res.Response != nil && res.Response.Message != "" {
		return res.Response.Message
	}
	return "the coordinator reported a failure"
}

// logRawPayload records the unnormalizable payload for diagnosis. The payload
// never reaches the user-facing error.
func (s *ReviewSession) logRawPayload(raw any, cause error) {
	blob, err := json.Marshal(raw)
	if err != nil {
		blob = []byte(fmt.Sprintf("%v", raw))
	}
	s.logger.Error("coordinator payload failed normalization",
		"error", cause,
		"raw_payload", string(blob),
	)
}
