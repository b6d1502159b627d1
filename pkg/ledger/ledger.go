// Package ledger implements the persistent audit trail of governance reviews.
//
// The ledger is append-mostly: entries are only ever created by a successful
// review, mutated once by the override protocol, and removed only by a full
// clear. Order is newest-first. The full entry sequence is persisted as a
// single JSON blob through the kvstore collaborator after every mutation;
// persistence failures are reported but never roll back the in-memory state,
// so the current session's view stays authoritative.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sentinel-labs/sentinel/pkg/contracts"
	"github.com/sentinel-labs/sentinel/pkg/kvstore"
)

// StorageKey is the fixed key the ledger blob lives under.
const StorageKey = "sentinel_audit_log"

// MinJustificationLen is the minimum override justification length,
// counted in characters, not bytes.
const MinJustificationLen = 50

// Override failure reasons.
const (
	OverrideTooShort        = "too-short"
	OverrideNotAcknowledged = "not-acknowledged"
)

// ErrEntryNotFound is returned when an override addresses an unknown entry id.
var ErrEntryNotFound = errors.New("audit entry not found")

// OverrideError rejects an override attempt before any state changes.
type OverrideError struct {
	Reason string
}

func (e *OverrideError) Error() string { return "override rejected: " + e.Reason }

// PersistenceError reports a save/load failure against the backing store.
// The in-memory ledger state is still valid when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s: persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuditLedger owns the ordered entry sequence and its persistence lifecycle.
// Mutations are serialized by an internal lock; callers must still not
// overlap mutating calls that they expect to persist in a given order.
type AuditLedger struct {
	mu      sync.RWMutex
	store   kvstore.Store
	key     string
	entries []contracts.AuditEntry // newest first
	clock   func() time.Time
	logger  *slog.Logger
}

// New creates a ledger backed by store under StorageKey.
func New(store kvstore.Store) *AuditLedger {
	return &AuditLedger{
		store:  store,
		key:    StorageKey,
		clock:  time.Now,
		logger: slog.Default(),
	}
}

// WithClock overrides the clock for deterministic testing.
func (l *AuditLedger) WithClock(clock func() time.Time) *AuditLedger {
	l.clock = clock
	return l
}

// WithLogger overrides the structured logger.
func (l *AuditLedger) WithLogger(logger *slog.Logger) *AuditLedger {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Load reads the persisted blob. A missing key yields an empty ledger. A
// store or parse failure also yields an empty ledger and returns a
// *PersistenceError: the console must stay usable, worst case with a visible
// diagnostic and no history.
func (l *AuditLedger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil

	blob, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		perr := &PersistenceError{Op: "load", Err: err}
		l.logger.Warn("audit ledger load failed, starting empty", "error", err)
		return perr
	}
	if !ok || blob == "" {
		return nil
	}

	var entries []contracts.AuditEntry
	if err := json.Unmarshal([]byte(blob), &entries); err != nil {
		perr := &PersistenceError{Op: "load", Err: err}
		l.logger.Warn("audit ledger blob unparsable, starting empty", "error", err)
		return perr
	}
	l.entries = entries
	return nil
}

// Append creates an entry for a completed review and inserts it at the front,
// then persists the full ledger. The returned entry is valid even when the
// error is a *PersistenceError; retrying the save is the caller's call.
func (l *AuditLedger) Append(ctx context.Context, task string, result *contracts.GovernanceResult) (contracts.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	entry := contracts.AuditEntry{
		ID:         fmt.Sprintf("audit_%d_%s", now.UnixMilli(), uuid.NewString()[:8]),
		Timestamp:  now.UTC().Format(time.RFC3339),
		Task:       task,
		Decision:   result.FinalDecision,
		Severity:   result.RiskEvaluation.SeverityLevel,
		RiskScore:  result.RiskEvaluation.OverallRiskScore,
		Overridden: false,
		FullResult: *result,
	}

	l.entries = append([]contracts.AuditEntry{entry}, l.entries...)
	return entry, l.save(ctx, "append")
}

// Override marks an entry as overridden by a human reviewer. The entry's
// identity and timestamp are untouched; a repeated override overwrites the
// justification in place rather than duplicating the entry.
func (l *AuditLedger) Override(ctx context.Context, entryID, justification string, acknowledged bool) error {
	if utf8.RuneCountInString(justification) < MinJustificationLen {
		return &OverrideError{Reason: OverrideTooShort}
	}
	if !acknowledged {
		return &OverrideError{Reason: OverrideNotAcknowledged}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID == entryID {
			l.entries[i].Overridden = true
			l.entries[i].OverrideJustification = justification
			return l.save(ctx, "override")
		}
	}
	return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
}

// Clear empties the ledger and persists the empty state. Irreversible.
func (l *AuditLedger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	return l.save(ctx, "clear")
}

// Snapshot returns a read-only copy of the entries, newest first.
func (l *AuditLedger) Snapshot() []contracts.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]contracts.AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *AuditLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// save persists the whole entry sequence. Must be called with the write lock
// held. Failures are logged and wrapped, never fatal.
func (l *AuditLedger) save(ctx context.Context, op string) error {
	blob, err := json.Marshal(l.entriesOrEmpty())
	if err != nil {
		l.logger.Error("audit ledger serialization failed", "op", op, "error", err)
		return &PersistenceError{Op: op, Err: err}
	}
	if err := l.store.Set(ctx, l.key, string(blob)); err != nil {
		l.logger.Error("audit ledger save failed", "op", op, "error", err)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// entriesOrEmpty keeps the persisted form a JSON array even when empty.
func (l *AuditLedger) entriesOrEmpty() []contracts.AuditEntry {
	if l.entries == nil {
		return []contracts.AuditEntry{}
	}
	return l.entries
}
