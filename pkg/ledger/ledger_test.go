package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-labs/sentinel/pkg/contracts"
	"github.com/sentinel-labs/sentinel/pkg/kvstore"
)

// failingStore wraps a memory store and fails writes on demand.
type failingStore struct {
	*kvstore.Memory
	failSet bool
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.Memory.Set(ctx, key, value)
}

func resultWith(decision contracts.Decision, severity contracts.Severity, score float64) *contracts.GovernanceResult {
	return &contracts.GovernanceResult{
		WorkflowStatus: "completed",
		FinalDecision:  decision,
		RiskEvaluation: contracts.RiskEvaluation{
			Decision:         string(decision),
			OverallRiskScore: score,
			SeverityLevel:    severity,
		},
	}
}

func testClock() func() time.Time {
	t := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestAppend_NewestFirst(t *testing.T) {
	l := New(kvstore.NewMemory()).WithClock(testClock())
	ctx := context.Background()

	e1, err := l.Append(ctx, "task one", resultWith(contracts.DecisionApprove, contracts.SeverityLow, 1))
	require.NoError(t, err)
	e2, err := l.Append(ctx, "task two", resultWith(contracts.DecisionModify, contracts.SeverityMedium, 5))
	require.NoError(t, err)
	e3, err := l.Append(ctx, "task three", resultWith(contracts.DecisionBlock, contracts.SeverityHigh, 8))
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{e3.ID, e2.ID, e1.ID}, []string{snap[0].ID, snap[1].ID, snap[2].ID})

	// Denormalized copies match the full result.
	assert.Equal(t, contracts.DecisionBlock, snap[0].Decision)
	assert.Equal(t, contracts.SeverityHigh, snap[0].Severity)
	assert.InDelta(t, 8.0, snap[0].RiskScore, 0.001)
	assert.False(t, snap[0].Overridden)
}

func TestAppend_IDsUniqueTimestampsFixed(t *testing.T) {
	l := New(kvstore.NewMemory()).WithClock(testClock())
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		e, err := l.Append(ctx, "task", resultWith(contracts.DecisionApprove, contracts.SeverityLow, 1))
		require.NoError(t, err)
		require.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true

		_, err = time.Parse(time.RFC3339, e.Timestamp)
		require.NoError(t, err, "timestamp must be RFC 3339")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()

	l := New(store).WithClock(testClock())
	_, err := l.Append(ctx, "persisted task", resultWith(contracts.DecisionClarify, contracts.SeverityMedium, 4))
	require.NoError(t, err)

	reloaded := New(store)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "persisted task", reloaded.Snapshot()[0].Task)
}

func TestLoad_MissingKeyStartsEmpty(t *testing.T) {
	l := New(kvstore.NewMemory())
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, 0, l.Len())
}

func TestLoad_CorruptBlobStartsEmptyAndReports(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, StorageKey, "{corrupt"))

	l := New(store)
	err := l.Load(ctx)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "load", perr.Op)
	assert.Equal(t, 0, l.Len(), "console must remain usable with an empty ledger")
}

func TestAppend_PersistFailureKeepsEntry(t *testing.T) {
	store := &failingStore{Memory: kvstore.NewMemory(), failSet: true}
	l := New(store).WithClock(testClock())

	entry, err := l.Append(context.Background(), "task", resultWith(contracts.DecisionBlock, contracts.SeverityHigh, 9))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, l.Len(), "in-memory mutation must not roll back")
}

func TestOverride_Protocol(t *testing.T) {
	l := New(kvstore.NewMemory()).WithClock(testClock())
	ctx := context.Background()

	entry, err := l.Append(ctx, "risky task", resultWith(contracts.DecisionBlock, contracts.SeverityCritical, 9))
	require.NoError(t, err)

	longEnough := "The coordinator misjudged the blast radius; rollout is gated behind a manual canary check."
	require.GreaterOrEqual(t, len(longEnough), MinJustificationLen)

	t.Run("too short", func(t *testing.T) {
		err := l.Override(ctx, entry.ID, "short reason", true)
		var oerr *OverrideError
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, OverrideTooShort, oerr.Reason)
		assert.False(t, l.Snapshot()[0].Overridden, "ledger must be untouched")
	})

	t.Run("not acknowledged", func(t *testing.T) {
		err := l.Override(ctx, entry.ID, longEnough, false)
		var oerr *OverrideError
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, OverrideNotAcknowledged, oerr.Reason)
		assert.False(t, l.Snapshot()[0].Overridden)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := l.Override(ctx, "audit_0_deadbeef", longEnough, true)
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})

	t.Run("accepted", func(t *testing.T) {
		require.NoError(t, l.Override(ctx, entry.ID, longEnough, true))
		got := l.Snapshot()[0]
		assert.True(t, got.Overridden)
		assert.Equal(t, longEnough, got.OverrideJustification)
		assert.Equal(t, entry.Timestamp, got.Timestamp, "timestamp never changes")
	})

	t.Run("repeat overwrites", func(t *testing.T) {
		second := longEnough + " Revised after the incident review concluded the risk was stale."
		require.NoError(t, l.Override(ctx, entry.ID, second, true))
		require.Equal(t, 1, l.Len(), "no duplicate entries")
		assert.Equal(t, second, l.Snapshot()[0].OverrideJustification)
	})
}

func TestOverride_JustificationCountedInCharacters(t *testing.T) {
	l := New(kvstore.NewMemory()).WithClock(testClock())
	ctx := context.Background()

	entry, err := l.Append(ctx, "risky task", resultWith(contracts.DecisionBlock, contracts.SeverityHigh, 8))
	require.NoError(t, err)

	// 20 characters but 60 bytes; must still be too short.
	short := strings.Repeat("査", 20)
	require.Greater(t, len(short), MinJustificationLen)

	err = l.Override(ctx, entry.ID, short, true)
	var oerr *OverrideError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, OverrideTooShort, oerr.Reason)

	require.NoError(t, l.Override(ctx, entry.ID, strings.Repeat("査", MinJustificationLen), true))
	assert.True(t, l.Snapshot()[0].Overridden)
}

func TestOverride_AddressableByAnyID(t *testing.T) {
	l := New(kvstore.NewMemory()).WithClock(testClock())
	ctx := context.Background()

	older, err := l.Append(ctx, "older task", resultWith(contracts.DecisionApprove, contracts.SeverityLow, 2))
	require.NoError(t, err)
	_, err = l.Append(ctx, "newer task", resultWith(contracts.DecisionBlock, contracts.SeverityHigh, 8))
	require.NoError(t, err)

	justification := "Approval stands, but the data-retention caveat raised by legal makes this worth flagging."
	require.NoError(t, l.Override(ctx, older.ID, justification, true))

	snap := l.Snapshot()
	assert.False(t, snap[0].Overridden)
	assert.True(t, snap[1].Overridden)
}

func TestClear_PersistsEmptyArray(t *testing.T) {
	store := kvstore.NewMemory()
	l := New(store).WithClock(testClock())
	ctx := context.Background()

	_, err := l.Append(ctx, "task", resultWith(contracts.DecisionApprove, contracts.SeverityLow, 1))
	require.NoError(t, err)

	require.NoError(t, l.Clear(ctx))
	assert.Equal(t, 0, l.Len())

	blob, ok, err := store.Get(ctx, StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	var entries []contracts.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(blob), &entries))
	assert.Empty(t, entries)
}

func TestFilter(t *testing.T) {
	l := New(kvstore.NewMemory()).WithClock(testClock())
	ctx := context.Background()

	_, _ = l.Append(ctx, "Send promotional email blast", resultWith(contracts.DecisionBlock, contracts.SeverityHigh, 8))
	_, _ = l.Append(ctx, "Rotate S3 credentials", resultWith(contracts.DecisionApprove, contracts.SeverityLow, 2))
	_, _ = l.Append(ctx, "Delete stale user EXPORTS", resultWith(contracts.DecisionApprove, contracts.SeverityMedium, 4))

	t.Run("all sentinel bypasses", func(t *testing.T) {
		assert.Len(t, l.Filter(Criteria{Decision: FilterAll, Severity: FilterAll}), 3)
		assert.Len(t, l.Filter(Criteria{}), 3)
	})

	t.Run("decision exact match", func(t *testing.T) {
		got := l.Filter(Criteria{Decision: "APPROVE"})
		require.Len(t, got, 2)
	})

	t.Run("severity exact match", func(t *testing.T) {
		got := l.Filter(Criteria{Severity: "HIGH"})
		require.Len(t, got, 1)
		assert.Equal(t, contracts.DecisionBlock, got[0].Decision)
	})

	t.Run("search is case-insensitive", func(t *testing.T) {
		got := l.Filter(Criteria{Search: "exports"})
		require.Len(t, got, 1)
		assert.Equal(t, "Delete stale user EXPORTS", got[0].Task)
	})

	t.Run("criteria combine", func(t *testing.T) {
		got := l.Filter(Criteria{Decision: "APPROVE", Search: "credentials"})
		require.Len(t, got, 1)
		assert.Equal(t, "Rotate S3 credentials", got[0].Task)
	})
}
