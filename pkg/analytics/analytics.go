// Package analytics derives aggregate views over an audit trail snapshot.
// Every function is pure: it takes the entry slice as input and touches no
// shared state, so callers can feed it a ledger snapshot from any goroutine.
package analytics

import (
	"github.com/sentinel-labs/sentinel/pkg/contracts"
)

// Summary is the dashboard aggregate over one snapshot.
type Summary struct {
	TotalReviews     int                        `json:"total_reviews"`
	DecisionCounts   map[contracts.Decision]int `json:"decision_counts"`
	SeverityCounts   map[contracts.Severity]int `json:"severity_counts"`
	OverrideRate     float64                    `json:"override_rate"`
	AverageRiskScore float64                    `json:"average_risk_score"`
	ApprovalRate     float64                    `json:"approval_rate"`
	Recent           []contracts.AuditEntry     `json:"recent"`
}

// RecentWindow is how many of the latest entries a Summary carries.
const RecentWindow = 5

// DecisionCounts tallies entries per decision. Every known decision has a key
// even at zero, so consumers render a stable set of buckets.
func DecisionCounts(entries []contracts.AuditEntry) map[contracts.Decision]int {
	counts := make(map[contracts.Decision]int, len(contracts.Decisions))
	for _, d := range contracts.Decisions {
		counts[d] = 0
	}
	for _, e := range entries {
		counts[e.Decision]++
	}
	return counts
}

// SeverityCounts tallies entries per severity, with stable zero buckets.
func SeverityCounts(entries []contracts.AuditEntry) map[contracts.Severity]int {
	counts := make(map[contracts.Severity]int, len(contracts.Severities))
	for _, s := range contracts.Severities {
		counts[s] = 0
	}
	for _, e := range entries {
		counts[e.Severity]++
	}
	return counts
}

// OverrideRate is the percentage of entries a human overrode. 0.0 when empty.
func OverrideRate(entries []contracts.AuditEntry) float64 {
	if len(entries) == 0 {
		return 0.0
	}
	overridden := 0
	for _, e := range entries {
		if e.Overridden {
			overridden++
		}
	}
	return float64(overridden) / float64(len(entries)) * 100
}

// AverageRiskScore is the mean denormalized risk score. 0.0 when empty.
func AverageRiskScore(entries []contracts.AuditEntry) float64 {
	if len(entries) == 0 {
		return 0.0
	}
	var total float64
	for _, e := range entries {
		total += e.RiskScore
	}
	return total / float64(len(entries))
}

// ApprovalRate is the percentage of entries decided APPROVE outright.
// Conditional approvals do not count. 0.0 when empty.
func ApprovalRate(entries []contracts.AuditEntry) float64 {
	if len(entries) == 0 {
		return 0.0
	}
	approved := 0
	for _, e := range entries {
		if e.Decision == contracts.DecisionApprove {
			approved++
		}
	}
	return float64(approved) / float64(len(entries)) * 100
}

// Recent returns up to n of the latest entries. The snapshot is already
// newest-first, so this is a bounded prefix copy.
func Recent(entries []contracts.AuditEntry, n int) []contracts.AuditEntry {
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]contracts.AuditEntry, n)
	copy(out, entries[:n])
	return out
}

// Summarize computes the full dashboard aggregate in one pass over the
// snapshot's derived views.
func Summarize(entries []contracts.AuditEntry) Summary {
	return Summary{
		TotalReviews:     len(entries),
		DecisionCounts:   DecisionCounts(entries),
		SeverityCounts:   SeverityCounts(entries),
		OverrideRate:     OverrideRate(entries),
		AverageRiskScore: AverageRiskScore(entries),
		ApprovalRate:     ApprovalRate(entries),
		Recent:           Recent(entries, RecentWindow),
	}
}
