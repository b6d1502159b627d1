package contracts

// AuditEntry is one ledger record. Entries are created only when a review
// session completes successfully, and are immutable except for the one-time
// override transition.
type AuditEntry struct {
	ID                    string   `json:"id"`
	Timestamp             string   `json:"timestamp"` // RFC 3339; fixed at creation
	Task                  string   `json:"task"`
	Decision              Decision `json:"decision"`
	Severity              Severity `json:"severity"`
	RiskScore             float64  `json:"riskScore"`
	Overridden            bool     `json:"overridden"`
	OverrideJustification string   `json:"overrideJustification,omitempty"`

	// FullResult is the complete canonical payload. Decision, Severity and
	// RiskScore above are denormalized copies so filtering and analytics
	// never deep-traverse it.
	FullResult GovernanceResult `json:"fullResult"`
}
