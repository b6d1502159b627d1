package ledger

import (
	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/sentinel-labs/sentinel/pkg/contracts"
)

// FilterAll is the sentinel value that bypasses a decision or severity
// criterion. An empty string behaves the same way.
const FilterAll = "All"

// Criteria selects a subset of the ledger. Decision and Severity are
// exact-match-or-wildcard; Search is a Unicode case-insensitive substring
// match against the submitted task text.
type Criteria struct {
	Decision string
	Severity string
	Search   string
}

// Filter returns the entries matching the criteria, newest first. The result
// is a fresh slice; mutating it does not touch the ledger.
func (l *AuditLedger) Filter(c Criteria) []contracts.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Matchers are not safe for concurrent use, so build one per call.
	matcher := search.New(language.Und, search.IgnoreCase)

	out := make([]contracts.AuditEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if !matches(matcher, e, c) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matches(matcher *search.Matcher, e contracts.AuditEntry, c Criteria) bool {
	if c.Decision != "" && c.Decision != FilterAll && string(e.Decision) != c.Decision {
		return false
	}
	if c.Severity != "" && c.Severity != FilterAll && string(e.Severity) != c.Severity {
		return false
	}
	if c.Search != "" {
		if start, _ := matcher.IndexString(e.Task, c.Search); start < 0 {
			return false
		}
	}
	return true
}
