package secrets

import (
	"sort"
	"time"
)

// Result is the outcome of one Scrub call. It never carries the matched
// secret values.
type Result struct {
	Scrubbed string         `json:"scrubbed"`
	Findings []Finding      `json:"findings,omitempty"`
	ByRule   map[string]int `json:"by_rule,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Finding locates one detected secret in the original content.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	Line        int    `json:"line,omitempty"` // 1-indexed
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the matched rule IDs, sorted.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
