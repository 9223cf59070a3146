package progress

import (
	"sort"
	"sync/atomic"
)

// Counters tracks the outcome of every sample drawn during a run.
// All methods are safe for concurrent use.
type Counters struct {
	accepted     atomic.Int64
	ruleRejected atomic.Int64
	duplicates   atomic.Int64
	attempts     atomic.Int64
}

// Attempt records one drawn sample.
func (c *Counters) Attempt() { c.attempts.Add(1) }

// Accept records a sample that became an artifact and returns the new total.
func (c *Counters) Accept() int64 { return c.accepted.Add(1) }

// RejectRule records a sample rejected by a FORBID rule.
func (c *Counters) RejectRule() { c.ruleRejected.Add(1) }

// RejectDuplicate records a sample rejected as a duplicate.
func (c *Counters) RejectDuplicate() { c.duplicates.Add(1) }

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Attempts          int64 `json:"attempts"`
	Accepted          int64 `json:"accepted"`
	RuleRejected      int64 `json:"rule_rejected"`
	DuplicateRejected int64 `json:"duplicate_rejected"`
}

// Snapshot reads all counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Attempts:          c.attempts.Load(),
		Accepted:          c.accepted.Load(),
		RuleRejected:      c.ruleRejected.Load(),
		DuplicateRejected: c.duplicates.Load(),
	}
}

// Map renders the snapshot as emitter metadata.
func (s Snapshot) Map() map[string]interface{} {
	return map[string]interface{}{
		"attempts":           s.Attempts,
		"accepted":           s.Accepted,
		"rule_rejected":      s.RuleRejected,
		"duplicate_rejected": s.DuplicateRejected,
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
