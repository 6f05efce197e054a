package rule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ActionType distinguishes the two action kinds a matched rule may apply.
type ActionType string

const (
	// ActionScore contributes a weighted score delta with a reason string.
	ActionScore ActionType = "score"
	// ActionFlag attaches a named flag to the result without altering score.
	ActionFlag ActionType = "flag"
)

// Action is one consequence of a matched rule, applied in declaration order.
type Action struct {
	Type   ActionType
	Score  decimal.Decimal
	Reason string // template; {placeholders} are filled from the match
	Flag   string
}

// Rule is one compiled, immutable rule. Concurrent evaluations share compiled
// rules freely; nothing is mutated after Parse returns.
type Rule struct {
	Name      string
	Version   int
	Priority  int
	Weight    decimal.Decimal
	Schedule  *Schedule
	Condition Condition
	Actions   []Action

	// order is the registration position in the source document, the stable
	// tie-break for equal priorities.
	order int
}

// Snapshot is one complete, consistent rule set. Reloads swap whole snapshots
// atomically; an evaluation never observes a partially-updated set.
type Snapshot struct {
	Version  int
	LoadedAt time.Time
	rules    []*Rule
}

// Rules returns the rule list in evaluation order: descending priority,
// registration order on ties. The slice is shared; callers must not mutate it.
func (s *Snapshot) Rules() []*Rule {
	return s.rules
}

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.rules)
}

func newSnapshot(version int, rules []*Rule) *Snapshot {
	sorted := make([]*Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].order < sorted[j].order
	})
	return &Snapshot{
		Version:  version,
		LoadedAt: time.Now(),
		rules:    sorted,
	}
}
