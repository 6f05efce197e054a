package rule

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
)

// ComparisonOperator enumerates the leaf comparison operators.
type ComparisonOperator string

const (
	OpEqual        ComparisonOperator = "eq"
	OpNotEqual     ComparisonOperator = "ne"
	OpGreaterThan  ComparisonOperator = "gt"
	OpGreaterEqual ComparisonOperator = "gte"
	OpLessThan     ComparisonOperator = "lt"
	OpLessEqual    ComparisonOperator = "lte"
)

// VelocityMetric selects which counter aggregate a velocity condition reads.
type VelocityMetric string

const (
	MetricCount  VelocityMetric = "count"
	MetricAmount VelocityMetric = "amount"
)

// Condition is one node of a compiled condition tree. Trees are parsed once
// at load time into immutable values; rules are data, not code, so no
// cross-rule references exist and cycles cannot arise.
type Condition interface {
	isCondition()
}

// AllOf matches when every child matches; evaluation short-circuits on the
// first non-match.
type AllOf struct {
	Children []Condition
}

// AnyOf matches when at least one child matches; evaluation short-circuits on
// the first match.
type AnyOf struct {
	Children []Condition
}

// Compare is a leaf comparing a named transaction field against a literal
// value, or against another field when ValueFrom is set. An absent field on
// either side fails closed.
type Compare struct {
	Field     string
	Op        ComparisonOperator
	Value     interface{}
	ValueFrom string
}

// InList is a leaf testing set membership of a named field's string form.
type InList struct {
	Field   string
	Values  []string
	members map[string]struct{}
}

// Contains reports membership in the compiled set.
func (c *InList) Contains(v string) bool {
	_, ok := c.members[v]
	return ok
}

// Match is a leaf testing a named field against a pattern compiled at load
// time.
type Match struct {
	Field   string
	Pattern *regexp.Regexp
}

// Velocity is a leaf that reads a windowed counter for the identity named by
// Field and compares the selected metric against a threshold.
type Velocity struct {
	Field     string
	Dimension feature.Dimension
	Window    time.Duration
	Metric    VelocityMetric
	Op        ComparisonOperator
	Threshold decimal.Decimal
}

func (*AllOf) isCondition()    {}
func (*AnyOf) isCondition()    {}
func (*Compare) isCondition()  {}
func (*InList) isCondition()   {}
func (*Match) isCondition()    {}
func (*Velocity) isCondition() {}
