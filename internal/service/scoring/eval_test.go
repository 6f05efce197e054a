package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/davidleathers/transaction-risk-core/internal/domain/rule"
)

func TestCompare_NumericCoercion(t *testing.T) {
	amount := decimal.RequireFromString("129.99")

	tests := []struct {
		name  string
		left  interface{}
		right interface{}
		op    rule.ComparisonOperator
		want  bool
	}{
		{"decimal gt int", amount, 100, rule.OpGreaterThan, true},
		{"decimal gt float", amount, 129.99, rule.OpGreaterThan, false},
		{"decimal gte float", amount, 129.99, rule.OpGreaterEqual, true},
		{"decimal lt int", amount, 130, rule.OpLessThan, true},
		{"decimal lte int", amount, 129, rule.OpLessEqual, false},
		{"numeric eq across types", decimal.NewFromInt(5), 5.0, rule.OpEqual, true},
		{"numeric ne", decimal.NewFromInt(5), 6, rule.OpNotEqual, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compare(tt.left, tt.right, tt.op))
		})
	}
}

func TestCompare_StringEquality(t *testing.T) {
	assert.True(t, compare("PT", "PT", rule.OpEqual))
	assert.True(t, compare("PT", "US", rule.OpNotEqual))
	assert.False(t, compare("PT", "pt", rule.OpEqual), "string comparison is case-sensitive")

	// Booleans fall back to their string forms.
	assert.True(t, compare(true, true, rule.OpEqual))
	assert.True(t, compare(false, true, rule.OpNotEqual))
}

func TestCompare_OrderingOnNonNumericFailsClosed(t *testing.T) {
	for _, op := range []rule.ComparisonOperator{
		rule.OpGreaterThan, rule.OpGreaterEqual, rule.OpLessThan, rule.OpLessEqual,
	} {
		assert.False(t, compare("abc", "abd", op), "op %s must fail closed on strings", op)
	}
}

func TestExpandReason(t *testing.T) {
	bindings := map[string]string{
		"count":     "7",
		"window":    "1h0m0s",
		"threshold": "5",
	}

	assert.Equal(t, "7 events in 1h0m0s (limit 5)",
		expandReason("{count} events in {window} (limit {threshold})", bindings))

	// Unknown placeholders are left intact; templates with no placeholders
	// pass through untouched.
	assert.Equal(t, "value {missing}", expandReason("value {missing}", bindings))
	assert.Equal(t, "plain reason", expandReason("plain reason", bindings))
}
