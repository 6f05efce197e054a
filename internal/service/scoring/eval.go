package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
	"github.com/davidleathers/transaction-risk-core/internal/domain/rule"
	"github.com/davidleathers/transaction-risk-core/internal/domain/transaction"
)

// evalEnv carries one rule evaluation's state: the transaction, the feature
// reader, and the bindings collected for reason templates.
type evalEnv struct {
	txn      *transaction.Transaction
	features FeatureReader
	bindings map[string]string
}

// evalCondition walks the compiled tree by structural recursion. A feature
// read failure propagates as an error; the rule loop absorbs it as the rule
// not matching. An absent field never errors; it fails closed.
func evalCondition(ctx context.Context, env *evalEnv, cond rule.Condition) (bool, error) {
	switch c := cond.(type) {
	case *rule.AllOf:
		for _, child := range c.Children {
			ok, err := evalCondition(ctx, env, child)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case *rule.AnyOf:
		for _, child := range c.Children {
			ok, err := evalCondition(ctx, env, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case *rule.Compare:
		return evalCompare(env, c), nil

	case *rule.InList:
		v, ok := env.txn.Field(c.Field)
		if !ok {
			return false, nil
		}
		s := stringify(v)
		if c.Contains(s) {
			env.bindings["field"] = c.Field
			env.bindings["value"] = s
			return true, nil
		}
		return false, nil

	case *rule.Match:
		v, ok := env.txn.Field(c.Field)
		if !ok {
			return false, nil
		}
		s := stringify(v)
		if c.Pattern.MatchString(s) {
			env.bindings["field"] = c.Field
			env.bindings["value"] = s
			return true, nil
		}
		return false, nil

	case *rule.Velocity:
		return evalVelocity(ctx, env, c)

	default:
		// Unreachable for trees produced by rule.Parse.
		return false, fmt.Errorf("unknown condition type %T", cond)
	}
}

func evalCompare(env *evalEnv, c *rule.Compare) bool {
	left, ok := env.txn.Field(c.Field)
	if !ok {
		return false
	}

	var right interface{}
	if c.ValueFrom != "" {
		// Cross-field comparison resolves the referenced field at evaluation
		// time and fails closed when it is absent.
		rv, ok := env.txn.Field(c.ValueFrom)
		if !ok {
			return false
		}
		right = rv
	} else {
		right = c.Value
	}

	matched := compare(left, right, c.Op)
	if matched {
		env.bindings["field"] = c.Field
		env.bindings["value"] = stringify(left)
	}
	return matched
}

func evalVelocity(ctx context.Context, env *evalEnv, c *rule.Velocity) (bool, error) {
	identityVal, ok := env.txn.Field(c.Field)
	if !ok {
		return false, nil
	}
	identity := stringify(identityVal)

	key, err := feature.NewKey(c.Dimension, identity, c.Window)
	if err != nil {
		return false, nil
	}

	counter, err := env.features.ReadCounter(ctx, key)
	if err != nil {
		return false, err
	}

	var observed decimal.Decimal
	switch c.Metric {
	case rule.MetricAmount:
		observed = counter.Amount
	default:
		observed = decimal.NewFromInt(int64(counter.Count))
	}

	matched := compareDecimal(observed, c.Threshold, c.Op)
	if matched {
		env.bindings["count"] = fmt.Sprintf("%d", counter.Count)
		env.bindings["amount"] = counter.Amount.String()
		env.bindings["threshold"] = c.Threshold.String()
		env.bindings["window"] = c.Window.String()
		env.bindings["identity"] = transaction.HashIdentity(identity)
	}
	return matched, nil
}

// compare applies an operator to two field values. Ordering operators
// require both sides to be numeric and fail closed otherwise; equality falls
// back to string forms.
func compare(left, right interface{}, op rule.ComparisonOperator) bool {
	ld, lok := toDecimal(left)
	rd, rok := toDecimal(right)
	if lok && rok {
		return compareDecimal(ld, rd, op)
	}

	switch op {
	case rule.OpEqual:
		return stringify(left) == stringify(right)
	case rule.OpNotEqual:
		return stringify(left) != stringify(right)
	}
	return false
}

func compareDecimal(left, right decimal.Decimal, op rule.ComparisonOperator) bool {
	cmp := left.Cmp(right)
	switch op {
	case rule.OpEqual:
		return cmp == 0
	case rule.OpNotEqual:
		return cmp != 0
	case rule.OpGreaterThan:
		return cmp > 0
	case rule.OpGreaterEqual:
		return cmp >= 0
	case rule.OpLessThan:
		return cmp < 0
	case rule.OpLessEqual:
		return cmp <= 0
	}
	return false
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint64:
		return decimal.NewFromUint64(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	}
	return decimal.Decimal{}, false
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case decimal.Decimal:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// expandReason fills {placeholder} slots in a reason template from the
// bindings collected while the condition matched. Unknown placeholders are
// left as-is.
func expandReason(template string, bindings map[string]string) string {
	if !strings.ContainsRune(template, '{') {
		return template
	}
	out := template
	for k, v := range bindings {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
