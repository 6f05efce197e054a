package rule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/davidleathers/transaction-risk-core/internal/domain/errors"
	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
	"github.com/davidleathers/transaction-risk-core/internal/domain/transaction"
)

// maxConditionDepth bounds combinator nesting. Trees are finite by
// construction; the bound guards against pathological documents.
const maxConditionDepth = 32

var validate = validator.New()

// document is the YAML wire form of a rule-set snapshot.
type document struct {
	Version int       `yaml:"version" validate:"gte=1"`
	Rules   []ruleDef `yaml:"rules" validate:"required,min=1,dive"`
}

type ruleDef struct {
	Name     string        `yaml:"name" validate:"required"`
	Version  int           `yaml:"version"`
	Priority int           `yaml:"priority"`
	Enabled  *bool         `yaml:"enabled"`
	Weight   *float64      `yaml:"weight"`
	Schedule *scheduleDef  `yaml:"schedule"`
	When     *conditionDef `yaml:"when" validate:"required"`
	Actions  []actionDef   `yaml:"actions" validate:"required,min=1"`
}

type scheduleDef struct {
	Timezone  string   `yaml:"timezone"`
	StartHour int      `yaml:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int      `yaml:"end_hour" validate:"gte=0,lte=24"`
	Days      []string `yaml:"days"`
}

type conditionDef struct {
	AllOf     []conditionDef `yaml:"all_of"`
	AnyOf     []conditionDef `yaml:"any_of"`
	Field     string         `yaml:"field"`
	Op        string         `yaml:"op"`
	Value     interface{}    `yaml:"value"`
	Values    []string       `yaml:"values"`
	ValueFrom string         `yaml:"value_from"`
	Pattern   string         `yaml:"pattern"`
	Velocity  *velocityDef   `yaml:"velocity"`
}

type velocityDef struct {
	Field     string  `yaml:"field"`
	Dimension string  `yaml:"dimension"`
	Window    string  `yaml:"window"`
	Metric    string  `yaml:"metric"`
	Op        string  `yaml:"op"`
	Threshold float64 `yaml:"threshold"`
}

type actionDef struct {
	Type   string  `yaml:"type"`
	Score  float64 `yaml:"score"`
	Reason string  `yaml:"reason"`
	Flag   string  `yaml:"flag"`
}

// Parse compiles a rule document into an immutable Snapshot. Any structural
// error rejects the whole document; the caller keeps serving its previous
// snapshot.
func Parse(doc []byte) (*Snapshot, error) {
	var d document
	if err := yaml.Unmarshal(doc, &d); err != nil {
		return nil, errors.NewMalformedRuleError("", "rule document is not valid YAML").WithCause(err)
	}
	if err := validate.Struct(&d); err != nil {
		return nil, errors.NewMalformedRuleError("", "rule document failed structural validation").WithCause(err)
	}

	seen := make(map[string]struct{}, len(d.Rules))
	rules := make([]*Rule, 0, len(d.Rules))
	for i, def := range d.Rules {
		if _, dup := seen[def.Name]; dup {
			return nil, errors.NewMalformedRuleError(def.Name, fmt.Sprintf("duplicate rule name %q", def.Name))
		}
		seen[def.Name] = struct{}{}

		if def.Enabled != nil && !*def.Enabled {
			continue
		}

		r, err := compileRule(def, i)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	return newSnapshot(d.Version, rules), nil
}

func compileRule(def ruleDef, order int) (*Rule, error) {
	version := def.Version
	if version == 0 {
		version = 1
	}

	weight := decimal.NewFromInt(1)
	if def.Weight != nil {
		if *def.Weight < 0 {
			return nil, errors.NewMalformedRuleError(def.Name, "rule weight must not be negative")
		}
		weight = decimal.NewFromFloat(*def.Weight)
	}

	schedule, err := compileSchedule(def.Name, def.Schedule)
	if err != nil {
		return nil, err
	}

	cond, err := compileCondition(def.Name, def.When, 0)
	if err != nil {
		return nil, err
	}

	actions, err := compileActions(def.Name, def.Actions)
	if err != nil {
		return nil, err
	}

	return &Rule{
		Name:      def.Name,
		Version:   version,
		Priority:  def.Priority,
		Weight:    weight,
		Schedule:  schedule,
		Condition: cond,
		Actions:   actions,
		order:     order,
	}, nil
}

func compileSchedule(ruleName string, def *scheduleDef) (*Schedule, error) {
	if def == nil {
		return nil, nil
	}

	tz := def.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown timezone %q", tz)).WithCause(err)
	}

	days := make(map[time.Weekday]struct{}, len(def.Days))
	for _, name := range def.Days {
		day, ok := weekdayByName(name)
		if !ok {
			return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown weekday %q", name))
		}
		days[day] = struct{}{}
	}

	end := def.EndHour
	if end == 24 {
		end = 0
	}

	return &Schedule{
		Location:  loc,
		StartHour: def.StartHour,
		EndHour:   end,
		Days:      days,
	}, nil
}

func weekdayByName(name string) (time.Weekday, bool) {
	switch strings.ToLower(name) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return 0, false
}

func compileCondition(ruleName string, def *conditionDef, depth int) (Condition, error) {
	if def == nil {
		return nil, errors.NewMalformedRuleError(ruleName, "empty condition node")
	}
	if depth > maxConditionDepth {
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("condition nesting exceeds depth %d", maxConditionDepth))
	}

	kinds := 0
	if len(def.AllOf) > 0 {
		kinds++
	}
	if len(def.AnyOf) > 0 {
		kinds++
	}
	if def.Velocity != nil {
		kinds++
	}
	if def.Field != "" {
		kinds++
	}
	if kinds != 1 {
		return nil, errors.NewMalformedRuleError(ruleName, "condition node must be exactly one of all_of, any_of, velocity, or a field leaf")
	}

	switch {
	case len(def.AllOf) > 0:
		children, err := compileChildren(ruleName, def.AllOf, depth+1)
		if err != nil {
			return nil, err
		}
		return &AllOf{Children: children}, nil

	case len(def.AnyOf) > 0:
		children, err := compileChildren(ruleName, def.AnyOf, depth+1)
		if err != nil {
			return nil, err
		}
		return &AnyOf{Children: children}, nil

	case def.Velocity != nil:
		return compileVelocity(ruleName, def.Velocity)

	default:
		return compileLeaf(ruleName, def)
	}
}

func compileChildren(ruleName string, defs []conditionDef, depth int) ([]Condition, error) {
	children := make([]Condition, 0, len(defs))
	for i := range defs {
		child, err := compileCondition(ruleName, &defs[i], depth)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func compileVelocity(ruleName string, def *velocityDef) (Condition, error) {
	if !transaction.KnownField(def.Field) {
		return nil, errors.NewUnresolvedReferenceError(ruleName, def.Field)
	}

	dim := feature.Dimension(def.Dimension)
	if !dim.IsValid() {
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown velocity dimension %q", def.Dimension))
	}

	window, err := time.ParseDuration(def.Window)
	if err != nil || window <= 0 {
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("invalid velocity window %q", def.Window))
	}

	metric := VelocityMetric(def.Metric)
	if metric == "" {
		metric = MetricCount
	}
	if metric != MetricCount && metric != MetricAmount {
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown velocity metric %q", def.Metric))
	}

	op := ComparisonOperator(def.Op)
	if op == "" {
		op = OpGreaterThan
	}
	if !isComparisonOp(op) {
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown velocity operator %q", def.Op))
	}

	return &Velocity{
		Field:     def.Field,
		Dimension: dim,
		Window:    window,
		Metric:    metric,
		Op:        op,
		Threshold: decimal.NewFromFloat(def.Threshold),
	}, nil
}

func compileLeaf(ruleName string, def *conditionDef) (Condition, error) {
	if !transaction.KnownField(def.Field) {
		return nil, errors.NewUnresolvedReferenceError(ruleName, def.Field)
	}

	switch def.Op {
	case "in_list":
		if len(def.Values) == 0 {
			return nil, errors.NewMalformedRuleError(ruleName, "in_list condition requires a non-empty values list")
		}
		members := make(map[string]struct{}, len(def.Values))
		for _, v := range def.Values {
			members[v] = struct{}{}
		}
		return &InList{Field: def.Field, Values: def.Values, members: members}, nil

	case "regex":
		if def.Pattern == "" {
			return nil, errors.NewMalformedRuleError(ruleName, "regex condition requires a pattern")
		}
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("invalid regex pattern %q", def.Pattern)).WithCause(err)
		}
		return &Match{Field: def.Field, Pattern: re}, nil

	case string(OpEqual), string(OpNotEqual), string(OpGreaterThan),
		string(OpGreaterEqual), string(OpLessThan), string(OpLessEqual):
		if def.ValueFrom != "" {
			if !transaction.KnownField(def.ValueFrom) {
				return nil, errors.NewUnresolvedReferenceError(ruleName, def.ValueFrom)
			}
		} else if def.Value == nil {
			return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("condition on %q requires value or value_from", def.Field))
		}
		return &Compare{
			Field:     def.Field,
			Op:        ComparisonOperator(def.Op),
			Value:     def.Value,
			ValueFrom: def.ValueFrom,
		}, nil

	default:
		return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown operator %q", def.Op))
	}
}

func compileActions(ruleName string, defs []actionDef) ([]Action, error) {
	actions := make([]Action, 0, len(defs))
	for _, def := range defs {
		switch ActionType(def.Type) {
		case ActionScore:
			if def.Reason == "" {
				return nil, errors.NewMalformedRuleError(ruleName, "score action requires a reason")
			}
			actions = append(actions, Action{
				Type:   ActionScore,
				Score:  decimal.NewFromFloat(def.Score),
				Reason: def.Reason,
			})
		case ActionFlag:
			if def.Flag == "" {
				return nil, errors.NewMalformedRuleError(ruleName, "flag action requires a flag name")
			}
			actions = append(actions, Action{Type: ActionFlag, Flag: def.Flag})
		default:
			return nil, errors.NewMalformedRuleError(ruleName, fmt.Sprintf("unknown action type %q", def.Type))
		}
	}
	return actions, nil
}

func isComparisonOp(op ComparisonOperator) bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		return true
	}
	return false
}
