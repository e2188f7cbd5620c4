package feature

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Operator is the tag of a rule condition.
type Operator string

const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "neq"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpExists         Operator = "exists"
)

// RuleGroup is a conjunction of conditions. When every condition matches,
// the group's Value is served.
type RuleGroup struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Value      any         `json:"value" yaml:"value"`
}

// Matches reports whether all conditions hold for attrs.
func (g RuleGroup) Matches(attrs map[string]any) bool {
	if len(g.Conditions) == 0 {
		return false
	}
	for _, c := range g.Conditions {
		if !c.Matches(attrs) {
			return false
		}
	}
	return true
}

// Condition compares one user attribute against an operand.
// A missing attribute never matches, whatever the operator.
type Condition struct {
	Attribute string   `json:"attribute" yaml:"attribute"`
	Operator  Operator `json:"operator" yaml:"operator"`
	Value     any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Matches evaluates the condition against attrs.
func (c Condition) Matches(attrs map[string]any) bool {
	actual, ok := attrs[c.Attribute]
	if !ok || actual == nil {
		return false
	}

	switch c.Operator {
	case OpExists:
		return true
	case OpEquals:
		return equal(actual, c.Value)
	case OpNotEquals:
		return !equal(actual, c.Value)
	case OpIn:
		return inList(actual, c.Value)
	case OpNotIn:
		return !inList(actual, c.Value)
	case OpGreaterThan:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp > 0
	case OpGreaterOrEqual:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp >= 0
	case OpLessThan:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp < 0
	case OpLessOrEqual:
		cmp, ok := compare(actual, c.Value)
		return ok && cmp <= 0
	case OpContains:
		if list, ok := asList(actual); ok {
			for _, item := range list {
				if equal(item, c.Value) {
					return true
				}
			}
			return false
		}
		s, ok1 := actual.(string)
		sub, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.Contains(s, sub)
	case OpStartsWith:
		s, ok1 := actual.(string)
		prefix, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.HasPrefix(s, prefix)
	case OpEndsWith:
		s, ok1 := actual.(string)
		suffix, ok2 := c.Value.(string)
		return ok1 && ok2 && strings.HasSuffix(s, suffix)
	default:
		return false
	}
}

// Validate rejects unknown operators and operands that do not fit the operator.
func (c Condition) Validate() error {
	if c.Attribute == "" {
		return errors.Join(ErrInvalidCondition, errors.New("attribute cannot be empty"))
	}

	switch c.Operator {
	case OpExists:
		return nil
	case OpEquals, OpNotEquals, OpContains:
		if _, ok := scalar(c.Value); !ok {
			return errors.Join(ErrInvalidCondition,
				fmt.Errorf("operator %q on %q needs a scalar operand", c.Operator, c.Attribute))
		}
	case OpIn, OpNotIn:
		list, ok := asList(c.Value)
		if !ok || len(list) == 0 {
			return errors.Join(ErrInvalidCondition,
				fmt.Errorf("operator %q on %q needs a non-empty list operand", c.Operator, c.Attribute))
		}
		for _, item := range list {
			if _, ok := scalar(item); !ok {
				return errors.Join(ErrInvalidCondition,
					fmt.Errorf("operator %q on %q has a non-scalar list item", c.Operator, c.Attribute))
			}
		}
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		v, ok := scalar(c.Value)
		if _, isBool := v.(bool); !ok || isBool {
			return errors.Join(ErrInvalidCondition,
				fmt.Errorf("operator %q on %q needs a number or string operand", c.Operator, c.Attribute))
		}
	case OpStartsWith, OpEndsWith:
		if _, ok := c.Value.(string); !ok {
			return errors.Join(ErrInvalidCondition,
				fmt.Errorf("operator %q on %q needs a string operand", c.Operator, c.Attribute))
		}
	default:
		return errors.Join(ErrUnknownOperator, fmt.Errorf("operator %q", c.Operator))
	}
	return nil
}

// scalar normalises v to float64, string or bool.
func scalar(v any) (any, bool) {
	switch n := v.(type) {
	case string, bool:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return nil, false
}

func equal(a, b any) bool {
	x, ok1 := scalar(a)
	y, ok2 := scalar(b)
	return ok1 && ok2 && x == y
}

// compare orders two numbers or two strings.
func compare(a, b any) (int, bool) {
	x, ok1 := scalar(a)
	y, ok2 := scalar(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch xv := x.(type) {
	case float64:
		yv, ok := y.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case xv < yv:
			return -1, true
		case xv > yv:
			return 1, true
		}
		return 0, true
	case string:
		yv, ok := y.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(xv, yv), true
	}
	return 0, false
}

func inList(v, list any) bool {
	items, ok := asList(list)
	if !ok {
		return false
	}
	for _, item := range items {
		if equal(v, item) {
			return true
		}
	}
	return false
}

// asList accepts any slice or array, such as []any from JSON or YAML and []string from Go callers.
func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
