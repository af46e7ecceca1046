// Package condition evaluates workflow stage conditions against a
// request's attribute map. Evaluation is a total function: missing
// fields and non-comparable types yield a no-match result, never an
// error. Unknown operators are rejected at definition-validation time
// and therefore never reach evaluation.
package condition

import (
	"strings"

	"github.com/openhrm/workflow-engine/internal/models"
)

// Evaluate applies a single condition to the attribute map.
// A missing field matches nothing, which makes the negative operators
// (ne, not_in) evaluate true and every other operator false.
func Evaluate(c models.WorkflowCondition, attrs models.Attributes) bool {
	field, ok := attrs[c.Field]
	if !ok {
		return c.Operator == models.OpNe || c.Operator == models.OpNotIn
	}

	switch c.Operator {
	case models.OpEq:
		return field.Equal(c.Value)
	case models.OpNe:
		return !field.Equal(c.Value)
	case models.OpGt:
		return compare(field, c.Value, func(n int) bool { return n > 0 })
	case models.OpLt:
		return compare(field, c.Value, func(n int) bool { return n < 0 })
	case models.OpGte:
		return compare(field, c.Value, func(n int) bool { return n >= 0 })
	case models.OpLte:
		return compare(field, c.Value, func(n int) bool { return n <= 0 })
	case models.OpIn:
		return member(field, c.Value)
	case models.OpNotIn:
		return !member(field, c.Value)
	case models.OpContains:
		return strings.Contains(field.AsString(), c.Value.AsString())
	}

	// Unknown operators are a configuration error caught at load time;
	// treat as no match if one ever slips through.
	return false
}

// StageApplies reports whether every condition of the stage holds for
// the attribute map. A stage with no conditions always applies.
func StageApplies(stage models.WorkflowStage, attrs models.Attributes) bool {
	for _, c := range stage.Conditions {
		if !Evaluate(c, attrs) {
			return false
		}
	}
	return true
}

func compare(field, value models.Value, match func(int) bool) bool {
	n, ok := field.Compare(value)
	if !ok {
		return false
	}
	return match(n)
}

func member(field, set models.Value) bool {
	want := field.AsString()
	for _, m := range set.Members() {
		if m == want {
			return true
		}
	}
	return false
}
