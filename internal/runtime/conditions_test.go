package runtime_test

import (
	"testing"

	"github.com/aretw0/canopy/internal/runtime"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/expr"
	"github.com/stretchr/testify/assert"
)

func TestConditions_Match(t *testing.T) {
	conds := runtime.NewConditions(expr.New(nil), nil)

	tests := []struct {
		name     string
		op       string
		actual   any
		expected any
		want     bool
	}{
		{"equals loose", domain.OpEquals, float64(3), "3", true},
		{"notEquals", domain.OpNotEquals, "a", "b", true},
		{"greaterThan coerces", domain.OpGreaterThan, "20", float64(15), true},
		{"greaterThanOrEqual", domain.OpGreaterThanOrEqual, float64(15), float64(15), true},
		{"lessThan", domain.OpLessThan, float64(1), float64(2), true},
		{"lessThanOrEqual non numeric", domain.OpLessThanOrEqual, "abc", float64(2), false},
		{"greaterThan nil", domain.OpGreaterThan, nil, float64(0), false},
		{"contains string", domain.OpContains, "hello", "ell", true},
		{"contains array", domain.OpContains, []any{"a", "b"}, "b", true},
		{"contains number is false", domain.OpContains, float64(12), float64(1), false},
		{"notContains array", domain.OpNotContains, []any{"a"}, "b", true},
		{"notContains number is false", domain.OpNotContains, float64(12), float64(3), false},
		{"notContains map is false", domain.OpNotContains, map[string]any{"a": 1}, "b", false},
		{"exists", domain.OpExists, "", nil, true},
		{"exists nil", domain.OpExists, nil, nil, false},
		{"notExists", domain.OpNotExists, nil, nil, true},
		{"regex", domain.OpRegex, "ana@example.com", `^[^@]+@example\.com$`, true},
		{"regex on number is false", domain.OpRegex, float64(5), `\d`, false},
		{"invalid regex is false", domain.OpRegex, "x", `(`, false},
		{"unknown operator", "between", float64(1), float64(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conds.Match(tt.op, tt.actual, tt.expected))
		})
	}
}

func TestConditions_All(t *testing.T) {
	conds := runtime.NewConditions(expr.New(nil), nil)
	scope := expr.MapScope{
		"user":  map[string]any{"role": "admin", "age": float64(30)},
		"state": map[string]any{"step": float64(2)},
	}

	isAdmin := domain.Condition{Path: "user.role", Operator: domain.OpEquals, Value: "admin"}
	isMinor := domain.Condition{Path: "user.age", Operator: domain.OpLessThan, Value: float64(18)}
	atStep := domain.Condition{Path: "state.step", Operator: domain.OpEquals, Value: "{{ 1 + 1 }}"}

	assert.True(t, conds.All(nil, "", scope))
	assert.True(t, conds.All([]domain.Condition{isAdmin, atStep}, "", scope))
	assert.False(t, conds.All([]domain.Condition{isAdmin, isMinor}, domain.LogicAnd, scope))
	assert.True(t, conds.All([]domain.Condition{isMinor, isAdmin}, domain.LogicOr, scope))
	assert.True(t, conds.All([]domain.Condition{isMinor, isAdmin}, "or", scope))
	assert.False(t, conds.All([]domain.Condition{isMinor}, domain.LogicOr, scope))

	missing := domain.Condition{Path: "user.address.city", Operator: domain.OpNotExists}
	assert.True(t, conds.Eval(missing, scope))
}
