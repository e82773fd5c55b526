package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/signal"
)

func testContext() *RiskContext {
	return &RiskContext{
		EntityID:   "ord-100",
		EntityType: model.EntityTypeOrder,
		TenantID:   "tenant-a",
		Signals: []signal.RiskSignal{
			{Type: signal.SignalTypeOrder, Name: "HIGH_VALUE_ORDER", Value: "15000", Weight: 0.8, Source: "order"},
		},
		ContextData: map[string]any{
			"customer": map[string]any{
				"age":     float64(25),
				"email":   "buyer@example.com",
				"country": "DE",
			},
			"order": map[string]any{
				"amount": float64(15000),
			},
		},
	}
}

func TestResolvePath(t *testing.T) {
	ctx := testContext()

	v, ok := ctx.Resolve("contextData.customer.age")
	assert.True(t, ok)
	assert.Equal(t, float64(25), v)

	v, ok = ctx.Resolve("signals.HIGH_VALUE_ORDER.weight")
	assert.True(t, ok)
	assert.Equal(t, 0.8, v)

	v, ok = ctx.Resolve("entityType")
	assert.True(t, ok)
	assert.Equal(t, "ORDER", v)

	_, ok = ctx.Resolve("contextData.customer.missing")
	assert.False(t, ok)

	_, ok = ctx.Resolve("contextData.customer.age.nested")
	assert.False(t, ok)

	_, ok = ctx.Resolve("")
	assert.False(t, ok)
}

func TestEvaluateCondition_Operators(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name string
		key  string
		cond model.RuleCondition
		want bool
	}{
		{"equals match", "contextData.customer.country", model.RuleCondition{Operator: OpEquals, Value: "DE"}, true},
		{"equals mismatch", "contextData.customer.country", model.RuleCondition{Operator: OpEquals, Value: "FR"}, false},
		{"equals numeric cross type", "contextData.customer.age", model.RuleCondition{Operator: OpEquals, Value: 25}, true},
		{"not_equals", "contextData.customer.country", model.RuleCondition{Operator: OpNotEquals, Value: "FR"}, true},
		{"greater_than", "contextData.order.amount", model.RuleCondition{Operator: OpGreaterThan, Value: float64(10000)}, true},
		{"greater_than false", "contextData.order.amount", model.RuleCondition{Operator: OpGreaterThan, Value: float64(20000)}, false},
		{"less_than", "contextData.customer.age", model.RuleCondition{Operator: OpLessThan, Value: float64(30)}, true},
		{"greater_than_or_equal boundary", "contextData.customer.age", model.RuleCondition{Operator: OpGreaterThanOrEqual, Value: float64(25)}, true},
		{"less_than_or_equal boundary", "contextData.customer.age", model.RuleCondition{Operator: OpLessThanOrEqual, Value: float64(25)}, true},
		{"contains", "contextData.customer.email", model.RuleCondition{Operator: OpContains, Value: "@example"}, true},
		{"not_contains", "contextData.customer.email", model.RuleCondition{Operator: OpNotContains, Value: "@fraud"}, true},
		{"in", "contextData.customer.country", model.RuleCondition{Operator: OpIn, Value: []any{"DE", "AT", "CH"}}, true},
		{"not_in", "contextData.customer.country", model.RuleCondition{Operator: OpNotIn, Value: []any{"FR", "IT"}}, true},
		{"not_in present", "contextData.customer.country", model.RuleCondition{Operator: OpNotIn, Value: []any{"DE"}}, false},
		{"no operator fallback equality", "contextData.customer.country", model.RuleCondition{Value: "DE"}, true},
		{"unknown operator", "contextData.customer.age", model.RuleCondition{Operator: "between", Value: float64(10)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(tt.key, tt.cond, ctx))
		})
	}
}

func TestEvaluateCondition_NonNumericNeverPanics(t *testing.T) {
	ctx := testContext()

	// 数值比较作用在非数值上必须返回 false 而不是 panic
	for _, op := range []string{OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual} {
		cond := model.RuleCondition{Operator: op, Value: float64(10)}
		assert.False(t, EvaluateCondition("contextData.customer.email", cond, ctx), "operator %s", op)
	}

	// 规则侧操作数非数值同样失败
	cond := model.RuleCondition{Operator: OpGreaterThan, Value: "ten"}
	assert.False(t, EvaluateCondition("contextData.customer.age", cond, ctx))
}

func TestEvaluateCondition_MissingPath(t *testing.T) {
	ctx := testContext()

	// 路径缺失时普通比较失败
	assert.False(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpEquals, Value: "x"}, ctx))
	assert.False(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpGreaterThan, Value: float64(1)}, ctx))
	assert.False(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpContains, Value: "x"}, ctx))
	assert.False(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpIn, Value: []any{"x"}}, ctx))
	assert.False(t, EvaluateCondition("contextData.nope", model.RuleCondition{Value: "x"}, ctx))

	// 取反操作符对缺失值可以通过
	assert.True(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpNotEquals, Value: "x"}, ctx))
	assert.True(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpNotContains, Value: "x"}, ctx))
	assert.True(t, EvaluateCondition("contextData.nope", model.RuleCondition{Operator: OpNotIn, Value: []any{"x"}}, ctx))
}

func TestEvaluateCondition_InRequiresArray(t *testing.T) {
	ctx := testContext()

	assert.False(t, EvaluateCondition("contextData.customer.country", model.RuleCondition{Operator: OpIn, Value: "DE"}, ctx))
	assert.False(t, EvaluateCondition("contextData.customer.country", model.RuleCondition{Operator: OpNotIn, Value: "DE"}, ctx))
}
