package engine

import (
	"math"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

// 条件操作符
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpIn                 = "in"
	OpNotIn              = "not_in"
)

// EvaluateCondition 对上下文评估单个条件
//
// key 是上下文点路径。路径缺失时所有比较失败，
// 只有 not_equals/not_contains/not_in 可以通过。
// 数值比较要求解析值为数值，字符串包含要求规则侧操作数为字符串，
// in/not_in 要求规则侧操作数为数组；类型不符一律判为不满足，绝不 panic。
// 未知操作符判为不满足。
func EvaluateCondition(key string, cond model.RuleCondition, ctx *RiskContext) bool {
	value, found := ctx.Resolve(key)

	switch cond.Operator {
	case "":
		// 无操作符时退化为直接相等比较
		return found && valuesEqual(value, cond.Value)

	case OpEquals:
		return found && valuesEqual(value, cond.Value)

	case OpNotEquals:
		return !found || !valuesEqual(value, cond.Value)

	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		if !found {
			return false
		}
		left, lok := toFloat(value)
		right, rok := toFloat(cond.Value)
		if !lok || !rok {
			return false
		}
		switch cond.Operator {
		case OpGreaterThan:
			return left > right
		case OpLessThan:
			return left < right
		case OpGreaterThanOrEqual:
			return left >= right
		default:
			return left <= right
		}

	case OpContains:
		if !found {
			return false
		}
		s, sok := value.(string)
		sub, subok := cond.Value.(string)
		return sok && subok && strings.Contains(s, sub)

	case OpNotContains:
		if !found {
			return true
		}
		s, sok := value.(string)
		sub, subok := cond.Value.(string)
		if !sok || !subok {
			return false
		}
		return !strings.Contains(s, sub)

	case OpIn:
		if !found {
			return false
		}
		list, ok := toSlice(cond.Value)
		return ok && sliceContains(list, value)

	case OpNotIn:
		list, ok := toSlice(cond.Value)
		if !ok {
			return false
		}
		if !found {
			return true
		}
		return !sliceContains(list, value)

	default:
		return false
	}
}

// valuesEqual 宽松相等：数值跨类型归一后比较，其余走深比较
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// toFloat 将任意数值类型归一为 float64
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
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
	case decimal.Decimal:
		return n.InexactFloat64(), true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}

func sliceContains(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}
