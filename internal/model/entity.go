// Package model 定义风控服务的数据模型
package model

// EntityType 风险评估对象类型
type EntityType string

const (
	EntityTypeCustomer EntityType = "CUSTOMER" // 买家
	EntityTypeSeller   EntityType = "SELLER"   // 卖家
	EntityTypeOrder    EntityType = "ORDER"    // 订单
	EntityTypePayment  EntityType = "PAYMENT"  // 支付
)

// ValidEntityTypes 允许的评估对象类型集合
var ValidEntityTypes = []EntityType{
	EntityTypeCustomer,
	EntityTypeSeller,
	EntityTypeOrder,
	EntityTypePayment,
}

// IsValid 检查对象类型是否合法
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeCustomer, EntityTypeSeller, EntityTypeOrder, EntityTypePayment:
		return true
	default:
		return false
	}
}

// JSONMap 通用 JSON 对象字段 (jsonb)
type JSONMap map[string]any

// StringSlice 通用 JSON 字符串数组字段 (jsonb)
type StringSlice []string
