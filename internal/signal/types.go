// Package signal 从订单/买家/卖家事实派生风险信号
package signal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SignalType 信号类别
type SignalType string

const (
	SignalTypeOrder    SignalType = "ORDER"    // 订单属性
	SignalTypePayment  SignalType = "PAYMENT"  // 支付方式
	SignalTypeAddress  SignalType = "ADDRESS"  // 地址一致性
	SignalTypeCustomer SignalType = "CUSTOMER" // 买家历史
	SignalTypeSeller   SignalType = "SELLER"   // 卖家历史
	SignalTypeDevice   SignalType = "DEVICE"   // 设备
	SignalTypeIP       SignalType = "IP"       // IP 信誉
)

// RiskSignal 风险信号 (一次观测到的事实及其风险权重)
//
// 权重可为负，负权重表示降低风险。信号创建后不可变。
type RiskSignal struct {
	Type      SignalType     `json:"signal_type"`
	Name      string         `json:"signal_name"`
	Value     any            `json:"value"`
	Weight    float64        `json:"weight"`
	Source    string         `json:"source"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Address 订单地址
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Matches 比较两个地址是否一致 (逐字段 trim 后忽略大小写)
func (a *Address) Matches(other *Address) bool {
	if a == nil || other == nil {
		return true
	}
	return fieldEqual(a.Street, other.Street) &&
		fieldEqual(a.City, other.City) &&
		fieldEqual(a.State, other.State) &&
		fieldEqual(a.PostalCode, other.PostalCode) &&
		fieldEqual(a.Country, other.Country)
}

func fieldEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CustomerHistory 买家历史事实
type CustomerHistory struct {
	OrderCount      int             `json:"order_count"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	ChargebackCount int             `json:"chargeback_count"`
	RefundCount     int             `json:"refund_count"`
	LastOrderAt     int64           `json:"last_order_at"` // Unix 毫秒，0 表示无历史订单
}

// SellerHistory 卖家历史事实
type SellerHistory struct {
	IsNewSeller    bool    `json:"is_new_seller"`
	Rating         float64 `json:"rating"`
	ComplaintCount int     `json:"complaint_count"`
}

// OrderFacts 订单评估输入事实
//
// 由调用方 (下单流程、Kafka 消费者) 从自身领域数据构建。
type OrderFacts struct {
	OrderID         string           `json:"order_id"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	ItemCount       int              `json:"item_count"`
	PaymentMethod   string           `json:"payment_method"`
	ShippingAddress *Address         `json:"shipping_address,omitempty"`
	BillingAddress  *Address         `json:"billing_address,omitempty"`
	Customer        *CustomerHistory `json:"customer,omitempty"`
	Seller          *SellerHistory   `json:"seller,omitempty"`
	DeviceType      string           `json:"device_type,omitempty"`
	IPAddress       string           `json:"ip_address,omitempty"`
}
