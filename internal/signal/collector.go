package signal

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 信号名称
const (
	SignalHighValueOrder     = "HIGH_VALUE_ORDER"
	SignalVeryHighValueOrder = "VERY_HIGH_VALUE_ORDER"
	SignalHighItemCount      = "HIGH_ITEM_COUNT"
	SignalCODPayment         = "COD_PAYMENT"
	SignalBankTransfer       = "BANK_TRANSFER_PAYMENT"
	SignalAddressMismatch    = "ADDRESS_MISMATCH"
	SignalNewCustomer        = "NEW_CUSTOMER"
	SignalHighValueCustomer  = "HIGH_VALUE_CUSTOMER"
	SignalChargebackHistory  = "CHARGEBACK_HISTORY"
	SignalHighRefundRate     = "HIGH_REFUND_RATE"
	SignalRapidOrders        = "RAPID_ORDERS"
	SignalNewSeller          = "NEW_SELLER"
	SignalLowRatedSeller     = "LOW_RATED_SELLER"
	SignalHighComplaints     = "HIGH_COMPLAINT_SELLER"
	SignalMobileDevice       = "MOBILE_DEVICE"
	SignalSuspiciousIP       = "SUSPICIOUS_IP"
)

// 各信号阈值。均为严格大于比较，除非另有说明。
var (
	highValueThreshold     = decimal.NewFromInt(10000)
	veryHighValueThreshold = decimal.NewFromInt(50000)
	highSpendThreshold     = decimal.NewFromInt(100000)
)

const (
	highItemCountThreshold  = 10
	highComplaintThreshold  = 5
	lowRatingThreshold      = 3.0
	highRefundRateThreshold = 0.3
	rapidOrderWindow        = 24 * time.Hour
)

// IPReputation IP 信誉检查接口
//
// 默认实现只是一个最小启发式，不是真正的信誉库，
// 生产部署应注入外部信誉服务的适配器。
type IPReputation interface {
	IsSuspicious(ip string) bool
}

// Collector 信号收集器
type Collector struct {
	ipRep IPReputation

	highValue     decimal.Decimal
	veryHighValue decimal.Decimal
	maxItems      int
}

// NewCollector 创建信号收集器
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		ipRep:         heuristicIPReputation{},
		highValue:     highValueThreshold,
		veryHighValue: veryHighValueThreshold,
		maxItems:      highItemCountThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option 收集器选项
type Option func(*Collector)

// WithIPReputation 注入自定义 IP 信誉检查
func WithIPReputation(rep IPReputation) Option {
	return func(c *Collector) {
		if rep != nil {
			c.ipRep = rep
		}
	}
}

// WithOrderLimits 覆盖订单金额/商品数阈值，零值保留默认
func WithOrderLimits(high, veryHigh decimal.Decimal, maxItems int) Option {
	return func(c *Collector) {
		if high.IsPositive() {
			c.highValue = high
		}
		if veryHigh.IsPositive() {
			c.veryHighValue = veryHigh
		}
		if maxItems > 0 {
			c.maxItems = maxItems
		}
	}
}

var defaultCollector = NewCollector()

// CollectOrderRiskSignals 使用默认收集器派生订单风险信号
func CollectOrderRiskSignals(facts *OrderFacts) []RiskSignal {
	return defaultCollector.CollectOrderRiskSignals(facts)
}

// CollectOrderRiskSignals 从订单事实派生风险信号
//
// 纯函数，无 I/O。各阈值检查相互独立，可同时命中多条。
func (c *Collector) CollectOrderRiskSignals(facts *OrderFacts) []RiskSignal {
	if facts == nil {
		return nil
	}

	now := time.Now().UnixMilli()
	var signals []RiskSignal

	emit := func(typ SignalType, name string, value any, weight float64, source string, meta map[string]any) {
		signals = append(signals, RiskSignal{
			Type:      typ,
			Name:      name,
			Value:     value,
			Weight:    weight,
			Source:    source,
			Timestamp: now,
			Metadata:  meta,
		})
	}

	// 订单金额 (两档可同时命中)
	if facts.TotalAmount.GreaterThan(c.highValue) {
		emit(SignalTypeOrder, SignalHighValueOrder, facts.TotalAmount.String(), 0.8, "order", nil)
	}
	if facts.TotalAmount.GreaterThan(c.veryHighValue) {
		emit(SignalTypeOrder, SignalVeryHighValueOrder, facts.TotalAmount.String(), 1.0, "order", nil)
	}

	// 商品数
	if facts.ItemCount > c.maxItems {
		emit(SignalTypeOrder, SignalHighItemCount, facts.ItemCount, 0.3, "order", nil)
	}

	// 支付方式
	switch strings.ToUpper(facts.PaymentMethod) {
	case "CASH_ON_DELIVERY":
		emit(SignalTypePayment, SignalCODPayment, facts.PaymentMethod, 0.4, "payment", nil)
	case "BANK_TRANSFER":
		emit(SignalTypePayment, SignalBankTransfer, facts.PaymentMethod, 0.2, "payment", nil)
	}

	// 收货/账单地址不一致
	if facts.ShippingAddress != nil && facts.BillingAddress != nil &&
		!facts.ShippingAddress.Matches(facts.BillingAddress) {
		emit(SignalTypeAddress, SignalAddressMismatch, true, 0.6, "address", nil)
	}

	// 买家历史
	if h := facts.Customer; h != nil {
		if h.OrderCount == 0 {
			emit(SignalTypeCustomer, SignalNewCustomer, 0, 0.3, "customer_history", nil)
		}
		if h.TotalSpent.GreaterThan(highSpendThreshold) {
			// 高价值老客户，降低风险
			emit(SignalTypeCustomer, SignalHighValueCustomer, h.TotalSpent.String(), -0.2, "customer_history", nil)
		}
		if h.ChargebackCount > 0 {
			emit(SignalTypeCustomer, SignalChargebackHistory, h.ChargebackCount, 0.9, "customer_history", nil)
		}
		if h.OrderCount > 0 && float64(h.RefundCount) > highRefundRateThreshold*float64(h.OrderCount) {
			emit(SignalTypeCustomer, SignalHighRefundRate, h.RefundCount, 0.7, "customer_history", nil)
		}
		if h.LastOrderAt > 0 && now-h.LastOrderAt < rapidOrderWindow.Milliseconds() {
			emit(SignalTypeCustomer, SignalRapidOrders, h.LastOrderAt, 0.5, "customer_history", nil)
		}
	}

	// 卖家历史
	if h := facts.Seller; h != nil {
		if h.IsNewSeller {
			emit(SignalTypeSeller, SignalNewSeller, true, 0.4, "seller_history", nil)
		}
		if h.Rating < lowRatingThreshold {
			emit(SignalTypeSeller, SignalLowRatedSeller, h.Rating, 0.6, "seller_history", nil)
		}
		if h.ComplaintCount > highComplaintThreshold {
			emit(SignalTypeSeller, SignalHighComplaints, h.ComplaintCount, 0.8, "seller_history", nil)
		}
	}

	// 设备
	if strings.EqualFold(facts.DeviceType, "mobile") {
		emit(SignalTypeDevice, SignalMobileDevice, facts.DeviceType, 0.1, "device", map[string]any{"severity": "low"})
	}

	// IP 信誉
	if facts.IPAddress != "" && c.ipRep.IsSuspicious(facts.IPAddress) {
		emit(SignalTypeIP, SignalSuspiciousIP, facts.IPAddress, 0.7, "ip", nil)
	}

	return signals
}

// heuristicIPReputation 最小 IP 启发式
//
// 私有/回环地址显式豁免，仅保留地址 (0.0.0.0/8) 和广播段标记为可疑。
type heuristicIPReputation struct{}

func (heuristicIPReputation) IsSuspicious(ip string) bool {
	if isPrivateOrLoopback(ip) {
		return false
	}
	if strings.HasPrefix(ip, "0.") {
		return true
	}
	if strings.HasPrefix(ip, "255.") {
		return true
	}
	return false
}

func isPrivateOrLoopback(ip string) bool {
	if strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "192.168.") || strings.HasPrefix(ip, "127.") {
		return true
	}
	if ip == "::1" {
		return true
	}
	// 172.16.0.0 - 172.31.255.255
	if strings.HasPrefix(ip, "172.") {
		rest := strings.TrimPrefix(ip, "172.")
		dot := strings.Index(rest, ".")
		if dot > 0 {
			switch rest[:dot] {
			case "16", "17", "18", "19", "20", "21", "22", "23",
				"24", "25", "26", "27", "28", "29", "30", "31":
				return true
			}
		}
	}
	return false
}
