package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-risk/internal/metrics"
	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/service"
	"github.com/meridian-commerce/meridian-risk/internal/signal"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

// Consumer 订单事件消费者，拉取订单事件并触发风险评估
type Consumer struct {
	client     sarama.ConsumerGroup
	assessment *service.AssessmentService
	collector  *signal.Collector

	ready chan bool
	ctx   context.Context
	wg    sync.WaitGroup
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers []string
	GroupID string
}

// NewConsumer 创建 Kafka 消费者
func NewConsumer(cfg *ConsumerConfig, assessment *service.AssessmentService, collector *signal.Collector) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		client:     client,
		assessment: assessment,
		collector:  collector,
		ready:      make(chan bool),
	}, nil
}

// Start 启动消费者
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx = ctx
	topics := []string{TopicOrderEvents}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.client.Consume(ctx, topics, c); err != nil {
				logger.Error("consumer error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
			c.ready = make(chan bool)
		}
	}()

	<-c.ready
	logger.Info("kafka consumer started", zap.Strings("topics", topics))
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop() error {
	c.wg.Wait()
	return c.client.Close()
}

// Setup 初始化
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	close(c.ready)
	return nil
}

// Cleanup 清理
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			metrics.RecordKafkaMessage(message.Topic, false)
			if err := c.handleMessage(c.ctx, message); err != nil {
				logger.Error("failed to handle message",
					zap.String("topic", message.Topic),
					zap.Error(err))
			}

			session.MarkMessage(message, "")

		case <-c.ctx.Done():
			return nil
		}
	}
}

// handleMessage 处理消息
func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	switch msg.Topic {
	case TopicOrderEvents:
		return c.handleOrderEvent(ctx, msg.Value)
	default:
		logger.Warn("unknown topic", zap.String("topic", msg.Topic))
	}
	return nil
}

// OrderEventMessage 订单事件消息
type OrderEventMessage struct {
	EventType       string              `json:"event_type"` // CREATED, PAID, CANCELLED
	TenantID        string              `json:"tenant_id"`
	OrderID         string              `json:"order_id"`
	TotalAmount     string              `json:"total_amount"`
	ItemCount       int                 `json:"item_count"`
	PaymentMethod   string              `json:"payment_method"`
	ShippingAddress *signal.Address     `json:"shipping_address,omitempty"`
	BillingAddress  *signal.Address     `json:"billing_address,omitempty"`
	Customer        *OrderEventCustomer `json:"customer,omitempty"`
	Seller          *OrderEventSeller   `json:"seller,omitempty"`
	DeviceType      string              `json:"device_type,omitempty"`
	IPAddress       string              `json:"ip_address,omitempty"`
}

// OrderEventCustomer 订单事件中的买家历史
type OrderEventCustomer struct {
	OrderCount      int    `json:"order_count"`
	TotalSpent      string `json:"total_spent"`
	ChargebackCount int    `json:"chargeback_count"`
	RefundCount     int    `json:"refund_count"`
	LastOrderAt     int64  `json:"last_order_at"`
}

// OrderEventSeller 订单事件中的卖家历史
type OrderEventSeller struct {
	IsNewSeller    bool    `json:"is_new_seller"`
	Rating         float64 `json:"rating"`
	ComplaintCount int     `json:"complaint_count"`
}

// handleOrderEvent 处理订单事件，对新建/支付订单执行风险评估
func (c *Consumer) handleOrderEvent(ctx context.Context, data []byte) error {
	var msg OrderEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	switch msg.EventType {
	case "CREATED", "PAID":
	default:
		// 取消/退款等事件不触发评估
		return nil
	}

	facts := orderFacts(&msg)
	signals := c.collector.CollectOrderRiskSignals(facts)

	result, err := c.assessment.AssessRisk(ctx, &service.AssessRiskRequest{
		TenantID:   msg.TenantID,
		EntityID:   msg.OrderID,
		EntityType: model.EntityTypeOrder,
		Signals:    signals,
		ContextData: map[string]any{
			"event_type":     msg.EventType,
			"payment_method": msg.PaymentMethod,
		},
	})
	if err != nil {
		return err
	}

	logger.Debug("order event assessed",
		zap.String("order_id", msg.OrderID),
		zap.String("risk_level", string(result.Score.RiskLevel)),
		zap.Bool("should_block", result.ShouldBlock))

	return nil
}

// orderFacts 将订单事件转换为评估输入事实
func orderFacts(msg *OrderEventMessage) *signal.OrderFacts {
	amount, _ := decimal.NewFromString(msg.TotalAmount)

	facts := &signal.OrderFacts{
		OrderID:         msg.OrderID,
		TotalAmount:     amount,
		ItemCount:       msg.ItemCount,
		PaymentMethod:   msg.PaymentMethod,
		ShippingAddress: msg.ShippingAddress,
		BillingAddress:  msg.BillingAddress,
		DeviceType:      msg.DeviceType,
		IPAddress:       msg.IPAddress,
	}

	if msg.Customer != nil {
		spent, _ := decimal.NewFromString(msg.Customer.TotalSpent)
		facts.Customer = &signal.CustomerHistory{
			OrderCount:      msg.Customer.OrderCount,
			TotalSpent:      spent,
			ChargebackCount: msg.Customer.ChargebackCount,
			RefundCount:     msg.Customer.RefundCount,
			LastOrderAt:     msg.Customer.LastOrderAt,
		}
	}
	if msg.Seller != nil {
		facts.Seller = &signal.SellerHistory{
			IsNewSeller:    msg.Seller.IsNewSeller,
			Rating:         msg.Seller.Rating,
			ComplaintCount: msg.Seller.ComplaintCount,
		}
	}

	return facts
}
