// Package kafka 提供风险评估服务的 Kafka 消息处理
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-risk/internal/metrics"
	"github.com/meridian-commerce/meridian-risk/internal/service"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

const (
	TopicOrderEvents = "order-events"
	TopicRiskAlerts  = "risk-alerts"
)

// Producer Kafka 生产者
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer 创建 Kafka 生产者
func NewProducer(brokers []string, clientID string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy
	config.ClientID = clientID

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{producer: producer, enabled: true}, nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// SetEnabled 启用或禁用生产者
func (p *Producer) SetEnabled(enabled bool) {
	p.enabled = enabled
}

// SendRiskAlert 发送风险告警
func (p *Producer) SendRiskAlert(ctx context.Context, alert *service.RiskAlertMessage) error {
	if !p.enabled {
		return nil
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     TopicRiskAlerts,
		Key:       sarama.StringEncoder(alert.TenantID + ":" + alert.EntityID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("entity_type"), Value: []byte(alert.EntityType)},
			{Key: []byte("severity"), Value: []byte(alert.Severity)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("failed to send risk alert",
			zap.String("alert_id", alert.AlertID),
			zap.Error(err))
		return err
	}

	metrics.RecordKafkaMessage(TopicRiskAlerts, true)
	logger.Debug("risk alert sent",
		zap.String("alert_id", alert.AlertID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// RiskAlertCallback 创建风险告警回调，用于注入评估服务
func (p *Producer) RiskAlertCallback() func(ctx context.Context, alert *service.RiskAlertMessage) error {
	return func(ctx context.Context, alert *service.RiskAlertMessage) error {
		return p.SendRiskAlert(ctx, alert)
	}
}
