// Package metrics 提供 meridian-risk 服务的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meridian_risk"

// 风险评估指标
var (
	// AssessmentsTotal 风险评估总数
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "风险评估总数",
		},
		[]string{"entity_type", "risk_level"},
	)

	// AssessmentDuration 风险评估耗时
	AssessmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "风险评估耗时(秒)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"entity_type"},
	)

	// AssessmentErrorsTotal 评估失败总数
	AssessmentErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_errors_total",
			Help:      "评估失败总数",
		},
		[]string{"reason"}, // validation/persistence/internal
	)

	// RiskScoreHistogram 归一化风险评分分布
	RiskScoreHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score_distribution",
			Help:      "归一化风险评分分布",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)
)

// 规则引擎指标
var (
	// RuleEvaluationsTotal 规则评估总数
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_evaluations_total",
			Help:      "规则评估总数",
		},
		[]string{"rule_type", "result"}, // result: matched/not_matched/failed
	)

	// ActiveRulesGauge 当前活跃规则数
	ActiveRulesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rules_total",
			Help:      "当前活跃规则数",
		},
		[]string{"tenant"},
	)

	// RuleCacheTotal 规则缓存访问总数
	RuleCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_cache_total",
			Help:      "规则缓存访问总数",
		},
		[]string{"result"}, // hit/miss/error
	)
)

// 名单指标
var (
	// ListHitsTotal 黑白名单命中总数
	ListHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_hits_total",
			Help:      "黑白名单命中总数",
		},
		[]string{"list"}, // blacklist/whitelist
	)
)

// 人工审核指标
var (
	// ReviewsTotal 人工复核总数
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "人工复核总数",
		},
		[]string{"decision"}, // approved/rejected
	)
)

// 风险告警指标
var (
	// RiskAlertsTotal 风险告警总数
	RiskAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_alerts_total",
			Help:      "风险告警总数",
		},
		[]string{"risk_level"},
	)
)

// Kafka 指标
var (
	// KafkaMessagesConsumed Kafka 消费消息数
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_consumed_total",
			Help:      "Kafka 消费消息总数",
		},
		[]string{"topic"},
	)

	// KafkaMessagesProduced Kafka 生产消息数
	KafkaMessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_produced_total",
			Help:      "Kafka 生产消息总数",
		},
		[]string{"topic"},
	)
)

// Helper functions

// RecordAssessment 记录一次风险评估
func RecordAssessment(entityType, riskLevel string, normalizedScore, durationSeconds float64) {
	AssessmentsTotal.WithLabelValues(entityType, riskLevel).Inc()
	AssessmentDuration.WithLabelValues(entityType).Observe(durationSeconds)
	RiskScoreHistogram.Observe(normalizedScore)
}

// RecordAssessmentError 记录评估失败
func RecordAssessmentError(reason string) {
	AssessmentErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordRuleEvaluation 记录规则评估
func RecordRuleEvaluation(ruleType, result string) {
	RuleEvaluationsTotal.WithLabelValues(ruleType, result).Inc()
}

// RecordRuleCache 记录规则缓存访问
func RecordRuleCache(result string) {
	RuleCacheTotal.WithLabelValues(result).Inc()
}

// RecordListHit 记录名单命中
func RecordListHit(list string) {
	ListHitsTotal.WithLabelValues(list).Inc()
}

// RecordReview 记录人工复核
func RecordReview(decision string) {
	ReviewsTotal.WithLabelValues(decision).Inc()
}

// RecordRiskAlert 记录风险告警
func RecordRiskAlert(riskLevel string) {
	RiskAlertsTotal.WithLabelValues(riskLevel).Inc()
}

// RecordKafkaMessage 记录 Kafka 消息
func RecordKafkaMessage(topic string, produced bool) {
	if produced {
		KafkaMessagesProduced.WithLabelValues(topic).Inc()
	} else {
		KafkaMessagesConsumed.WithLabelValues(topic).Inc()
	}
}
