// Package service 提供风险评估服务的业务逻辑
//
// ========================================
// AssessmentService 对接说明
// ========================================
//
// ## 功能概述
// AssessmentService 是评估编排器：校验请求、加载租户规则、执行规则
// 引擎、聚合评分并落库，是订单/卖家流程的前置风险守门员。
//
// ## 调用方
// - 上游业务流程 (下单、卖家入驻) 通过进程内调用 AssessRisk
// - kafka 消费者将 order-events 消息转成评估请求后调用 AssessRisk
//
// ## 消息输出 (Kafka Producer)
// - Topic: risk-alerts
// - 消息类型: RiskAlertMessage
// - 触发条件: 评估结果为 HIGH/CRITICAL 或建议拦截/暂扣
//
// ========================================
package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-risk/internal/engine"
	"github.com/meridian-commerce/meridian-risk/internal/metrics"
	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/signal"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

const noRulesRecommendation = "No risk rules configured"

// RuleSource 租户活跃规则来源
type RuleSource interface {
	ActiveRules(ctx context.Context, tenantID string) ([]*model.RiskRule, error)
}

// AssessmentPersister 评估结果落库
type AssessmentPersister interface {
	Persist(ctx context.Context, score *model.RiskScore, events []*model.RiskEvent) (*model.RiskProfile, error)
}

// ValidationError 请求校验失败，聚合全部违规项
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid assessment request: " + strings.Join(e.Violations, "; ")
}

// AssessRiskRequest 评估请求
type AssessRiskRequest struct {
	TenantID    string              `json:"tenant_id"`
	EntityID    string              `json:"entity_id"`
	EntityType  model.EntityType    `json:"entity_type"`
	Signals     []signal.RiskSignal `json:"signals"`
	ContextData map[string]any      `json:"context_data,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
}

// AssessmentResult 评估结果
type AssessmentResult struct {
	Score           *model.RiskScore     `json:"score"`
	Profile         *model.RiskProfile   `json:"profile,omitempty"`
	Events          []*model.RiskEvent   `json:"events,omitempty"`
	Evaluations     []*engine.Evaluation `json:"evaluations,omitempty"`
	Recommendations []string             `json:"recommendations"`
	ShouldBlock     bool                 `json:"should_block"`
	ShouldHold      bool                 `json:"should_hold"`
	ShouldReview    bool                 `json:"should_review"`
	Confidence      float64              `json:"confidence"`
}

// RiskAlertMessage 风险告警消息
type RiskAlertMessage struct {
	AlertID     string         `json:"alert_id"`
	TenantID    string         `json:"tenant_id"`
	EntityID    string         `json:"entity_id"`
	EntityType  string         `json:"entity_type"`
	RiskLevel   string         `json:"risk_level"`
	Severity    string         `json:"severity"`
	TotalScore  float64        `json:"total_score"`
	ShouldBlock bool           `json:"should_block"`
	ShouldHold  bool           `json:"should_hold"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
	CreatedAt   int64          `json:"created_at"`
}

// AssessmentService 风险评估编排器
type AssessmentService struct {
	rules      RuleSource
	persister  AssessmentPersister
	thresholds engine.Thresholds

	// Kafka 生产者 (通过回调设置)
	onRiskAlert func(ctx context.Context, alert *RiskAlertMessage) error
}

// NewAssessmentService 创建风险评估服务
func NewAssessmentService(rules RuleSource, persister AssessmentPersister, thresholds engine.Thresholds) *AssessmentService {
	return &AssessmentService{
		rules:      rules,
		persister:  persister,
		thresholds: thresholds,
	}
}

// SetOnRiskAlert 设置风险告警回调
func (s *AssessmentService) SetOnRiskAlert(fn func(ctx context.Context, alert *RiskAlertMessage) error) {
	s.onRiskAlert = fn
}

// AssessRisk 执行一次风险评估
//
// 校验失败与落库失败向调用方返回错误；单条规则的评估异常已在
// 引擎层降级，不会中断整次评估。租户无规则时返回安全默认结果，
// 不落库。
func (s *AssessmentService) AssessRisk(ctx context.Context, req *AssessRiskRequest) (*AssessmentResult, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		metrics.RecordAssessmentError("validation")
		return nil, err
	}

	rules, err := s.rules.ActiveRules(ctx, req.TenantID)
	if err != nil {
		metrics.RecordAssessmentError("rules")
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	// 无规则是配置缺口而非错误，返回安全默认结果
	if len(rules) == 0 {
		logger.Warn("no active rules for tenant, returning safe default",
			zap.String("tenant_id", req.TenantID),
			zap.String("entity_id", req.EntityID))
		return s.noRulesResult(req), nil
	}

	rctx := &engine.RiskContext{
		EntityID:    req.EntityID,
		EntityType:  req.EntityType,
		TenantID:    req.TenantID,
		Signals:     req.Signals,
		ContextData: req.ContextData,
		Metadata:    req.Metadata,
	}

	evals := engine.EvaluateRules(rules, rctx)

	byID := make(map[string]*model.RiskRule, len(rules))
	for _, r := range rules {
		byID[r.RuleID] = r
	}
	for _, e := range evals {
		result := "not_matched"
		if e.Matched {
			result = "matched"
		} else if strings.HasPrefix(e.Reason, "rule evaluation failed") {
			result = "failed"
		}
		ruleType := ""
		if rule := byID[e.RuleID]; rule != nil {
			ruleType = string(rule.Type)
		}
		metrics.RecordRuleEvaluation(ruleType, result)
	}

	agg := engine.CalculateRiskScore(evals, s.thresholds)

	score := buildScore(req, agg)
	events := buildEvents(req, byID, evals, agg)

	profile, err := s.persister.Persist(ctx, score, events)
	if err != nil {
		metrics.RecordAssessmentError("persistence")
		return nil, fmt.Errorf("persist assessment: %w", err)
	}

	s.maybeAlert(ctx, req, agg, score)

	normalized := 0.0
	if agg.MaxPossibleScore > 0 {
		normalized = math.Abs(agg.TotalScore) / agg.MaxPossibleScore
	}
	metrics.RecordAssessment(string(req.EntityType), string(agg.RiskLevel), normalized, time.Since(start).Seconds())

	logger.Info("risk assessment completed",
		zap.String("tenant_id", req.TenantID),
		zap.String("entity_id", req.EntityID),
		zap.String("entity_type", string(req.EntityType)),
		zap.String("risk_level", string(agg.RiskLevel)),
		zap.Float64("total_score", agg.TotalScore),
		zap.Bool("should_block", agg.ShouldBlock),
		zap.Int("matched_events", len(events)))

	return &AssessmentResult{
		Score:           score,
		Profile:         profile,
		Events:          events,
		Evaluations:     evals,
		Recommendations: agg.Recommendations,
		ShouldBlock:     agg.ShouldBlock,
		ShouldHold:      agg.ShouldHold,
		ShouldReview:    agg.ShouldReview,
		Confidence:      agg.Confidence,
	}, nil
}

// validateRequest 聚合校验全部违规项，一次性返回
func validateRequest(req *AssessRiskRequest) error {
	var violations []string

	if req.EntityID == "" {
		violations = append(violations, "entityId is required")
	}
	if req.TenantID == "" {
		violations = append(violations, "tenantId is required")
	}
	if !req.EntityType.IsValid() {
		violations = append(violations, fmt.Sprintf("entityType %q is not supported", req.EntityType))
	}
	for i, sig := range req.Signals {
		if sig.Type == "" {
			violations = append(violations, fmt.Sprintf("signals[%d]: signalType is required", i))
		}
		if sig.Name == "" {
			violations = append(violations, fmt.Sprintf("signals[%d]: signalName is required", i))
		}
		if math.IsNaN(sig.Weight) || math.IsInf(sig.Weight, 0) {
			violations = append(violations, fmt.Sprintf("signals[%d]: weight must be a finite number", i))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// noRulesResult 无规则安全默认结果，不落库
func (s *AssessmentService) noRulesResult(req *AssessRiskRequest) *AssessmentResult {
	score := &model.RiskScore{
		ScoreID:         uuid.New().String(),
		TenantID:        req.TenantID,
		EntityID:        req.EntityID,
		EntityType:      req.EntityType,
		RiskLevel:       model.RiskLevelLow,
		RuleScores:      model.JSONMap{},
		Confidence:      1.0,
		Recommendations: model.StringSlice{noRulesRecommendation},
		Status:          model.RiskScoreStatusCalculated,
		CreatedAt:       time.Now().UnixMilli(),
	}
	return &AssessmentResult{
		Score:           score,
		Recommendations: []string{noRulesRecommendation},
		Confidence:      1.0,
	}
}

// buildScore 由聚合结果构建评分记录
func buildScore(req *AssessRiskRequest, agg *engine.Score) *model.RiskScore {
	ruleScores := make(model.JSONMap, len(agg.RuleScores))
	for id, v := range agg.RuleScores {
		ruleScores[id] = v
	}

	blockReason := ""
	if agg.ShouldBlock {
		for _, rec := range agg.Recommendations {
			if strings.HasPrefix(rec, "Block: ") {
				blockReason = strings.TrimPrefix(rec, "Block: ")
				break
			}
		}
	}

	return &model.RiskScore{
		ScoreID:          uuid.New().String(),
		TenantID:         req.TenantID,
		EntityID:         req.EntityID,
		EntityType:       req.EntityType,
		TotalScore:       agg.TotalScore,
		MaxPossibleScore: agg.MaxPossibleScore,
		RiskLevel:        agg.RiskLevel,
		RuleScores:       ruleScores,
		Confidence:       agg.Confidence,
		ShouldBlock:      agg.ShouldBlock,
		ShouldHold:       agg.ShouldHold,
		ShouldReview:     agg.ShouldReview,
		Recommendations:  model.StringSlice(agg.Recommendations),
		IsBlocked:        agg.ShouldBlock,
		BlockReason:      blockReason,
		Status:           model.RiskScoreStatusCalculated,
	}
}

// buildEvents 为每条命中规则生成一条事件，严重度统一取整体风险级别
func buildEvents(req *AssessRiskRequest, rulesByID map[string]*model.RiskRule, evals []*engine.Evaluation, agg *engine.Score) []*model.RiskEvent {
	severity := agg.RiskLevel.Severity()

	var events []*model.RiskEvent
	for _, e := range evals {
		if !e.Matched {
			continue
		}
		event := &model.RiskEvent{
			EventID:     uuid.New().String(),
			TenantID:    req.TenantID,
			EntityID:    req.EntityID,
			EntityType:  req.EntityType,
			EventType:   model.RiskEventTypeRuleMatched,
			EventName:   e.RuleName,
			Description: e.Reason,
			EventData: model.JSONMap{
				"score":  e.Score,
				"action": string(e.Action),
			},
			Severity: severity,
			Source:   "assessment",
			RuleID:   e.RuleID,
			RuleName: e.RuleName,
		}
		if rule := rulesByID[e.RuleID]; rule != nil {
			event.RuleType = rule.Type
		}
		events = append(events, event)
	}
	return events
}

// maybeAlert 高风险或需拦截/暂扣的评估发送告警
func (s *AssessmentService) maybeAlert(ctx context.Context, req *AssessRiskRequest, agg *engine.Score, score *model.RiskScore) {
	if s.onRiskAlert == nil {
		return
	}
	if !agg.RiskLevel.IsHighRisk() && !agg.ShouldBlock && !agg.ShouldHold {
		return
	}

	alert := &RiskAlertMessage{
		AlertID:     uuid.New().String(),
		TenantID:    req.TenantID,
		EntityID:    req.EntityID,
		EntityType:  string(req.EntityType),
		RiskLevel:   string(agg.RiskLevel),
		Severity:    agg.RiskLevel.Severity(),
		TotalScore:  agg.TotalScore,
		ShouldBlock: agg.ShouldBlock,
		ShouldHold:  agg.ShouldHold,
		Description: fmt.Sprintf("risk assessment %s for %s %s", agg.RiskLevel, req.EntityType, req.EntityID),
		Context: map[string]any{
			"score_id":   score.ScoreID,
			"confidence": agg.Confidence,
		},
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := s.onRiskAlert(ctx, alert); err != nil {
		// 告警失败不影响评估结果
		logger.Error("failed to send risk alert",
			zap.String("alert_id", alert.AlertID),
			zap.Error(err))
		return
	}
	metrics.RecordRiskAlert(string(agg.RiskLevel))
}
