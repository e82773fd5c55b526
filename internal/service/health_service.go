package service

import (
	"context"
	"time"

	"github.com/meridian-commerce/meridian-risk/internal/engine"
	"github.com/meridian-commerce/meridian-risk/internal/model"
)

// DBPinger 数据库连通性探测
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ActiveRuleCounter 活跃规则计数
type ActiveRuleCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Healthy     bool   `json:"healthy"`
	Database    string `json:"database"` // ok / error text
	ActiveRules int64  `json:"active_rules"`
	CheckedAt   int64  `json:"checked_at"`
}

// Capabilities 引擎能力描述，静态
type Capabilities struct {
	EntityTypes          []model.EntityType   `json:"entity_types"`
	RuleTypes            []model.RiskRuleType `json:"rule_types"`
	Actions              []model.RiskAction   `json:"actions"`
	RiskLevels           []model.RiskLevel    `json:"risk_levels"`
	DefaultThresholds    engine.Thresholds    `json:"default_thresholds"`
	MaxRulesPerTenant    int                  `json:"max_rules_per_tenant"`
	MaxSignalsPerRequest int                  `json:"max_signals_per_request"`
}

// HealthService 健康与能力探测
type HealthService struct {
	db       DBPinger
	rules    ActiveRuleCounter
	maxRules int
}

// NewHealthService 创建健康探测服务
func NewHealthService(db DBPinger, rules ActiveRuleCounter, maxRules int) *HealthService {
	return &HealthService{
		db:       db,
		rules:    rules,
		maxRules: maxRules,
	}
}

// HealthCheck 探测数据库连通性并返回活跃规则数
func (s *HealthService) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Healthy:   true,
		Database:  "ok",
		CheckedAt: time.Now().UnixMilli(),
	}

	if err := s.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Database = err.Error()
		return status
	}

	count, err := s.rules.CountActive(ctx)
	if err != nil {
		status.Healthy = false
		status.Database = err.Error()
		return status
	}
	status.ActiveRules = count

	return status
}

// GetCapabilities 返回静态能力描述
func (s *HealthService) GetCapabilities() *Capabilities {
	return &Capabilities{
		EntityTypes: model.ValidEntityTypes,
		RuleTypes: []model.RiskRuleType{
			model.RiskRuleTypeScoring,
			model.RiskRuleTypeThreshold,
			model.RiskRuleTypeBlacklist,
			model.RiskRuleTypeWhitelist,
			model.RiskRuleTypeNotification,
			model.RiskRuleTypeAutoAction,
		},
		Actions: []model.RiskAction{
			model.RiskActionScore,
			model.RiskActionBlock,
			model.RiskActionHold,
			model.RiskActionNotify,
			model.RiskActionReview,
			model.RiskActionApprove,
			model.RiskActionEscalate,
		},
		RiskLevels: []model.RiskLevel{
			model.RiskLevelLow,
			model.RiskLevelMedium,
			model.RiskLevelHigh,
			model.RiskLevelCritical,
		},
		DefaultThresholds:    engine.DefaultThresholds(),
		MaxRulesPerTenant:    s.maxRules,
		MaxSignalsPerRequest: 100,
	}
}
