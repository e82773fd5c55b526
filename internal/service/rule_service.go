package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-risk/internal/metrics"
	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/repository"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

// RuleStore 规则持久化
type RuleStore interface {
	Create(ctx context.Context, rule *model.RiskRule) error
	Update(ctx context.Context, rule *model.RiskRule) error
	GetByRuleID(ctx context.Context, tenantID, ruleID string) (*model.RiskRule, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]*model.RiskRule, error)
	ListByTenant(ctx context.Context, tenantID string, pagination *repository.Pagination) ([]*model.RiskRule, int64, error)
	SetEnabled(ctx context.Context, tenantID, ruleID string, enabled bool, updatedBy string) error
	Delete(ctx context.Context, tenantID, ruleID string) error
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

// RuleCacheStore 租户规则缓存
type RuleCacheStore interface {
	Get(ctx context.Context, tenantID string) ([]*model.RiskRule, error)
	Set(ctx context.Context, tenantID string, rules []*model.RiskRule) error
	Invalidate(ctx context.Context, tenantID string) error
}

// RuleService 规则管理服务
type RuleService struct {
	store    RuleStore
	cache    RuleCacheStore
	maxRules int
}

// NewRuleService 创建规则管理服务
func NewRuleService(store RuleStore, cache RuleCacheStore, maxRules int) *RuleService {
	return &RuleService{
		store:    store,
		cache:    cache,
		maxRules: maxRules,
	}
}

// ActiveRules 读取租户活跃规则，缓存优先
//
// 实现 RuleSource。缓存故障只降级为直查数据库，不影响评估。
func (s *RuleService) ActiveRules(ctx context.Context, tenantID string) ([]*model.RiskRule, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			metrics.RecordRuleCache("error")
			logger.Warn("rule cache read failed, falling back to database",
				zap.String("tenant_id", tenantID), zap.Error(err))
		} else if cached != nil {
			metrics.RecordRuleCache("hit")
			return cached, nil
		} else {
			metrics.RecordRuleCache("miss")
		}
	}

	rules, err := s.store.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, rules); err != nil {
			logger.Warn("rule cache write failed",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	metrics.ActiveRulesGauge.WithLabelValues(tenantID).Set(float64(len(rules)))

	return rules, nil
}

// CreateRule 创建规则
func (s *RuleService) CreateRule(ctx context.Context, rule *model.RiskRule) (*model.RiskRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if s.maxRules > 0 {
		count, err := s.store.CountByTenant(ctx, rule.TenantID)
		if err != nil {
			return nil, fmt.Errorf("count tenant rules: %w", err)
		}
		if count >= int64(s.maxRules) {
			return nil, fmt.Errorf("tenant %s reached rule limit %d", rule.TenantID, s.maxRules)
		}
	}

	if rule.RuleID == "" {
		rule.RuleID = uuid.New().String()
	}
	if rule.Priority == 0 {
		rule.Priority = model.DefaultRulePriority
	}
	if rule.Action == "" {
		rule.Action = model.RiskActionScore
	}

	if err := s.store.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rule.TenantID)

	logger.Info("risk rule created",
		zap.String("tenant_id", rule.TenantID),
		zap.String("rule_id", rule.RuleID),
		zap.String("type", string(rule.Type)))
	return rule, nil
}

// UpdateRule 更新规则
func (s *RuleService) UpdateRule(ctx context.Context, rule *model.RiskRule) (*model.RiskRule, error) {
	if rule.RuleID == "" {
		return nil, &ValidationError{Violations: []string{"ruleId is required"}}
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rule.TenantID)

	logger.Info("risk rule updated",
		zap.String("tenant_id", rule.TenantID),
		zap.String("rule_id", rule.RuleID))
	return s.store.GetByRuleID(ctx, rule.TenantID, rule.RuleID)
}

// GetRule 获取规则
func (s *RuleService) GetRule(ctx context.Context, tenantID, ruleID string) (*model.RiskRule, error) {
	return s.store.GetByRuleID(ctx, tenantID, ruleID)
}

// ListRules 分页查询租户规则
func (s *RuleService) ListRules(ctx context.Context, tenantID string, page, pageSize int) ([]*model.RiskRule, int64, error) {
	return s.store.ListByTenant(ctx, tenantID, repository.NewPagination(page, pageSize))
}

// SetRuleEnabled 启用/停用规则
func (s *RuleService) SetRuleEnabled(ctx context.Context, tenantID, ruleID string, enabled bool, updatedBy string) error {
	if err := s.store.SetEnabled(ctx, tenantID, ruleID, enabled, updatedBy); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)

	logger.Info("risk rule toggled",
		zap.String("tenant_id", tenantID),
		zap.String("rule_id", ruleID),
		zap.Bool("enabled", enabled))
	return nil
}

// DeleteRule 删除规则
func (s *RuleService) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	if err := s.store.Delete(ctx, tenantID, ruleID); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)

	logger.Info("risk rule deleted",
		zap.String("tenant_id", tenantID),
		zap.String("rule_id", ruleID))
	return nil
}

// invalidate 写路径失效租户规则缓存
func (s *RuleService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		logger.Warn("rule cache invalidation failed",
			zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

// validateRule 校验规则，聚合全部违规项
func validateRule(rule *model.RiskRule) error {
	var violations []string

	if rule.TenantID == "" {
		violations = append(violations, "tenantId is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		violations = append(violations, "name is required")
	}
	if !rule.Type.IsValid() {
		violations = append(violations, fmt.Sprintf("ruleType %q is not supported", rule.Type))
	}
	if rule.Action != "" && !rule.Action.IsValid() {
		violations = append(violations, fmt.Sprintf("action %q is not supported", rule.Action))
	}
	if rule.Weight < 0 {
		violations = append(violations, "weight must not be negative")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
