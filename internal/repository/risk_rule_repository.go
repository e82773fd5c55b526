package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

var (
	ErrRuleNotFound  = errors.New("risk rule not found")
	ErrRuleDuplicate = errors.New("risk rule already exists")
)

// RiskRuleRepository 风险规则仓储
type RiskRuleRepository struct {
	db *gorm.DB
}

// NewRiskRuleRepository 创建风险规则仓储
func NewRiskRuleRepository(db *gorm.DB) *RiskRuleRepository {
	return &RiskRuleRepository{db: db}
}

// Create 创建规则
func (r *RiskRuleRepository) Create(ctx context.Context, rule *model.RiskRule) error {
	now := time.Now().UnixMilli()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	result := r.db.WithContext(ctx).Create(rule)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrRuleDuplicate
		}
		return result.Error
	}
	return nil
}

// Update 更新规则
//
// 只更新可变字段，rule_id/tenant_id 不可改。
func (r *RiskRuleRepository) Update(ctx context.Context, rule *model.RiskRule) error {
	rule.UpdatedAt = time.Now().UnixMilli()

	result := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("rule_id = ? AND tenant_id = ?", rule.RuleID, rule.TenantID).
		Updates(map[string]interface{}{
			"name":          rule.Name,
			"description":   rule.Description,
			"type":          rule.Type,
			"category":      rule.Category,
			"priority":      rule.Priority,
			"conditions":    rule.Conditions,
			"threshold":     rule.Threshold,
			"weight":        rule.Weight,
			"action":        rule.Action,
			"action_params": rule.ActionParams,
			"is_active":     rule.IsActive,
			"is_enabled":    rule.IsEnabled,
			"updated_by":    rule.UpdatedBy,
			"updated_at":    rule.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetByRuleID 根据规则ID获取
func (r *RiskRuleRepository) GetByRuleID(ctx context.Context, tenantID, ruleID string) (*model.RiskRule, error) {
	var rule model.RiskRule
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND tenant_id = ?", ruleID, tenantID).
		First(&rule).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListActiveByTenant 查询租户下可参与评估的规则，按优先级排序
func (r *RiskRuleRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]*model.RiskRule, error) {
	var rules []*model.RiskRule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("is_active = ? AND is_enabled = ?", true, true).
		Order("priority ASC, id ASC").
		Find(&rules).Error

	if err != nil {
		return nil, err
	}
	return rules, nil
}

// ListByTenant 分页查询租户下所有规则
func (r *RiskRuleRepository) ListByTenant(ctx context.Context, tenantID string, pagination *Pagination) ([]*model.RiskRule, int64, error) {
	var rules []*model.RiskRule
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("tenant_id = ?", tenantID)

	// 统计总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	err := pagination.Scope(query).
		Order("priority ASC, id ASC").
		Find(&rules).Error

	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// ListByType 查询租户下某类型的规则
func (r *RiskRuleRepository) ListByType(ctx context.Context, tenantID string, ruleType model.RiskRuleType) ([]*model.RiskRule, error) {
	var rules []*model.RiskRule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ?", tenantID, ruleType).
		Order("priority ASC, id ASC").
		Find(&rules).Error

	if err != nil {
		return nil, err
	}
	return rules, nil
}

// SetEnabled 设置规则启用状态
func (r *RiskRuleRepository) SetEnabled(ctx context.Context, tenantID, ruleID string, enabled bool, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("rule_id = ? AND tenant_id = ?", ruleID, tenantID).
		Updates(map[string]interface{}{
			"is_enabled": enabled,
			"updated_by": updatedBy,
			"updated_at": time.Now().UnixMilli(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete 删除规则
func (r *RiskRuleRepository) Delete(ctx context.Context, tenantID, ruleID string) error {
	result := r.db.WithContext(ctx).
		Where("rule_id = ? AND tenant_id = ?", ruleID, tenantID).
		Delete(&model.RiskRule{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// CountByTenant 统计租户下规则总数
func (r *RiskRuleRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error
	return total, err
}

// CountActive 统计全部可评估规则数
func (r *RiskRuleRepository) CountActive(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("is_active = ? AND is_enabled = ?", true, true).
		Count(&total).Error
	return total, err
}

// ActiveTenants 列出存在可评估规则的租户
func (r *RiskRuleRepository) ActiveTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("is_active = ? AND is_enabled = ?", true, true).
		Distinct().
		Pluck("tenant_id", &tenants).Error
	return tenants, err
}

// CountActiveByTenant 统计租户下可评估规则数
func (r *RiskRuleRepository) CountActiveByTenant(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.RiskRule{}).
		Where("tenant_id = ?", tenantID).
		Where("is_active = ? AND is_enabled = ?", true, true).
		Count(&total).Error
	return total, err
}
