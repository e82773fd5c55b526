package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

var ErrProfileNotFound = errors.New("risk profile not found")

// RiskProfileRepository 风险画像仓储
type RiskProfileRepository struct {
	db *gorm.DB
}

// NewRiskProfileRepository 创建风险画像仓储
func NewRiskProfileRepository(db *gorm.DB) *RiskProfileRepository {
	return &RiskProfileRepository{db: db}
}

// GetByEntity 查询对象画像
func (r *RiskProfileRepository) GetByEntity(ctx context.Context, tenantID, entityID string, entityType model.EntityType) (*model.RiskProfile, error) {
	var profile model.RiskProfile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_id = ? AND entity_type = ?", tenantID, entityID, entityType).
		First(&profile).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// UpsertAssessment 写入评估结果
//
// 冲突时只覆盖评分派生字段，名单标记与复核字段保持不变。
func (r *RiskProfileRepository) UpsertAssessment(ctx context.Context, tenantID, entityID string, entityType model.EntityType, level model.RiskLevel, score float64) (*model.RiskProfile, error) {
	now := time.Now().UnixMilli()
	profile := &model.RiskProfile{
		EntityID:         entityID,
		EntityType:       entityType,
		TenantID:         tenantID,
		RiskLevel:        level,
		RiskScore:        score,
		LastCalculatedAt: now,
		IsHighRisk:       level.IsHighRisk(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "entity_id"},
				{Name: "entity_type"},
				{Name: "tenant_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"risk_level",
				"risk_score",
				"is_high_risk",
				"last_calculated_at",
				"updated_at",
			}),
		}).
		Create(profile).Error

	if err != nil {
		return nil, err
	}
	return r.GetByEntity(ctx, tenantID, entityID, entityType)
}

// SetBlacklisted 设置黑名单标记
func (r *RiskProfileRepository) SetBlacklisted(ctx context.Context, tenantID, entityID string, entityType model.EntityType, blacklisted bool, operator, notes string) (*model.RiskProfile, error) {
	return r.setListFlag(ctx, tenantID, entityID, entityType, "is_blacklisted", blacklisted, operator, notes)
}

// SetWhitelisted 设置白名单标记
func (r *RiskProfileRepository) SetWhitelisted(ctx context.Context, tenantID, entityID string, entityType model.EntityType, whitelisted bool, operator, notes string) (*model.RiskProfile, error) {
	return r.setListFlag(ctx, tenantID, entityID, entityType, "is_whitelisted", whitelisted, operator, notes)
}

// setListFlag 名单标记变更，画像不存在时先建一条空画像
func (r *RiskProfileRepository) setListFlag(ctx context.Context, tenantID, entityID string, entityType model.EntityType, column string, value bool, operator, notes string) (*model.RiskProfile, error) {
	now := time.Now().UnixMilli()

	profile := &model.RiskProfile{
		EntityID:   entityID,
		EntityType: entityType,
		TenantID:   tenantID,
		RiskLevel:  model.RiskLevelLow,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "entity_id"},
				{Name: "entity_type"},
				{Name: "tenant_id"},
			},
			DoNothing: true,
		}).Create(profile).Error; err != nil {
			return err
		}

		return tx.Model(&model.RiskProfile{}).
			Where("tenant_id = ? AND entity_id = ? AND entity_type = ?", tenantID, entityID, entityType).
			Updates(map[string]interface{}{
				column:         value,
				"reviewed_by":  operator,
				"review_notes": notes,
				"updated_at":   now,
			}).Error
	})

	if err != nil {
		return nil, err
	}
	return r.GetByEntity(ctx, tenantID, entityID, entityType)
}

// ListHighRisk 查询高风险对象
func (r *RiskProfileRepository) ListHighRisk(ctx context.Context, tenantID string, pagination *Pagination) ([]*model.RiskProfile, int64, error) {
	var profiles []*model.RiskProfile
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.RiskProfile{}).
		Where("tenant_id = ? AND is_high_risk = ?", tenantID, true)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := pagination.Scope(query).
		Order("risk_score DESC").
		Find(&profiles).Error

	if err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}

// CountByRiskLevel 按风险级别统计画像数
func (r *RiskProfileRepository) CountByRiskLevel(ctx context.Context, tenantID string) (map[model.RiskLevel]int64, error) {
	type row struct {
		RiskLevel model.RiskLevel
		Count     int64
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&model.RiskProfile{}).
		Select("risk_level, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("risk_level").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	counts := make(map[model.RiskLevel]int64, len(rows))
	for _, r := range rows {
		counts[r.RiskLevel] = r.Count
	}
	return counts, nil
}
