package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

var (
	ErrScoreNotFound  = errors.New("risk score not found")
	ErrScoreReviewed  = errors.New("risk score already reviewed")
	ErrScoreDuplicate = errors.New("risk score already exists")
)

// RiskScoreRepository 风险评分仓储
type RiskScoreRepository struct {
	db *gorm.DB
}

// NewRiskScoreRepository 创建风险评分仓储
func NewRiskScoreRepository(db *gorm.DB) *RiskScoreRepository {
	return &RiskScoreRepository{db: db}
}

// Create 创建评分记录
func (r *RiskScoreRepository) Create(ctx context.Context, score *model.RiskScore) error {
	result := r.db.WithContext(ctx).Create(score)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrScoreDuplicate
		}
		return result.Error
	}
	return nil
}

// GetByScoreID 根据评分ID获取
func (r *RiskScoreRepository) GetByScoreID(ctx context.Context, tenantID, scoreID string) (*model.RiskScore, error) {
	var score model.RiskScore
	err := r.db.WithContext(ctx).
		Where("score_id = ? AND tenant_id = ?", scoreID, tenantID).
		First(&score).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScoreNotFound
		}
		return nil, err
	}
	return &score, nil
}

// ListByEntity 查询对象的历史评分，按时间倒序
func (r *RiskScoreRepository) ListByEntity(ctx context.Context, tenantID, entityID string, entityType model.EntityType, pagination *Pagination) ([]*model.RiskScore, int64, error) {
	var scores []*model.RiskScore
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.RiskScore{}).
		Where("tenant_id = ? AND entity_id = ? AND entity_type = ?", tenantID, entityID, entityType)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := pagination.Scope(query).
		Order("created_at DESC").
		Find(&scores).Error

	if err != nil {
		return nil, 0, err
	}
	return scores, total, nil
}

// Review 人工复核评分
//
// 只有 CALCULATED 状态可复核，状态守卫放在 WHERE 里避免并发复核。
func (r *RiskScoreRepository) Review(ctx context.Context, tenantID, scoreID string, status model.RiskScoreStatus, reviewedBy, notes string) (*model.RiskScore, error) {
	now := time.Now().UnixMilli()
	result := r.db.WithContext(ctx).
		Model(&model.RiskScore{}).
		Where("score_id = ? AND tenant_id = ? AND status = ?", scoreID, tenantID, model.RiskScoreStatusCalculated).
		Updates(map[string]interface{}{
			"status":       status,
			"reviewed_by":  reviewedBy,
			"review_notes": notes,
			"reviewed_at":  now,
		})

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// 区分不存在与已复核
		if _, err := r.GetByScoreID(ctx, tenantID, scoreID); err != nil {
			return nil, err
		}
		return nil, ErrScoreReviewed
	}
	return r.GetByScoreID(ctx, tenantID, scoreID)
}

// CountByRiskLevel 按风险级别统计时间范围内的评分数
func (r *RiskScoreRepository) CountByRiskLevel(ctx context.Context, tenantID string, from, to int64) (map[model.RiskLevel]int64, error) {
	type row struct {
		RiskLevel model.RiskLevel
		Count     int64
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&model.RiskScore{}).
		Select("risk_level, count(*) as count").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, from, to).
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

// ActionStats 动作建议统计
type ActionStats struct {
	Total       int64 `json:"total"`
	Blocked     int64 `json:"blocked"`
	Held        int64 `json:"held"`
	UnderReview int64 `json:"under_review"`
}

// CountActions 统计时间范围内的动作建议分布
func (r *RiskScoreRepository) CountActions(ctx context.Context, tenantID string, from, to int64) (*ActionStats, error) {
	var stats ActionStats

	base := r.db.WithContext(ctx).
		Model(&model.RiskScore{}).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, from, to)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("should_block = ?", true).Count(&stats.Blocked).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("should_hold = ?", true).Count(&stats.Held).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("should_review = ?", true).Count(&stats.UnderReview).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
