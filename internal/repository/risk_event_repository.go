package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

var (
	ErrEventNotFound  = errors.New("risk event not found")
	ErrEventProcessed = errors.New("risk event already processed")
)

// RiskEventRepository 风险事件仓储
type RiskEventRepository struct {
	db *gorm.DB
}

// NewRiskEventRepository 创建风险事件仓储
func NewRiskEventRepository(db *gorm.DB) *RiskEventRepository {
	return &RiskEventRepository{db: db}
}

// Create 创建事件
func (r *RiskEventRepository) Create(ctx context.Context, event *model.RiskEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// BatchCreate 批量创建事件
func (r *RiskEventRepository) BatchCreate(ctx context.Context, events []*model.RiskEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, 100).Error
}

// GetByEventID 根据事件ID获取
func (r *RiskEventRepository) GetByEventID(ctx context.Context, tenantID, eventID string) (*model.RiskEvent, error) {
	var event model.RiskEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND tenant_id = ?", eventID, tenantID).
		First(&event).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// ListByEntity 查询对象的事件，按时间倒序
func (r *RiskEventRepository) ListByEntity(ctx context.Context, tenantID, entityID string, entityType model.EntityType, pagination *Pagination) ([]*model.RiskEvent, int64, error) {
	var events []*model.RiskEvent
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.RiskEvent{}).
		Where("tenant_id = ? AND entity_id = ? AND entity_type = ?", tenantID, entityID, entityType)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := pagination.Scope(query).
		Order("created_at DESC").
		Find(&events).Error

	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListUnprocessed 查询未处理事件，按时间正序
func (r *RiskEventRepository) ListUnprocessed(ctx context.Context, tenantID string, pagination *Pagination) ([]*model.RiskEvent, int64, error) {
	var events []*model.RiskEvent
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.RiskEvent{}).
		Where("tenant_id = ? AND is_processed = ?", tenantID, false)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := pagination.Scope(query).
		Order("created_at ASC").
		Find(&events).Error

	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// MarkProcessed 标记事件已处理
//
// 状态守卫放在 WHERE 里，重复处理返回 ErrEventProcessed。
func (r *RiskEventRepository) MarkProcessed(ctx context.Context, tenantID, eventID, processedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.RiskEvent{}).
		Where("event_id = ? AND tenant_id = ? AND is_processed = ?", eventID, tenantID, false).
		Updates(map[string]interface{}{
			"is_processed": true,
			"processed_at": time.Now().UnixMilli(),
			"processed_by": processedBy,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByEventID(ctx, tenantID, eventID); err != nil {
			return err
		}
		return ErrEventProcessed
	}
	return nil
}

// CountByRuleType 按规则类型统计时间范围内的事件数
func (r *RiskEventRepository) CountByRuleType(ctx context.Context, tenantID string, from, to int64) (map[model.RiskRuleType]int64, error) {
	type row struct {
		RuleType model.RiskRuleType
		Count    int64
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&model.RiskEvent{}).
		Select("rule_type, count(*) as count").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ? AND rule_type <> ''", tenantID, from, to).
		Group("rule_type").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	counts := make(map[model.RiskRuleType]int64, len(rows))
	for _, r := range rows {
		counts[r.RuleType] = r.Count
	}
	return counts, nil
}

// CountUnprocessed 统计未处理事件数
func (r *RiskEventRepository) CountUnprocessed(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.RiskEvent{}).
		Where("tenant_id = ? AND is_processed = ?", tenantID, false).
		Count(&total).Error
	return total, err
}
