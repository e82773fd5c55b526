package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

// AssessmentWriter 单事务落库一次评估的全部产物
//
// 评分记录、命中事件与画像要么全部写入要么全不写入，
// 避免出现有评分无事件的半截评估。
type AssessmentWriter struct {
	db *gorm.DB
}

// NewAssessmentWriter 创建评估写入器
func NewAssessmentWriter(db *gorm.DB) *AssessmentWriter {
	return &AssessmentWriter{db: db}
}

// Persist 在一个事务内写入评分、事件并更新画像
func (w *AssessmentWriter) Persist(ctx context.Context, score *model.RiskScore, events []*model.RiskEvent) (*model.RiskProfile, error) {
	var profile model.RiskProfile

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(score).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrScoreDuplicate
			}
			return err
		}

		if len(events) > 0 {
			if err := tx.CreateInBatches(events, 100).Error; err != nil {
				return err
			}
		}

		upsert := &model.RiskProfile{
			EntityID:         score.EntityID,
			EntityType:       score.EntityType,
			TenantID:         score.TenantID,
			RiskLevel:        score.RiskLevel,
			RiskScore:        score.TotalScore,
			LastCalculatedAt: score.CreatedAt,
			IsHighRisk:       score.RiskLevel.IsHighRisk(),
			CreatedAt:        score.CreatedAt,
			UpdatedAt:        score.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
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
		}).Create(upsert).Error; err != nil {
			return err
		}

		return tx.
			Where("tenant_id = ? AND entity_id = ? AND entity_type = ?", score.TenantID, score.EntityID, score.EntityType).
			First(&profile).Error
	})

	if err != nil {
		return nil, err
	}
	return &profile, nil
}
