package app

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

// AutoMigrate 自动执行数据库迁移
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.RiskRule{},
		&model.RiskScore{},
		&model.RiskProfile{},
		&model.RiskEvent{},
	); err != nil {
		logger.Error("auto migration failed", zap.Error(err))
		return err
	}
	return nil
}
