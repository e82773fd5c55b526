package model

// RiskProfile 实体风险画像 (持久的"当前风险"视图)
//
// 每次评估完成后按 (entity_id, entity_type, tenant_id) 原子 upsert，
// 仅更新评分派生字段；黑白名单标记由名单管理流程独立维护，
// upsert 不得覆盖。
type RiskProfile struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityID         string     `gorm:"type:varchar(64);not null;uniqueIndex:uq_risk_profile_entity,priority:1" json:"entity_id"`
	EntityType       EntityType `gorm:"type:varchar(20);not null;uniqueIndex:uq_risk_profile_entity,priority:2" json:"entity_type"`
	TenantID         string     `gorm:"type:varchar(64);not null;uniqueIndex:uq_risk_profile_entity,priority:3" json:"tenant_id"`
	RiskLevel        RiskLevel  `gorm:"type:varchar(20);not null;default:'LOW';index" json:"risk_level"` // 当前风险级别
	RiskScore        float64    `gorm:"type:double precision;not null;default:0" json:"risk_score"`      // 当前风险分
	LastCalculatedAt int64      `gorm:"type:bigint" json:"last_calculated_at"`                           // 最近评估时间
	IsBlacklisted    bool       `gorm:"not null;default:false;index" json:"is_blacklisted"`              // 黑名单标记
	IsWhitelisted    bool       `gorm:"not null;default:false" json:"is_whitelisted"`                    // 白名单标记
	IsHighRisk       bool       `gorm:"not null;default:false;index" json:"is_high_risk"`                // 高风险标记
	ReviewedBy       string     `gorm:"type:varchar(64)" json:"reviewed_by"`                             // 最近复核人
	ReviewNotes      string     `gorm:"type:varchar(512)" json:"review_notes"`                           // 复核备注
	CreatedAt        int64      `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`     // 创建时间
	UpdatedAt        int64      `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`     // 更新时间
}

// TableName 返回表名
func (RiskProfile) TableName() string {
	return "risk_profiles"
}

// IsListed 检查实体是否在任一名单中
func (p *RiskProfile) IsListed() bool {
	return p.IsBlacklisted || p.IsWhitelisted
}
