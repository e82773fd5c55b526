package model

// RiskLevel 风险级别
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// IsHighRisk 检查是否属于高风险级别
func (l RiskLevel) IsHighRisk() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}

// Severity 返回级别对应的事件严重度
func (l RiskLevel) Severity() string {
	switch l {
	case RiskLevelCritical:
		return "critical"
	case RiskLevelHigh:
		return "high"
	case RiskLevelMedium:
		return "medium"
	default:
		return "low"
	}
}

// RiskScoreStatus 风险评分状态
type RiskScoreStatus string

const (
	RiskScoreStatusCalculated RiskScoreStatus = "CALCULATED" // 已计算，待人工复核
	RiskScoreStatusApproved   RiskScoreStatus = "APPROVED"   // 复核通过
	RiskScoreStatusRejected   RiskScoreStatus = "REJECTED"   // 复核驳回
)

// RiskScore 单次评估的风险评分记录
type RiskScore struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ScoreID          string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"score_id"`           // 评分ID
	TenantID         string          `gorm:"type:varchar(64);index;not null" json:"tenant_id"`                // 租户ID
	EntityID         string          `gorm:"type:varchar(64);index;not null" json:"entity_id"`                // 对象ID
	EntityType       EntityType      `gorm:"type:varchar(20);not null" json:"entity_type"`                    // 对象类型
	TotalScore       float64         `gorm:"type:double precision;not null" json:"total_score"`               // 总分 (可为负)
	MaxPossibleScore float64         `gorm:"type:double precision;not null" json:"max_possible_score"`        // 分数上界估计
	RiskLevel        RiskLevel       `gorm:"type:varchar(20);not null;index" json:"risk_level"`               // 风险级别
	RuleScores       JSONMap         `gorm:"type:jsonb;serializer:json" json:"rule_scores"`                   // 规则ID -> 得分
	Confidence       float64         `gorm:"type:double precision;not null" json:"confidence"`                // 置信度 [0,1]
	ShouldBlock      bool            `gorm:"not null;default:false" json:"should_block"`                      // 建议拦截
	ShouldHold       bool            `gorm:"not null;default:false" json:"should_hold"`                       // 建议暂扣
	ShouldReview     bool            `gorm:"not null;default:false" json:"should_review"`                     // 建议人工审核
	Recommendations  StringSlice     `gorm:"type:jsonb;serializer:json" json:"recommendations"`               // 建议列表
	IsBlocked        bool            `gorm:"not null;default:false" json:"is_blocked"`                        // 是否已拦截
	BlockReason      string          `gorm:"type:varchar(512)" json:"block_reason"`                           // 拦截原因
	Status           RiskScoreStatus `gorm:"type:varchar(20);not null;default:'CALCULATED';index" json:"status"` // 状态
	ReviewedBy       string          `gorm:"type:varchar(64)" json:"reviewed_by"`                             // 复核人
	ReviewNotes      string          `gorm:"type:varchar(512)" json:"review_notes"`                           // 复核备注
	ReviewedAt       int64           `gorm:"type:bigint" json:"reviewed_at"`                                  // 复核时间
	CreatedAt        int64           `gorm:"type:bigint;not null;autoCreateTime:milli;index" json:"created_at"` // 创建时间
}

// TableName 返回表名
func (RiskScore) TableName() string {
	return "risk_scores"
}

// CanReview 检查评分是否可复核 (仅 CALCULATED 状态)
func (s *RiskScore) CanReview() bool {
	return s.Status == RiskScoreStatusCalculated
}

// IsReviewed 检查评分是否已复核
func (s *RiskScore) IsReviewed() bool {
	return s.Status == RiskScoreStatusApproved || s.Status == RiskScoreStatusRejected
}
