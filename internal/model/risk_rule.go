package model

// RiskRuleType 风控规则类型
type RiskRuleType string

const (
	RiskRuleTypeScoring      RiskRuleType = "SCORING"      // 条件计分
	RiskRuleTypeThreshold    RiskRuleType = "THRESHOLD"    // 加权阈值
	RiskRuleTypeBlacklist    RiskRuleType = "BLACKLIST"    // 黑名单匹配
	RiskRuleTypeWhitelist    RiskRuleType = "WHITELIST"    // 白名单匹配 (降低风险)
	RiskRuleTypeNotification RiskRuleType = "NOTIFICATION" // 仅通知 (预留)
	RiskRuleTypeAutoAction   RiskRuleType = "AUTO_ACTION"  // 自动动作 (预留)
)

// IsValid 检查规则类型是否合法
func (t RiskRuleType) IsValid() bool {
	switch t {
	case RiskRuleTypeScoring, RiskRuleTypeThreshold, RiskRuleTypeBlacklist,
		RiskRuleTypeWhitelist, RiskRuleTypeNotification, RiskRuleTypeAutoAction:
		return true
	default:
		return false
	}
}

// RiskAction 规则触发动作
type RiskAction string

const (
	RiskActionScore    RiskAction = "SCORE"    // 仅计分
	RiskActionBlock    RiskAction = "BLOCK"    // 拦截
	RiskActionHold     RiskAction = "HOLD"     // 暂扣
	RiskActionNotify   RiskAction = "NOTIFY"   // 通知
	RiskActionReview   RiskAction = "REVIEW"   // 人工审核
	RiskActionApprove  RiskAction = "APPROVE"  // 放行
	RiskActionEscalate RiskAction = "ESCALATE" // 升级处理
)

// IsValid 检查动作是否合法
func (a RiskAction) IsValid() bool {
	switch a {
	case RiskActionScore, RiskActionBlock, RiskActionHold, RiskActionNotify,
		RiskActionReview, RiskActionApprove, RiskActionEscalate:
		return true
	default:
		return false
	}
}

// RuleCondition 规则条件
//
// Operator 为空时退化为直接相等比较。Score 仅用于 SCORING 规则
// (0 视为默认值 1)，Weight 仅用于 THRESHOLD 规则 (0 视为默认值 1)。
type RuleCondition struct {
	Operator string  `json:"operator,omitempty"`
	Value    any     `json:"value"`
	Score    float64 `json:"score,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
}

// RuleConditions 条件集合 (条件键 -> 条件定义)
//
// 条件键是上下文点路径，如 "contextData.customer.age" 或
// "signals.HIGH_VALUE_ORDER.weight"。
type RuleConditions map[string]RuleCondition

// DefaultRulePriority 未配置优先级时的默认值
const DefaultRulePriority = 100

// RiskRule 风控规则 (租户级配置)
type RiskRule struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"rule_id"`             // 规则ID
	TenantID     string         `gorm:"type:varchar(64);index;not null" json:"tenant_id"`                 // 租户ID
	Name         string         `gorm:"type:varchar(128);not null" json:"name"`                           // 规则名称
	Description  string         `gorm:"type:varchar(512)" json:"description"`                             // 规则描述
	Type         RiskRuleType   `gorm:"type:varchar(20);not null;index" json:"type"`                      // 规则类型
	Category     string         `gorm:"type:varchar(64)" json:"category"`                                 // 业务分类
	Priority     int            `gorm:"type:integer;default:100" json:"priority"`                         // 优先级 (数字越小优先级越高)
	Conditions   RuleConditions `gorm:"type:jsonb;serializer:json" json:"conditions"`                     // 条件集合
	Threshold    float64        `gorm:"type:double precision" json:"threshold"`                           // 阈值 (THRESHOLD 规则)
	Weight       float64        `gorm:"type:double precision;default:1" json:"weight"`                    // 分数乘数
	Action       RiskAction     `gorm:"type:varchar(20);not null;default:'SCORE'" json:"action"`          // 触发动作
	ActionParams JSONMap        `gorm:"type:jsonb;serializer:json" json:"action_params,omitempty"`        // 动作参数
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`                           // 是否激活
	IsEnabled    bool           `gorm:"not null;default:true" json:"is_enabled"`                          // 是否启用
	CreatedBy    string         `gorm:"type:varchar(64)" json:"created_by"`                               // 创建者
	CreatedAt    int64          `gorm:"type:bigint;not null;autoCreateTime:milli" json:"created_at"`      // 创建时间
	UpdatedBy    string         `gorm:"type:varchar(64)" json:"updated_by"`                               // 更新者
	UpdatedAt    int64          `gorm:"type:bigint;not null;autoUpdateTime:milli" json:"updated_at"`      // 更新时间
}

// TableName 返回表名
func (RiskRule) TableName() string {
	return "risk_rules"
}

// IsEvaluable 检查规则是否参与评估 (激活且启用)
func (r *RiskRule) IsEvaluable() bool {
	return r.IsActive && r.IsEnabled
}

// EffectiveWeight 返回生效的分数乘数 (0 视为 1)
func (r *RiskRule) EffectiveWeight() float64 {
	if r.Weight == 0 {
		return 1
	}
	return r.Weight
}
