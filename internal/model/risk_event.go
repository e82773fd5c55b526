package model

// RiskEventType 风控事件类型
type RiskEventType string

const (
	RiskEventTypeRuleMatched RiskEventType = "RULE_MATCHED" // 规则命中
	RiskEventTypeBlacklisted RiskEventType = "BLACKLISTED"  // 加入黑名单
	RiskEventTypeWhitelisted RiskEventType = "WHITELISTED"  // 加入白名单
	RiskEventTypeListRemoved RiskEventType = "LIST_REMOVED" // 移出名单
)

// RiskEvent 风控事件 (一次写入的审计记录)
//
// 每个评估中命中的规则产生一条事件，严重度取整体评估风险级别。
// is_processed 由独立的告警/复核流程翻转。
type RiskEvent struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"event_id"`             // 事件ID
	TenantID    string        `gorm:"type:varchar(64);index;not null" json:"tenant_id"`                  // 租户ID
	EntityID    string        `gorm:"type:varchar(64);index;not null" json:"entity_id"`                  // 对象ID
	EntityType  EntityType    `gorm:"type:varchar(20);not null" json:"entity_type"`                      // 对象类型
	EventType   RiskEventType `gorm:"type:varchar(32);not null;index" json:"event_type"`                 // 事件类型
	EventName   string        `gorm:"type:varchar(128);not null" json:"event_name"`                      // 事件名称
	Description string        `gorm:"type:varchar(512)" json:"description"`                              // 描述
	EventData   JSONMap       `gorm:"type:jsonb;serializer:json" json:"event_data"`                      // 事件数据
	Severity    string        `gorm:"type:varchar(20);index" json:"severity"`                            // 严重度 (low/medium/high/critical)
	Source      string        `gorm:"type:varchar(64)" json:"source"`                                    // 来源
	Tags        StringSlice   `gorm:"type:jsonb;serializer:json" json:"tags"`                            // 标签
	RuleID      string        `gorm:"type:varchar(64);index" json:"rule_id"`                             // 触发的规则ID
	RuleName    string        `gorm:"type:varchar(128)" json:"rule_name"`                                // 触发的规则名称
	RuleType    RiskRuleType  `gorm:"type:varchar(20);index" json:"rule_type"`                           // 触发的规则类型
	IsProcessed bool          `gorm:"not null;default:false;index" json:"is_processed"`                  // 是否已处理
	ProcessedAt int64         `gorm:"type:bigint" json:"processed_at"`                                   // 处理时间
	ProcessedBy string        `gorm:"type:varchar(64)" json:"processed_by"`                              // 处理者
	CreatedAt   int64         `gorm:"type:bigint;not null;autoCreateTime:milli;index" json:"created_at"` // 创建时间
}

// TableName 返回表名
func (RiskEvent) TableName() string {
	return "risk_events"
}

// NeedsProcessing 检查是否待处理
func (e *RiskEvent) NeedsProcessing() bool {
	return !e.IsProcessed
}
