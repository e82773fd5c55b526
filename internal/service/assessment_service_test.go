package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-risk/internal/engine"
	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/signal"
)

type fakeRuleSource struct {
	rules []*model.RiskRule
	err   error
	calls int
}

func (f *fakeRuleSource) ActiveRules(_ context.Context, _ string) ([]*model.RiskRule, error) {
	f.calls++
	return f.rules, f.err
}

type fakePersister struct {
	calls      int
	lastScore  *model.RiskScore
	lastEvents []*model.RiskEvent
	err        error
}

func (f *fakePersister) Persist(_ context.Context, score *model.RiskScore, events []*model.RiskEvent) (*model.RiskProfile, error) {
	f.calls++
	f.lastScore = score
	f.lastEvents = events
	if f.err != nil {
		return nil, f.err
	}
	return &model.RiskProfile{
		EntityID:   score.EntityID,
		EntityType: score.EntityType,
		TenantID:   score.TenantID,
		RiskLevel:  score.RiskLevel,
		RiskScore:  score.TotalScore,
		IsHighRisk: score.RiskLevel.IsHighRisk(),
	}, nil
}

func newTestService(rules *fakeRuleSource, persister *fakePersister) *AssessmentService {
	return NewAssessmentService(rules, persister, engine.DefaultThresholds())
}

func validRequest() *AssessRiskRequest {
	return &AssessRiskRequest{
		TenantID:   "tenant-a",
		EntityID:   "order-1",
		EntityType: model.EntityTypeOrder,
		Signals: []signal.RiskSignal{
			{Type: signal.SignalTypeOrder, Name: "HIGH_VALUE_ORDER", Value: true, Weight: 0.8},
		},
	}
}

func TestAssessRisk_ValidationRejectsBeforeAnyWork(t *testing.T) {
	rules := &fakeRuleSource{}
	persister := &fakePersister{}
	svc := newTestService(rules, persister)

	req := validRequest()
	req.EntityID = ""

	_, err := svc.AssessRisk(context.Background(), req)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Violations, "entityId is required")

	// 校验失败后不加载规则、不落库
	assert.Equal(t, 0, rules.calls)
	assert.Equal(t, 0, persister.calls)
}

func TestAssessRisk_ValidationAggregatesViolations(t *testing.T) {
	svc := newTestService(&fakeRuleSource{}, &fakePersister{})

	_, err := svc.AssessRisk(context.Background(), &AssessRiskRequest{
		EntityType: model.EntityType("WAREHOUSE"),
		Signals: []signal.RiskSignal{
			{Type: "", Name: "", Weight: 1},
		},
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 5) // entityId, tenantId, entityType, signal type, signal name
}

func TestAssessRisk_NoRulesSafeDefault(t *testing.T) {
	rules := &fakeRuleSource{}
	persister := &fakePersister{}
	svc := newTestService(rules, persister)

	result, err := svc.AssessRisk(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, model.RiskLevelLow, result.Score.RiskLevel)
	assert.Equal(t, 0.0, result.Score.TotalScore)
	assert.Equal(t, 1.0, result.Confidence)
	assert.False(t, result.ShouldBlock)
	assert.Equal(t, []string{"No risk rules configured"}, result.Recommendations)

	// 安全默认结果不落库
	assert.Equal(t, 0, persister.calls)
	assert.Nil(t, result.Profile)
}

func TestAssessRisk_RuleLoadErrorPropagates(t *testing.T) {
	rules := &fakeRuleSource{err: errors.New("db down")}
	persister := &fakePersister{}
	svc := newTestService(rules, persister)

	_, err := svc.AssessRisk(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load active rules")
	assert.Equal(t, 0, persister.calls)
}

func TestAssessRisk_PersistenceErrorPropagates(t *testing.T) {
	rules := &fakeRuleSource{rules: []*model.RiskRule{scoringRule()}}
	persister := &fakePersister{err: errors.New("insert failed")}
	svc := newTestService(rules, persister)

	_, err := svc.AssessRisk(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist assessment")
}

func scoringRule() *model.RiskRule {
	return &model.RiskRule{
		RuleID:   "rule-scoring",
		TenantID: "tenant-a",
		Name:     "high value order scoring",
		Type:     model.RiskRuleTypeScoring,
		Priority: 10,
		Conditions: model.RuleConditions{
			"signals.HIGH_VALUE_ORDER.weight": {Operator: "greater_than", Value: 0.5, Score: 3},
		},
		Action:    model.RiskActionScore,
		IsActive:  true,
		IsEnabled: true,
	}
}

func TestAssessRisk_EndToEndThresholdRule(t *testing.T) {
	// 大额订单 + 货到付款 + 地址不一致 + 新客户
	facts := &signal.OrderFacts{
		OrderID:       "order-60000",
		TotalAmount:   decimal.NewFromInt(60000),
		ItemCount:     2,
		PaymentMethod: "CASH_ON_DELIVERY",
		ShippingAddress: &signal.Address{
			Street: "1 Harbor Rd", City: "Rotterdam", PostalCode: "3011", Country: "NL",
		},
		BillingAddress: &signal.Address{
			Street: "99 Canal St", City: "Amsterdam", PostalCode: "1011", Country: "NL",
		},
		Customer: &signal.CustomerHistory{OrderCount: 0},
	}
	signals := signal.CollectOrderRiskSignals(facts)
	require.NotEmpty(t, signals)

	rule := &model.RiskRule{
		RuleID:   "rule-threshold",
		TenantID: "tenant-a",
		Name:     "order value threshold",
		Type:     model.RiskRuleTypeThreshold,
		Priority: 10,
		Conditions: model.RuleConditions{
			"signals.HIGH_VALUE_ORDER.weight":      {Weight: 1},
			"signals.VERY_HIGH_VALUE_ORDER.weight": {Weight: 1},
		},
		Threshold: 1.0,
		Action:    model.RiskActionReview,
		IsActive:  true,
		IsEnabled: true,
	}

	rules := &fakeRuleSource{rules: []*model.RiskRule{rule}}
	persister := &fakePersister{}
	svc := newTestService(rules, persister)

	var alerts []*RiskAlertMessage
	svc.SetOnRiskAlert(func(_ context.Context, alert *RiskAlertMessage) error {
		alerts = append(alerts, alert)
		return nil
	})

	result, err := svc.AssessRisk(context.Background(), &AssessRiskRequest{
		TenantID:   "tenant-a",
		EntityID:   "order-60000",
		EntityType: model.EntityTypeOrder,
		Signals:    signals,
	})
	require.NoError(t, err)

	// 0.8 + 1.0 = 1.8 >= 1.0，规则命中
	require.Len(t, result.Evaluations, 1)
	assert.True(t, result.Evaluations[0].Matched)
	assert.True(t, result.ShouldReview)
	assert.False(t, result.ShouldBlock)

	// normalized = 1.8 / 3.6 = 0.5 -> MEDIUM
	assert.Equal(t, model.RiskLevelMedium, result.Score.RiskLevel)

	// 命中规则产生一条同严重度的事件并落库
	assert.Equal(t, 1, persister.calls)
	require.Len(t, persister.lastEvents, 1)
	event := persister.lastEvents[0]
	assert.Equal(t, model.RiskEventTypeRuleMatched, event.EventType)
	assert.Equal(t, "medium", event.Severity)
	assert.Equal(t, model.RiskRuleTypeThreshold, event.RuleType)

	// MEDIUM 且无拦截/暂扣不触发告警
	assert.Empty(t, alerts)
}

func TestAssessRisk_BlockActionSetsBlockedAndAlerts(t *testing.T) {
	rule := &model.RiskRule{
		RuleID:   "rule-blacklist",
		TenantID: "tenant-a",
		Name:     "known bad customers",
		Type:     model.RiskRuleTypeBlacklist,
		Priority: 1,
		Conditions: model.RuleConditions{
			"entityId": {Value: "order-1"},
		},
		Weight:    1,
		Action:    model.RiskActionBlock,
		IsActive:  true,
		IsEnabled: true,
	}

	rules := &fakeRuleSource{rules: []*model.RiskRule{rule}}
	persister := &fakePersister{}
	svc := newTestService(rules, persister)

	var alerts []*RiskAlertMessage
	svc.SetOnRiskAlert(func(_ context.Context, alert *RiskAlertMessage) error {
		alerts = append(alerts, alert)
		return nil
	})

	result, err := svc.AssessRisk(context.Background(), validRequest())
	require.NoError(t, err)

	// 黑名单命中: 100 分，normalized = 100/200 = 0.5 -> MEDIUM，但 BLOCK 动作触发拦截
	assert.True(t, result.ShouldBlock)
	assert.True(t, result.Score.IsBlocked)
	assert.NotEmpty(t, result.Score.BlockReason)
	assert.Equal(t, 100.0, result.Score.TotalScore)

	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].ShouldBlock)
	assert.Equal(t, "tenant-a", alerts[0].TenantID)
}

func TestAssessRisk_ProfileHighRiskFlag(t *testing.T) {
	// maxPossibleScore 公式决定单规则归一化上限 0.5，
	// 用 high=0.5 的阈值验证画像高风险标记的回写。
	rule := &model.RiskRule{
		RuleID:   "rule-blacklist",
		TenantID: "tenant-a",
		Name:     "known bad customers",
		Type:     model.RiskRuleTypeBlacklist,
		Conditions: model.RuleConditions{
			"entityId": {Value: "order-1"},
		},
		Action:    model.RiskActionBlock,
		IsActive:  true,
		IsEnabled: true,
	}

	rules := &fakeRuleSource{rules: []*model.RiskRule{rule}}
	persister := &fakePersister{}
	svc := NewAssessmentService(rules, persister, engine.Thresholds{
		Low: 0.1, Medium: 0.2, High: 0.5, Critical: 0.95,
	})

	result, err := svc.AssessRisk(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, model.RiskLevelHigh, result.Score.RiskLevel)
	require.NotNil(t, result.Profile)
	assert.True(t, result.Profile.IsHighRisk)
}
