package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/repository"
)

// ScoreStatsStore 评分统计查询
type ScoreStatsStore interface {
	CountByRiskLevel(ctx context.Context, tenantID string, from, to int64) (map[model.RiskLevel]int64, error)
	CountActions(ctx context.Context, tenantID string, from, to int64) (*repository.ActionStats, error)
}

// EventStatsStore 事件统计与处理
type EventStatsStore interface {
	CountByRuleType(ctx context.Context, tenantID string, from, to int64) (map[model.RiskRuleType]int64, error)
	CountUnprocessed(ctx context.Context, tenantID string) (int64, error)
	ListUnprocessed(ctx context.Context, tenantID string, pagination *repository.Pagination) ([]*model.RiskEvent, int64, error)
	MarkProcessed(ctx context.Context, tenantID, eventID, processedBy string) error
}

// RuleTypeCount 规则类型命中计数
type RuleTypeCount struct {
	RuleType model.RiskRuleType `json:"rule_type"`
	Count    int64              `json:"count"`
}

// TenantStatistics 租户统计
type TenantStatistics struct {
	TenantID          string                    `json:"tenant_id"`
	From              int64                     `json:"from"`
	To                int64                     `json:"to"`
	CountsByLevel     map[model.RiskLevel]int64 `json:"counts_by_level"`
	TotalAssessments  int64                     `json:"total_assessments"`
	Blocked           int64                     `json:"blocked"`
	Held              int64                     `json:"held"`
	UnderReview       int64                     `json:"under_review"`
	TopRuleTypes      []RuleTypeCount           `json:"top_rule_types"`
	UnprocessedEvents int64                     `json:"unprocessed_events"`
}

// StatsService 租户统计服务
type StatsService struct {
	scores ScoreStatsStore
	events EventStatsStore
}

// NewStatsService 创建统计服务
func NewStatsService(scores ScoreStatsStore, events EventStatsStore) *StatsService {
	return &StatsService{
		scores: scores,
		events: events,
	}
}

// TenantStats 统计时间范围 [from, to) 内的租户风险概况
func (s *StatsService) TenantStats(ctx context.Context, tenantID string, from, to int64) (*TenantStatistics, error) {
	if tenantID == "" {
		return nil, &ValidationError{Violations: []string{"tenantId is required"}}
	}
	if to <= from {
		return nil, &ValidationError{Violations: []string{"time range is empty"}}
	}

	levels, err := s.scores.CountByRiskLevel(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count by risk level: %w", err)
	}

	actions, err := s.scores.CountActions(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}

	ruleTypes, err := s.events.CountByRuleType(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("count by rule type: %w", err)
	}

	unprocessed, err := s.events.CountUnprocessed(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count unprocessed events: %w", err)
	}

	return &TenantStatistics{
		TenantID:          tenantID,
		From:              from,
		To:                to,
		CountsByLevel:     levels,
		TotalAssessments:  actions.Total,
		Blocked:           actions.Blocked,
		Held:              actions.Held,
		UnderReview:       actions.UnderReview,
		TopRuleTypes:      topRuleTypes(ruleTypes),
		UnprocessedEvents: unprocessed,
	}, nil
}

// ListUnprocessedEvents 分页查询待处理事件
func (s *StatsService) ListUnprocessedEvents(ctx context.Context, tenantID string, page, pageSize int) ([]*model.RiskEvent, int64, error) {
	return s.events.ListUnprocessed(ctx, tenantID, repository.NewPagination(page, pageSize))
}

// MarkEventProcessed 标记事件已处理
func (s *StatsService) MarkEventProcessed(ctx context.Context, tenantID, eventID, processedBy string) error {
	if processedBy == "" {
		return &ValidationError{Violations: []string{"processedBy is required"}}
	}
	return s.events.MarkProcessed(ctx, tenantID, eventID, processedBy)
}

// topRuleTypes 按命中次数降序，次数相同按类型名稳定排序
func topRuleTypes(counts map[model.RiskRuleType]int64) []RuleTypeCount {
	out := make([]RuleTypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, RuleTypeCount{RuleType: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].RuleType < out[j].RuleType
	})
	return out
}
