package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-risk/internal/cache"
	"github.com/meridian-commerce/meridian-risk/internal/metrics"
	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

// ProfileStore 画像持久化
type ProfileStore interface {
	GetByEntity(ctx context.Context, tenantID, entityID string, entityType model.EntityType) (*model.RiskProfile, error)
	SetBlacklisted(ctx context.Context, tenantID, entityID string, entityType model.EntityType, blacklisted bool, operator, notes string) (*model.RiskProfile, error)
	SetWhitelisted(ctx context.Context, tenantID, entityID string, entityType model.EntityType, whitelisted bool, operator, notes string) (*model.RiskProfile, error)
}

// EventStore 事件持久化 (名单变更审计)
type EventStore interface {
	Create(ctx context.Context, event *model.RiskEvent) error
}

// ListFlagCache 名单标记缓存
type ListFlagCache interface {
	Get(ctx context.Context, tenantID, entityID string, entityType model.EntityType) (*cache.ListFlags, error)
	Set(ctx context.Context, tenantID, entityID string, entityType model.EntityType, flags *cache.ListFlags) error
	Invalidate(ctx context.Context, tenantID, entityID string, entityType model.EntityType) error
}

// ListService 黑白名单管理服务
//
// 名单标记落在 RiskProfile 上，与评分派生字段相互独立；
// 每次变更同时写一条审计事件并刷新名单缓存。
type ListService struct {
	profiles ProfileStore
	events   EventStore
	flags    ListFlagCache
}

// NewListService 创建名单管理服务
func NewListService(profiles ProfileStore, events EventStore, flags ListFlagCache) *ListService {
	return &ListService{
		profiles: profiles,
		events:   events,
		flags:    flags,
	}
}

// Blacklist 加入黑名单
func (s *ListService) Blacklist(ctx context.Context, tenantID, entityID string, entityType model.EntityType, operator, reason string) (*model.RiskProfile, error) {
	if err := validateListRequest(tenantID, entityID, entityType); err != nil {
		return nil, err
	}

	profile, err := s.profiles.SetBlacklisted(ctx, tenantID, entityID, entityType, true, operator, reason)
	if err != nil {
		return nil, fmt.Errorf("blacklist entity: %w", err)
	}
	metrics.RecordListHit("blacklist")

	s.audit(ctx, profile, model.RiskEventTypeBlacklisted, operator, reason)
	s.refreshFlags(ctx, profile)
	return profile, nil
}

// Whitelist 加入白名单
func (s *ListService) Whitelist(ctx context.Context, tenantID, entityID string, entityType model.EntityType, operator, reason string) (*model.RiskProfile, error) {
	if err := validateListRequest(tenantID, entityID, entityType); err != nil {
		return nil, err
	}

	profile, err := s.profiles.SetWhitelisted(ctx, tenantID, entityID, entityType, true, operator, reason)
	if err != nil {
		return nil, fmt.Errorf("whitelist entity: %w", err)
	}
	metrics.RecordListHit("whitelist")

	s.audit(ctx, profile, model.RiskEventTypeWhitelisted, operator, reason)
	s.refreshFlags(ctx, profile)
	return profile, nil
}

// RemoveFromLists 同时移出黑白名单
func (s *ListService) RemoveFromLists(ctx context.Context, tenantID, entityID string, entityType model.EntityType, operator, reason string) (*model.RiskProfile, error) {
	if err := validateListRequest(tenantID, entityID, entityType); err != nil {
		return nil, err
	}

	if _, err := s.profiles.SetBlacklisted(ctx, tenantID, entityID, entityType, false, operator, reason); err != nil {
		return nil, fmt.Errorf("remove from blacklist: %w", err)
	}
	profile, err := s.profiles.SetWhitelisted(ctx, tenantID, entityID, entityType, false, operator, reason)
	if err != nil {
		return nil, fmt.Errorf("remove from whitelist: %w", err)
	}

	s.audit(ctx, profile, model.RiskEventTypeListRemoved, operator, reason)
	s.refreshFlags(ctx, profile)
	return profile, nil
}

// GetFlags 查询名单标记，缓存优先
func (s *ListService) GetFlags(ctx context.Context, tenantID, entityID string, entityType model.EntityType) (*cache.ListFlags, error) {
	if s.flags != nil {
		cached, err := s.flags.Get(ctx, tenantID, entityID, entityType)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	profile, err := s.profiles.GetByEntity(ctx, tenantID, entityID, entityType)
	if err != nil {
		return nil, err
	}

	flags := &cache.ListFlags{
		IsBlacklisted: profile.IsBlacklisted,
		IsWhitelisted: profile.IsWhitelisted,
	}
	if s.flags != nil {
		if err := s.flags.Set(ctx, tenantID, entityID, entityType, flags); err != nil {
			logger.Warn("list flag cache write failed",
				zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	return flags, nil
}

// GetProfile 查询画像
func (s *ListService) GetProfile(ctx context.Context, tenantID, entityID string, entityType model.EntityType) (*model.RiskProfile, error) {
	return s.profiles.GetByEntity(ctx, tenantID, entityID, entityType)
}

// audit 名单变更写一条审计事件，失败只记日志
func (s *ListService) audit(ctx context.Context, profile *model.RiskProfile, eventType model.RiskEventType, operator, reason string) {
	if s.events == nil {
		return
	}

	event := &model.RiskEvent{
		EventID:     uuid.New().String(),
		TenantID:    profile.TenantID,
		EntityID:    profile.EntityID,
		EntityType:  profile.EntityType,
		EventType:   eventType,
		EventName:   string(eventType),
		Description: reason,
		EventData: model.JSONMap{
			"operator": operator,
		},
		Severity:  "medium",
		Source:    "list_management",
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		logger.Error("failed to record list change event",
			zap.String("entity_id", profile.EntityID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// refreshFlags 名单变更后回写缓存
func (s *ListService) refreshFlags(ctx context.Context, profile *model.RiskProfile) {
	if s.flags == nil {
		return
	}
	flags := &cache.ListFlags{
		IsBlacklisted: profile.IsBlacklisted,
		IsWhitelisted: profile.IsWhitelisted,
	}
	if err := s.flags.Set(ctx, profile.TenantID, profile.EntityID, profile.EntityType, flags); err != nil {
		logger.Warn("list flag cache refresh failed",
			zap.String("entity_id", profile.EntityID), zap.Error(err))
	}
}

func validateListRequest(tenantID, entityID string, entityType model.EntityType) error {
	var violations []string
	if tenantID == "" {
		violations = append(violations, "tenantId is required")
	}
	if entityID == "" {
		violations = append(violations, "entityId is required")
	}
	if !entityType.IsValid() {
		violations = append(violations, fmt.Sprintf("entityType %q is not supported", entityType))
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
