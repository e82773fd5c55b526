// Package cache 提供风险评估服务的缓存层
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

const (
	ruleKeyPrefix  = "risk:rules:"
	defaultRuleTTL = 30 * time.Second
)

// RuleCache 租户活跃规则缓存
//
// 整租户一把键，写路径失效，读路径短 TTL 兜底。
type RuleCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRuleCache 创建规则缓存
func NewRuleCache(client redis.UniversalClient, ttl time.Duration) *RuleCache {
	if ttl <= 0 {
		ttl = defaultRuleTTL
	}
	return &RuleCache{client: client, ttl: ttl}
}

// Get 获取租户的活跃规则，缓存未命中返回 nil
func (c *RuleCache) Get(ctx context.Context, tenantID string) ([]*model.RiskRule, error) {
	data, err := c.client.Get(ctx, ruleKeyPrefix+tenantID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var rules []*model.RiskRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Set 写入租户的活跃规则
func (c *RuleCache) Set(ctx context.Context, tenantID string, rules []*model.RiskRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ruleKeyPrefix+tenantID, data, c.ttl).Err()
}

// Invalidate 失效租户的规则缓存
func (c *RuleCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.client.Del(ctx, ruleKeyPrefix+tenantID).Err()
}
