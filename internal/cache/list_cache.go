package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

const (
	listKeyPrefix  = "risk:list:"
	defaultListTTL = 5 * time.Minute
)

// ListFlags 对象的名单标记
type ListFlags struct {
	IsBlacklisted bool `json:"is_blacklisted"`
	IsWhitelisted bool `json:"is_whitelisted"`
}

// ListCache 名单标记缓存
type ListCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewListCache 创建名单缓存
func NewListCache(client redis.UniversalClient, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = defaultListTTL
	}
	return &ListCache{client: client, ttl: ttl}
}

// Get 获取名单标记，缓存未命中返回 nil
func (c *ListCache) Get(ctx context.Context, tenantID, entityID string, entityType model.EntityType) (*ListFlags, error) {
	data, err := c.client.Get(ctx, listKey(tenantID, entityID, entityType)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var flags ListFlags
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, err
	}
	return &flags, nil
}

// Set 写入名单标记
func (c *ListCache) Set(ctx context.Context, tenantID, entityID string, entityType model.EntityType, flags *ListFlags) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(tenantID, entityID, entityType), data, c.ttl).Err()
}

// Invalidate 失效对象的名单标记
func (c *ListCache) Invalidate(ctx context.Context, tenantID, entityID string, entityType model.EntityType) error {
	return c.client.Del(ctx, listKey(tenantID, entityID, entityType)).Err()
}

// listKey 生成缓存键
func listKey(tenantID, entityID string, entityType model.EntityType) string {
	return fmt.Sprintf("%s%s:%s:%s", listKeyPrefix, tenantID, entityType, entityID)
}
