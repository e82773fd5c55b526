package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	return s, client
}

func TestRuleCache_SetAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRuleCache(client, 30*time.Second)
	ctx := context.Background()

	rules := []*model.RiskRule{
		{
			RuleID:   "rule-1",
			TenantID: "tenant-a",
			Name:     "high value order",
			Type:     model.RiskRuleTypeScoring,
			Priority: 10,
			Conditions: model.RuleConditions{
				"signals.HIGH_VALUE_ORDER.value": {Operator: "greater_than", Value: 0.5, Score: 3},
			},
			Action:    model.RiskActionScore,
			IsActive:  true,
			IsEnabled: true,
		},
	}

	err := cache.Set(ctx, "tenant-a", rules)
	require.NoError(t, err)

	got, err := cache.Get(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rule-1", got[0].RuleID)
	assert.Equal(t, model.RiskRuleTypeScoring, got[0].Type)
	assert.Equal(t, 3.0, got[0].Conditions["signals.HIGH_VALUE_ORDER.value"].Score)
}

func TestRuleCache_Miss(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRuleCache(client, 30*time.Second)

	got, err := cache.Get(context.Background(), "tenant-missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleCache_EmptyIsNotMiss(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRuleCache(client, 30*time.Second)
	ctx := context.Background()

	// 缓存"无规则"结果，区别于未命中
	err := cache.Set(ctx, "tenant-empty", []*model.RiskRule{})
	require.NoError(t, err)

	got, err := cache.Get(ctx, "tenant-empty")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRuleCache_Invalidate(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRuleCache(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tenant-a", []*model.RiskRule{{RuleID: "rule-1"}}))
	require.NoError(t, cache.Invalidate(ctx, "tenant-a"))

	got, err := cache.Get(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleCache_TTLExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRuleCache(client, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tenant-a", []*model.RiskRule{{RuleID: "rule-1"}}))

	mr.FastForward(11 * time.Second)

	got, err := cache.Get(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleCache_TenantIsolation(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRuleCache(client, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tenant-a", []*model.RiskRule{{RuleID: "rule-a"}}))
	require.NoError(t, cache.Set(ctx, "tenant-b", []*model.RiskRule{{RuleID: "rule-b"}}))

	gotA, err := cache.Get(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, gotA, 1)
	assert.Equal(t, "rule-a", gotA[0].RuleID)

	require.NoError(t, cache.Invalidate(ctx, "tenant-a"))

	gotB, err := cache.Get(ctx, "tenant-b")
	require.NoError(t, err)
	require.Len(t, gotB, 1)
}
