package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

func TestListCache_SetAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewListCache(client, 5*time.Minute)
	ctx := context.Background()

	flags := &ListFlags{IsBlacklisted: true}
	err := cache.Set(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer, flags)
	require.NoError(t, err)

	got, err := cache.Get(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsBlacklisted)
	assert.False(t, got.IsWhitelisted)
}

func TestListCache_Miss(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewListCache(client, 5*time.Minute)

	got, err := cache.Get(context.Background(), "tenant-a", "cust-unknown", model.EntityTypeCustomer)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestListCache_KeyIsolation(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewListCache(client, 5*time.Minute)
	ctx := context.Background()

	// 同一对象ID不同类型互不影响
	require.NoError(t, cache.Set(ctx, "tenant-a", "x-1", model.EntityTypeCustomer, &ListFlags{IsBlacklisted: true}))

	got, err := cache.Get(ctx, "tenant-a", "x-1", model.EntityTypeSeller)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 不同租户互不影响
	got, err = cache.Get(ctx, "tenant-b", "x-1", model.EntityTypeCustomer)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListCache_Invalidate(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewListCache(client, 5*time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer, &ListFlags{IsWhitelisted: true}))
	require.NoError(t, cache.Invalidate(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer))

	got, err := cache.Get(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer)
	require.NoError(t, err)
	assert.Nil(t, got)

	// TTL 过期后同样按未命中处理
	require.NoError(t, cache.Set(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer, &ListFlags{IsWhitelisted: true}))
	mr.FastForward(6 * time.Minute)

	got, err = cache.Get(ctx, "tenant-a", "cust-1", model.EntityTypeCustomer)
	require.NoError(t, err)
	assert.Nil(t, got)
}
