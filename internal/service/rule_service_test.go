package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/repository"
)

type fakeRuleStore struct {
	rules       map[string]*model.RiskRule
	createErr   error
	listCalls   int
	activeRules []*model.RiskRule
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: make(map[string]*model.RiskRule)}
}

func (f *fakeRuleStore) Create(_ context.Context, rule *model.RiskRule) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rules[rule.RuleID]; ok {
		return repository.ErrRuleDuplicate
	}
	f.rules[rule.RuleID] = rule
	return nil
}

func (f *fakeRuleStore) Update(_ context.Context, rule *model.RiskRule) error {
	if _, ok := f.rules[rule.RuleID]; !ok {
		return repository.ErrRuleNotFound
	}
	f.rules[rule.RuleID] = rule
	return nil
}

func (f *fakeRuleStore) GetByRuleID(_ context.Context, _, ruleID string) (*model.RiskRule, error) {
	rule, ok := f.rules[ruleID]
	if !ok {
		return nil, repository.ErrRuleNotFound
	}
	return rule, nil
}

func (f *fakeRuleStore) ListActiveByTenant(_ context.Context, _ string) ([]*model.RiskRule, error) {
	f.listCalls++
	return f.activeRules, nil
}

func (f *fakeRuleStore) ListByTenant(_ context.Context, _ string, _ *repository.Pagination) ([]*model.RiskRule, int64, error) {
	var out []*model.RiskRule
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (f *fakeRuleStore) SetEnabled(_ context.Context, _, ruleID string, enabled bool, updatedBy string) error {
	rule, ok := f.rules[ruleID]
	if !ok {
		return repository.ErrRuleNotFound
	}
	rule.IsEnabled = enabled
	rule.UpdatedBy = updatedBy
	return nil
}

func (f *fakeRuleStore) Delete(_ context.Context, _, ruleID string) error {
	if _, ok := f.rules[ruleID]; !ok {
		return repository.ErrRuleNotFound
	}
	delete(f.rules, ruleID)
	return nil
}

func (f *fakeRuleStore) CountByTenant(_ context.Context, _ string) (int64, error) {
	return int64(len(f.rules)), nil
}

type fakeRuleCache struct {
	data           map[string][]*model.RiskRule
	invalidations  int
	getErr, setErr error
}

func newFakeRuleCache() *fakeRuleCache {
	return &fakeRuleCache{data: make(map[string][]*model.RiskRule)}
}

func (f *fakeRuleCache) Get(_ context.Context, tenantID string) ([]*model.RiskRule, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data[tenantID], nil
}

func (f *fakeRuleCache) Set(_ context.Context, tenantID string, rules []*model.RiskRule) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[tenantID] = rules
	return nil
}

func (f *fakeRuleCache) Invalidate(_ context.Context, tenantID string) error {
	f.invalidations++
	delete(f.data, tenantID)
	return nil
}

func TestRuleService_CreateAssignsDefaults(t *testing.T) {
	store := newFakeRuleStore()
	cache := newFakeRuleCache()
	svc := NewRuleService(store, cache, 100)

	created, err := svc.CreateRule(context.Background(), &model.RiskRule{
		TenantID: "tenant-a",
		Name:     "scoring rule",
		Type:     model.RiskRuleTypeScoring,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.RuleID)
	assert.Equal(t, model.DefaultRulePriority, created.Priority)
	assert.Equal(t, model.RiskActionScore, created.Action)
	assert.Equal(t, 1, cache.invalidations)
}

func TestRuleService_CreateValidation(t *testing.T) {
	svc := NewRuleService(newFakeRuleStore(), newFakeRuleCache(), 100)

	_, err := svc.CreateRule(context.Background(), &model.RiskRule{
		Type:   model.RiskRuleType("MAGIC"),
		Weight: -1,
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 4) // tenantId, name, ruleType, weight
}

func TestRuleService_CreateEnforcesLimit(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewRuleService(store, newFakeRuleCache(), 1)

	_, err := svc.CreateRule(context.Background(), &model.RiskRule{
		TenantID: "tenant-a", Name: "one", Type: model.RiskRuleTypeScoring,
	})
	require.NoError(t, err)

	_, err = svc.CreateRule(context.Background(), &model.RiskRule{
		TenantID: "tenant-a", Name: "two", Type: model.RiskRuleTypeScoring,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule limit")
}

func TestRuleService_ActiveRulesUsesCache(t *testing.T) {
	store := newFakeRuleStore()
	store.activeRules = []*model.RiskRule{{RuleID: "rule-1", TenantID: "tenant-a"}}
	cache := newFakeRuleCache()
	svc := NewRuleService(store, cache, 100)
	ctx := context.Background()

	// 第一次未命中，回源并回填
	rules, err := svc.ActiveRules(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, store.listCalls)

	// 第二次命中缓存，不再回源
	rules, err = svc.ActiveRules(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, store.listCalls)
}

func TestRuleService_CacheErrorFallsBackToStore(t *testing.T) {
	store := newFakeRuleStore()
	store.activeRules = []*model.RiskRule{{RuleID: "rule-1"}}
	cache := newFakeRuleCache()
	cache.getErr = assert.AnError
	cache.setErr = assert.AnError
	svc := NewRuleService(store, cache, 100)

	rules, err := svc.ActiveRules(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, 1, store.listCalls)
}

func TestRuleService_MutationsInvalidateCache(t *testing.T) {
	store := newFakeRuleStore()
	cache := newFakeRuleCache()
	svc := NewRuleService(store, cache, 100)
	ctx := context.Background()

	created, err := svc.CreateRule(ctx, &model.RiskRule{
		TenantID: "tenant-a", Name: "rule", Type: model.RiskRuleTypeThreshold,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetRuleEnabled(ctx, "tenant-a", created.RuleID, false, "ops"))
	require.NoError(t, svc.DeleteRule(ctx, "tenant-a", created.RuleID))

	// create + toggle + delete
	assert.Equal(t, 3, cache.invalidations)
}

func TestRuleService_DeleteMissing(t *testing.T) {
	svc := NewRuleService(newFakeRuleStore(), newFakeRuleCache(), 100)

	err := svc.DeleteRule(context.Background(), "tenant-a", "missing")
	assert.ErrorIs(t, err, repository.ErrRuleNotFound)
}
