package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-risk/internal/model"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRuleCounter struct {
	count int64
	err   error
}

func (f fakeRuleCounter) CountActive(context.Context) (int64, error) { return f.count, f.err }

func TestHealthCheck(t *testing.T) {
	svc := NewHealthService(fakePinger{}, fakeRuleCounter{count: 12}, 500)

	status := svc.HealthCheck(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "ok", status.Database)
	assert.Equal(t, int64(12), status.ActiveRules)
	assert.NotZero(t, status.CheckedAt)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	svc := NewHealthService(fakePinger{err: errors.New("connection refused")}, fakeRuleCounter{}, 500)

	status := svc.HealthCheck(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "connection refused", status.Database)
}

func TestGetCapabilities(t *testing.T) {
	svc := NewHealthService(fakePinger{}, fakeRuleCounter{}, 500)

	caps := svc.GetCapabilities()
	require.NotNil(t, caps)
	assert.ElementsMatch(t, model.ValidEntityTypes, caps.EntityTypes)
	assert.Len(t, caps.RuleTypes, 6)
	assert.Len(t, caps.Actions, 7)
	assert.Len(t, caps.RiskLevels, 4)
	assert.Equal(t, 500, caps.MaxRulesPerTenant)
	assert.InDelta(t, 0.6, caps.DefaultThresholds.High, 1e-9)
}
