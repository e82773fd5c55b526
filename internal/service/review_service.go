package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meridian-commerce/meridian-risk/internal/metrics"
	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/pkg/logger"
)

// ScoreStore 评分持久化
type ScoreStore interface {
	GetByScoreID(ctx context.Context, tenantID, scoreID string) (*model.RiskScore, error)
	Review(ctx context.Context, tenantID, scoreID string, status model.RiskScoreStatus, reviewedBy, notes string) (*model.RiskScore, error)
}

// ReviewService 人工复核服务
//
// 唯一的状态迁移入口：CALCULATED → APPROVED/REJECTED，终态不可再变。
type ReviewService struct {
	scores ScoreStore
}

// NewReviewService 创建人工复核服务
func NewReviewService(scores ScoreStore) *ReviewService {
	return &ReviewService{scores: scores}
}

// Approve 复核通过
func (s *ReviewService) Approve(ctx context.Context, tenantID, scoreID, reviewedBy, notes string) (*model.RiskScore, error) {
	return s.review(ctx, tenantID, scoreID, model.RiskScoreStatusApproved, reviewedBy, notes)
}

// Reject 复核驳回
func (s *ReviewService) Reject(ctx context.Context, tenantID, scoreID, reviewedBy, notes string) (*model.RiskScore, error) {
	return s.review(ctx, tenantID, scoreID, model.RiskScoreStatusRejected, reviewedBy, notes)
}

// GetScore 查询评分
func (s *ReviewService) GetScore(ctx context.Context, tenantID, scoreID string) (*model.RiskScore, error) {
	return s.scores.GetByScoreID(ctx, tenantID, scoreID)
}

func (s *ReviewService) review(ctx context.Context, tenantID, scoreID string, status model.RiskScoreStatus, reviewedBy, notes string) (*model.RiskScore, error) {
	if reviewedBy == "" {
		return nil, &ValidationError{Violations: []string{"reviewedBy is required"}}
	}

	score, err := s.scores.Review(ctx, tenantID, scoreID, status, reviewedBy, notes)
	if err != nil {
		return nil, fmt.Errorf("review score %s: %w", scoreID, err)
	}

	decision := "approved"
	if status == model.RiskScoreStatusRejected {
		decision = "rejected"
	}
	metrics.RecordReview(decision)

	logger.Info("risk score reviewed",
		zap.String("tenant_id", tenantID),
		zap.String("score_id", scoreID),
		zap.String("decision", decision),
		zap.String("reviewed_by", reviewedBy))
	return score, nil
}
