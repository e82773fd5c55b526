package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-commerce/meridian-risk/internal/model"
	"github.com/meridian-commerce/meridian-risk/internal/repository"
)

type fakeScoreStore struct {
	scores map[string]*model.RiskScore
}

func newFakeScoreStore() *fakeScoreStore {
	return &fakeScoreStore{scores: make(map[string]*model.RiskScore)}
}

func (f *fakeScoreStore) GetByScoreID(_ context.Context, _, scoreID string) (*model.RiskScore, error) {
	score, ok := f.scores[scoreID]
	if !ok {
		return nil, repository.ErrScoreNotFound
	}
	return score, nil
}

func (f *fakeScoreStore) Review(_ context.Context, _, scoreID string, status model.RiskScoreStatus, reviewedBy, notes string) (*model.RiskScore, error) {
	score, ok := f.scores[scoreID]
	if !ok {
		return nil, repository.ErrScoreNotFound
	}
	if score.Status != model.RiskScoreStatusCalculated {
		return nil, repository.ErrScoreReviewed
	}
	score.Status = status
	score.ReviewedBy = reviewedBy
	score.ReviewNotes = notes
	return score, nil
}

func TestReviewService_Approve(t *testing.T) {
	store := newFakeScoreStore()
	store.scores["score-1"] = &model.RiskScore{
		ScoreID: "score-1",
		Status:  model.RiskScoreStatusCalculated,
	}
	svc := NewReviewService(store)

	reviewed, err := svc.Approve(context.Background(), "tenant-a", "score-1", "analyst", "looks fine")
	require.NoError(t, err)
	assert.Equal(t, model.RiskScoreStatusApproved, reviewed.Status)
	assert.Equal(t, "analyst", reviewed.ReviewedBy)
	assert.Equal(t, "looks fine", reviewed.ReviewNotes)
}

func TestReviewService_Reject(t *testing.T) {
	store := newFakeScoreStore()
	store.scores["score-1"] = &model.RiskScore{
		ScoreID: "score-1",
		Status:  model.RiskScoreStatusCalculated,
	}
	svc := NewReviewService(store)

	reviewed, err := svc.Reject(context.Background(), "tenant-a", "score-1", "analyst", "fraud confirmed")
	require.NoError(t, err)
	assert.Equal(t, model.RiskScoreStatusRejected, reviewed.Status)
}

func TestReviewService_TerminalStateIsFinal(t *testing.T) {
	store := newFakeScoreStore()
	store.scores["score-1"] = &model.RiskScore{
		ScoreID: "score-1",
		Status:  model.RiskScoreStatusApproved,
	}
	svc := NewReviewService(store)

	_, err := svc.Reject(context.Background(), "tenant-a", "score-1", "analyst", "")
	assert.ErrorIs(t, err, repository.ErrScoreReviewed)
}

func TestReviewService_RequiresReviewer(t *testing.T) {
	svc := NewReviewService(newFakeScoreStore())

	_, err := svc.Approve(context.Background(), "tenant-a", "score-1", "", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestReviewService_MissingScore(t *testing.T) {
	svc := NewReviewService(newFakeScoreStore())

	_, err := svc.Approve(context.Background(), "tenant-a", "missing", "analyst", "")
	assert.ErrorIs(t, err, repository.ErrScoreNotFound)
}
