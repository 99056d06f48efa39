package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/repository"
)

func makeProposal(ref string, price float64, delayDays int, createdAt time.Time) models.Proposal {
	return models.Proposal{
		ID:         uuid.New(),
		Ref:        ref,
		RequestID:  uuid.New(),
		ProviderID: uuid.New(),
		Price:      price,
		DelayDays:  delayDays,
		Difficulty: 3,
		Status:     models.ProposalStatusPending,
		CreatedAt:  createdAt,
	}
}

func TestRankProposals_Empty(t *testing.T) {
	assert.Nil(t, RankProposals(nil, nil))
}

func TestRankProposals_SingleProposalNeutral(t *testing.T) {
	now := time.Now()
	p := makeProposal("PRO-2026-0001", 500, 7, now)

	scores := RankProposals([]models.Proposal{p}, map[uuid.UUID]float64{p.ProviderID: 4})

	assert.Len(t, scores, 1)
	// Без разброса цен и сроков обе компоненты нейтральны.
	assert.Equal(t, 1.0, scores[0].PriceScore)
	assert.Equal(t, 1.0, scores[0].DelayScore)
	assert.InDelta(t, 0.8, scores[0].RatingScore, 1e-9)
	assert.InDelta(t, 0.4+0.3+0.3*0.8, scores[0].Composite, 1e-9)
}

func TestRankProposals_CheaperAndFasterWins(t *testing.T) {
	now := time.Now()
	cheapFast := makeProposal("PRO-2026-0001", 300, 3, now)
	expensiveSlow := makeProposal("PRO-2026-0002", 900, 21, now)

	scores := RankProposals([]models.Proposal{expensiveSlow, cheapFast}, nil)

	assert.Equal(t, "PRO-2026-0001", scores[0].Proposal.Ref)
	assert.Equal(t, 1.0, scores[0].PriceScore)
	assert.Equal(t, 1.0, scores[0].DelayScore)
	assert.Equal(t, 0.0, scores[1].PriceScore)
	assert.Equal(t, 0.0, scores[1].DelayScore)
}

func TestRankProposals_RatingCanOutweighPrice(t *testing.T) {
	now := time.Now()
	cheapNoHistory := makeProposal("PRO-2026-0001", 400, 10, now)
	pricierTopRated := makeProposal("PRO-2026-0002", 500, 10, now)

	ratings := map[uuid.UUID]float64{pricierTopRated.ProviderID: 5}

	scores := RankProposals([]models.Proposal{cheapNoHistory, pricierTopRated}, ratings)

	// 0.4*0 + 0.3*1 + 0.3*1 = 0.6 против 0.4*1 + 0.3*1 + 0 = 0.7:
	// здесь цена всё же перевешивает, проверяем точные значения.
	assert.Equal(t, "PRO-2026-0001", scores[0].Proposal.Ref)
	assert.InDelta(t, 0.7, scores[0].Composite, 1e-9)
	assert.InDelta(t, 0.6, scores[1].Composite, 1e-9)
}

func TestRankProposals_DeterministicOrder(t *testing.T) {
	now := time.Now()
	p1 := makeProposal("PRO-2026-0001", 100, 3, now)
	p2 := makeProposal("PRO-2026-0002", 80, 5, now)
	ratings := map[uuid.UUID]float64{p1.ProviderID: 4.0, p2.ProviderID: 5.0}

	first := RankProposals([]models.Proposal{p1, p2}, ratings)
	second := RankProposals([]models.Proposal{p1, p2}, ratings)

	// p2: 0.4*1 + 0.3*0 + 0.3*1 = 0.7; p1: 0.4*0 + 0.3*1 + 0.3*0.8 = 0.54.
	assert.Equal(t, "PRO-2026-0002", first[0].Proposal.Ref)
	assert.InDelta(t, 0.7, first[0].Composite, 1e-9)
	assert.InDelta(t, 0.54, first[1].Composite, 1e-9)

	// Повторный прогон с теми же входами даёт тот же порядок и баллы.
	assert.Equal(t, first, second)
}

func TestRankProposals_DifficultyIsContextOnly(t *testing.T) {
	now := time.Now()
	easy := makeProposal("PRO-2026-0001", 500, 7, now)
	easy.Difficulty = 1
	hard := makeProposal("PRO-2026-0002", 500, 7, now.Add(time.Minute))
	hard.Difficulty = 5

	scores := RankProposals([]models.Proposal{easy, hard}, nil)

	// Сложность видна в компоненте, но не меняет композит.
	assert.Equal(t, scores[0].Composite, scores[1].Composite)
	assert.Equal(t, 1.0, scores[0].DifficultyScore)
	assert.Equal(t, 0.0, scores[1].DifficultyScore)
}

func TestRankProposals_TieBreakByCreatedAt(t *testing.T) {
	now := time.Now()
	later := makeProposal("PRO-2026-0002", 500, 7, now.Add(time.Hour))
	earlier := makeProposal("PRO-2026-0001", 500, 7, now)

	scores := RankProposals([]models.Proposal{later, earlier}, nil)

	assert.Equal(t, scores[0].Composite, scores[1].Composite)
	assert.Equal(t, "PRO-2026-0001", scores[0].Proposal.Ref)
}

type fakeProposalRepoForRanking struct {
	proposals []models.Proposal
}

func (f *fakeProposalRepoForRanking) ListByRequestID(_ context.Context, _ uuid.UUID) ([]models.Proposal, error) {
	return f.proposals, nil
}

type fakeProviderRepoForRanking struct {
	providers map[uuid.UUID]*models.Provider
}

func (f *fakeProviderRepoForRanking) GetByID(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	if p, ok := f.providers[id]; ok {
		return p, nil
	}
	return nil, repository.ErrProviderNotFound
}

func TestRankingService_OnlyPendingRanked(t *testing.T) {
	now := time.Now()
	pending := makeProposal("PRO-2026-0001", 500, 7, now)
	refused := makeProposal("PRO-2026-0002", 100, 1, now)
	refused.Status = models.ProposalStatusRefused

	provider := &models.Provider{ID: pending.ProviderID, AverageRating: 4}

	svc := NewRankingService(
		&fakeProposalRepoForRanking{proposals: []models.Proposal{pending, refused}},
		&fakeProviderRepoForRanking{providers: map[uuid.UUID]*models.Provider{provider.ID: provider}},
	)

	scores, err := svc.RankProposalsForRequest(context.Background(), pending.RequestID)
	assert.NoError(t, err)
	assert.Len(t, scores, 1)
	assert.Equal(t, "PRO-2026-0001", scores[0].Proposal.Ref)
	assert.InDelta(t, 0.8, scores[0].RatingScore, 1e-9)
}

func TestRankingService_MissingProviderScoredWithoutHistory(t *testing.T) {
	now := time.Now()
	orphan := makeProposal("PRO-2026-0001", 500, 7, now)

	svc := NewRankingService(
		&fakeProposalRepoForRanking{proposals: []models.Proposal{orphan}},
		&fakeProviderRepoForRanking{providers: map[uuid.UUID]*models.Provider{}},
	)

	scores, err := svc.RankProposalsForRequest(context.Background(), orphan.RequestID)
	assert.NoError(t, err)
	assert.Len(t, scores, 1)
	assert.Equal(t, 0.0, scores[0].RatingScore)
}
