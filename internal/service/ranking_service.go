package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
)

// Фиксированные веса композитного балла предложения. Самооценка сложности
// в композит не входит: это контекстный сигнал для админа, равные баллы
// разрешаются временем подачи.
const (
	rankWeightPrice  = 0.4
	rankWeightDelay  = 0.3
	rankWeightRating = 0.3

	// Нейтральное значение компонент конкурентности, когда разброса
	// цен/сроков нет (единственное предложение): берём максимум,
	// чтобы не делить на ноль.
	rankNeutralScore = 1.0

	maxProviderRating = 5.0
)

// RankProposals считает композитный балл каждого предложения для поддержки
// решения админа. Чистая детерминированная функция: одинаковые входы
// (включая справочник рейтингов) дают одинаковый порядок и баллы. После
// пересчёта рейтинга исполнителя результат обязан быть запрошен заново —
// кэшировать его через смену рейтинга нельзя.
func RankProposals(proposals []models.Proposal, ratings map[uuid.UUID]float64) []models.ProposalScore {
	if len(proposals) == 0 {
		return nil
	}

	minPrice, maxPrice := proposals[0].Price, proposals[0].Price
	minDelay, maxDelay := proposals[0].DelayDays, proposals[0].DelayDays
	for _, p := range proposals[1:] {
		if p.Price < minPrice {
			minPrice = p.Price
		}
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
		if p.DelayDays < minDelay {
			minDelay = p.DelayDays
		}
		if p.DelayDays > maxDelay {
			maxDelay = p.DelayDays
		}
	}

	scores := make([]models.ProposalScore, 0, len(proposals))
	for _, p := range proposals {
		priceScore := rankNeutralScore
		if maxPrice > minPrice {
			// Ниже цена — выше балл, нормировка по разбросу набора.
			priceScore = (maxPrice - p.Price) / (maxPrice - minPrice)
		}

		delayScore := rankNeutralScore
		if maxDelay > minDelay {
			delayScore = float64(maxDelay-p.DelayDays) / float64(maxDelay-minDelay)
		}

		// 0 для исполнителя без истории.
		ratingScore := ratings[p.ProviderID] / maxProviderRating

		difficultyScore := 0.0
		if p.Difficulty >= 1 && p.Difficulty <= 5 {
			difficultyScore = float64(5-p.Difficulty) / 4
		}

		scores = append(scores, models.ProposalScore{
			Proposal:        p,
			PriceScore:      priceScore,
			DelayScore:      delayScore,
			RatingScore:     ratingScore,
			DifficultyScore: difficultyScore,
			Composite: rankWeightPrice*priceScore +
				rankWeightDelay*delayScore +
				rankWeightRating*ratingScore,
		})
	}

	// Порядок: по композиту, при равенстве — кто раньше подал.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Composite != scores[j].Composite {
			return scores[i].Composite > scores[j].Composite
		}
		return scores[i].Proposal.CreatedAt.Before(scores[j].Proposal.CreatedAt)
	})

	return scores
}

// ProposalRepoForRanking доступ к предложениям для сервиса ранжирования.
type ProposalRepoForRanking interface {
	ListByRequestID(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error)
}

// ProviderRepoForRanking доступ к исполнителям для сервиса ранжирования.
type ProviderRepoForRanking interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// RankingService обвязка движка ранжирования над хранилищем.
type RankingService struct {
	proposals ProposalRepoForRanking
	providers ProviderRepoForRanking
}

func NewRankingService(proposals ProposalRepoForRanking, providers ProviderRepoForRanking) *RankingService {
	return &RankingService{proposals: proposals, providers: providers}
}

// RankProposalsForRequest ранжирует pending-предложения по заявке,
// подтягивая текущие рейтинги исполнителей.
func (s *RankingService) RankProposalsForRequest(ctx context.Context, requestID uuid.UUID) ([]models.ProposalScore, error) {
	all, err := s.proposals.ListByRequestID(ctx, requestID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище предложений недоступно")
	}

	pending := make([]models.Proposal, 0, len(all))
	for _, p := range all {
		if p.Status == models.ProposalStatusPending {
			pending = append(pending, p)
		}
	}

	ratings := make(map[uuid.UUID]float64, len(pending))
	for _, p := range pending {
		if _, ok := ratings[p.ProviderID]; ok {
			continue
		}
		provider, err := s.providers.GetByID(ctx, p.ProviderID)
		if err != nil {
			if errors.Is(err, repository.ErrProviderNotFound) {
				continue
			}
			return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище исполнителей недоступно")
		}
		ratings[p.ProviderID] = provider.AverageRating
	}

	return RankProposals(pending, ratings), nil
}
