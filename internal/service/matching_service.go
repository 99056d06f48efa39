package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
)

// Весовая политика подбора. Значения настраиваемые, но результат обязан
// быть детерминированным и монотонным: чем больше совпавших критериев,
// тем выше балл.
const (
	matchWeightSpecialty   = 50.0
	matchWeightGeo         = 20.0
	matchWeightSuccessRate = 20.0
	matchWeightExperience  = 10.0

	// Опыт свыше этого порога балл не увеличивает.
	matchExperienceCapYears = 10
)

// categoryAliases сводит легаси и альтернативные названия услуг
// к каноническим ключам специальностей.
var categoryAliases = map[string]string{
	"plumbing":                  "plomberie",
	"plombier":                  "plomberie",
	"electricity":               "electricite",
	"electricien":               "electricite",
	"moving":                    "demenagement",
	"translation":               "traduction",
	"interpretariat":            "traduction",
	"admin":                     "assistance_administrative",
	"administrative":            "assistance_administrative",
	"assistance-administrative": "assistance_administrative",
	"it":                        "informatique",
	"cleaning":                  "menage",
	"renovation":                "btp",
	"travaux":                   "btp",
	"transport-colis":           "transport",
}

// NormalizeCategory приводит тип услуги заявки к каноническому ключу
// специальности.
func NormalizeCategory(serviceType string) string {
	key := strings.ToLower(strings.TrimSpace(serviceType))
	if canonical, ok := categoryAliases[key]; ok {
		return canonical
	}
	return key
}

// MatchProviders подбирает исполнителей под заявку. Чистая функция без
// побочных эффектов: результат не сохраняется и безопасен для повторного
// вызова. Возвращаются все допустимые кандидаты (active|pending, без
// удалённых); нулевой балл означает, что специальность не совпала —
// разделение на "предложенных" и "прочих" остаётся политикой вызывающего.
func MatchProviders(request *models.Request, providers []models.Provider) []models.MatchResult {
	category := NormalizeCategory(request.ServiceType)

	results := make([]models.MatchResult, 0, len(providers))
	for i := range providers {
		p := providers[i]
		if p.Deleted {
			continue
		}
		if p.Status != models.ProviderStatusActive && p.Status != models.ProviderStatusPending {
			continue
		}

		score, reasons := scoreProvider(&p, request, category)
		results = append(results, models.MatchResult{
			Provider: p,
			Score:    score,
			Reasons:  reasons,
		})
	}

	// Детерминированный порядок: по баллу, при равенстве — по номеру.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Provider.Ref < results[j].Provider.Ref
	})

	return results
}

// scoreProvider считает балл кандидата. Без совпадения специальности балл
// нулевой независимо от остальных сигналов.
func scoreProvider(p *models.Provider, request *models.Request, category string) (float64, []string) {
	if !p.HasSpecialty(category) {
		return 0, nil
	}

	score := matchWeightSpecialty
	reasons := []string{fmt.Sprintf("специальность %q совпадает", category)}

	if p.OperatesIn(request.Country) {
		score += matchWeightGeo
		reasons = append(reasons, fmt.Sprintf("работает в стране %s", request.Country))
	}

	if p.SuccessRate > 0 {
		score += matchWeightSuccessRate * p.SuccessRate / 100
		reasons = append(reasons, fmt.Sprintf("доля успешных миссий %.0f%%", p.SuccessRate))
	}

	if p.ExperienceYears > 0 {
		years := p.ExperienceYears
		if years > matchExperienceCapYears {
			years = matchExperienceCapYears
		}
		score += matchWeightExperience * float64(years) / matchExperienceCapYears
		reasons = append(reasons, fmt.Sprintf("опыт %d лет", p.ExperienceYears))
	}

	return score, reasons
}

// RequestRepoForMatching доступ к заявкам для сервиса подбора.
type RequestRepoForMatching interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
}

// ProviderRepoForMatching доступ к исполнителям для сервиса подбора.
type ProviderRepoForMatching interface {
	ListEligible(ctx context.Context) ([]models.Provider, error)
}

// MatchingService обвязка движка подбора над хранилищем.
type MatchingService struct {
	requests  RequestRepoForMatching
	providers ProviderRepoForMatching
}

func NewMatchingService(requests RequestRepoForMatching, providers ProviderRepoForMatching) *MatchingService {
	return &MatchingService{requests: requests, providers: providers}
}

// MatchProvidersForRequest подбирает исполнителей под существующую заявку.
func (s *MatchingService) MatchProvidersForRequest(ctx context.Context, requestID uuid.UUID) ([]models.MatchResult, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище заявок недоступно")
	}
	if request.Deleted {
		return nil, apperror.ErrRequestNotFound
	}

	providers, err := s.providers.ListEligible(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище исполнителей недоступно")
	}

	return MatchProviders(request, providers), nil
}
