package service

import (
	"context"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
)

// RequestCounter счётчик заявок по статусу.
type RequestCounter interface {
	CountByStatus(ctx context.Context, status string) (int, error)
}

// ProviderCounter счётчик действующих исполнителей.
type ProviderCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// MissionCounter счётчик миссий по внутреннему состоянию.
type MissionCounter interface {
	CountByState(ctx context.Context, state string) (int, error)
}

// PlatformStats сводка платформы для дашборда админа.
type PlatformStats struct {
	PendingRequests int            `json:"pending_requests"`
	ActiveProviders int            `json:"active_providers"`
	MissionsByState map[string]int `json:"missions_by_state"`
}

// StatsService собирает сводку платформы.
type StatsService struct {
	requests  RequestCounter
	providers ProviderCounter
	missions  MissionCounter
}

func NewStatsService(requests RequestCounter, providers ProviderCounter, missions MissionCounter) *StatsService {
	return &StatsService{requests: requests, providers: providers, missions: missions}
}

// Collect возвращает текущую сводку. Доступна только админу.
func (s *StatsService) Collect(ctx context.Context, actor models.Actor) (*PlatformStats, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	pending, err := s.requests.CountByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось посчитать заявки")
	}

	active, err := s.providers.CountActive(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось посчитать исполнителей")
	}

	byState := make(map[string]int, len(models.ValidMissionStates))
	for state := range models.ValidMissionStates {
		count, err := s.missions.CountByState(ctx, state)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось посчитать миссии")
		}
		byState[state] = count
	}

	return &PlatformStats{
		PendingRequests: pending,
		ActiveProviders: active,
		MissionsByState: byState,
	}, nil
}
