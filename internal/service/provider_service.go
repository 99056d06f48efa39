package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
	"github.com/LeBoy2525/assist-backend/internal/validation"
)

// ProviderRepo хранилище исполнителей со стороны сервиса.
type ProviderRepo interface {
	Create(ctx context.Context, provider *models.Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	GetByEmail(ctx context.Context, email string) (*models.Provider, error)
	List(ctx context.Context, limit, offset int) ([]models.Provider, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateAvailability(ctx context.Context, id uuid.UUID, availability string) error
	SoftDelete(ctx context.Context, id uuid.UUID, actor string) error
}

// RegisterProviderInput анкета нового исполнителя.
type RegisterProviderInput struct {
	Email           string   `json:"email"`
	CompanyName     *string  `json:"company_name,omitempty"`
	ContactName     string   `json:"contact_name"`
	Specialties     []string `json:"specialties"`
	Countries       []string `json:"countries"`
	ExperienceYears int      `json:"experience_years"`
}

// ProviderService управляет анкетами и модерацией исполнителей.
type ProviderService struct {
	providers ProviderRepo
}

func NewProviderService(providers ProviderRepo) *ProviderService {
	return &ProviderService{providers: providers}
}

// Register регистрирует исполнителя в статусе pending: до решения
// модерации он уже участвует в подборе, но помечается как непроверенный.
func (s *ProviderService) Register(ctx context.Context, input RegisterProviderInput) (*models.Provider, error) {
	if err := validation.ValidateEmail(input.Email); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateNonEmpty("контактное лицо", input.ContactName); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateSpecialties(input.Specialties); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateCountries(input.Countries); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateExperienceYears(input.ExperienceYears); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if existing, err := s.providers.GetByEmail(ctx, email); err == nil && !existing.Deleted {
		return nil, apperror.New(apperror.ErrCodeConflict, "исполнитель с таким email уже зарегистрирован")
	}

	specialties := make([]string, 0, len(input.Specialties))
	for _, sp := range input.Specialties {
		specialties = append(specialties, NormalizeCategory(sp))
	}
	countries := make([]string, 0, len(input.Countries))
	for _, c := range input.Countries {
		countries = append(countries, strings.ToUpper(strings.TrimSpace(c)))
	}

	provider := &models.Provider{
		Email:           email,
		CompanyName:     input.CompanyName,
		ContactName:     strings.TrimSpace(input.ContactName),
		Specialties:     specialties,
		Countries:       countries,
		ExperienceYears: input.ExperienceYears,
		Status:          models.ProviderStatusPending,
		Availability:    models.ProviderAvailable,
	}

	if err := s.providers.Create(ctx, provider); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось сохранить анкету исполнителя")
	}
	return provider, nil
}

// Get возвращает исполнителя; удалённый для не-админа невидим.
func (s *ProviderService) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Provider, error) {
	provider, err := s.providers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return nil, apperror.ErrProviderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище исполнителей недоступно")
	}
	if provider.Deleted && actor.Role != models.RoleAdmin {
		return nil, apperror.ErrProviderNotFound
	}
	return provider, nil
}

// List возвращает страницу исполнителей для админа.
func (s *ProviderService) List(ctx context.Context, limit, offset int) ([]models.Provider, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	providers, err := s.providers.List(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище исполнителей недоступно")
	}
	return providers, nil
}

// SetStatus решение модерации: активация, отклонение или приостановка.
func (s *ProviderService) SetStatus(ctx context.Context, id uuid.UUID, status string, actor models.Actor) (*models.Provider, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "статус исполнителя меняет админ")
	}
	if _, ok := models.ValidProviderStatuses[status]; !ok {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестный статус %q", status)
	}

	provider, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if provider.Deleted {
		return nil, apperror.New(apperror.ErrCodeGuard, "исполнитель удалён")
	}
	if provider.Status == status {
		return provider, nil
	}

	if err := s.providers.UpdateStatus(ctx, id, status); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось обновить статус исполнителя")
	}
	provider.Status = status
	return provider, nil
}

// SetAvailability переключает доступность: исполнитель — свою, админ — любую.
func (s *ProviderService) SetAvailability(ctx context.Context, id uuid.UUID, availability string, actor models.Actor) (*models.Provider, error) {
	if availability != models.ProviderAvailable && availability != models.ProviderUnavailable {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестная доступность %q", availability)
	}
	if actor.Role == models.RoleProvider && (actor.ProviderID == nil || *actor.ProviderID != id) {
		return nil, apperror.New(apperror.ErrCodeGuard, "менять можно только свою доступность")
	}
	if actor.Role == models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeGuard, "клиент не управляет доступностью исполнителей")
	}

	provider, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if err := s.providers.UpdateAvailability(ctx, id, availability); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось обновить доступность")
	}
	provider.Availability = availability
	return provider, nil
}

// Delete мягко удаляет анкету: исполнитель — свою, админ — любую.
func (s *ProviderService) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	if actor.Role == models.RoleProvider && (actor.ProviderID == nil || *actor.ProviderID != id) {
		return apperror.New(apperror.ErrCodeGuard, "удалить можно только свою анкету")
	}
	if actor.Role == models.RoleClient {
		return apperror.New(apperror.ErrCodeGuard, "клиент не удаляет анкеты исполнителей")
	}

	provider, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if provider.Deleted {
		return apperror.New(apperror.ErrCodeGuard, "исполнитель уже удалён")
	}

	if err := s.providers.SoftDelete(ctx, id, actor.Role); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось удалить анкету")
	}
	return nil
}
