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

// RequestRepo хранилище заявок со стороны сервиса.
type RequestRepo interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	GetByRef(ctx context.Context, ref string) (*models.Request, error)
	List(ctx context.Context, limit, offset int) ([]models.Request, error)
	ListByClientEmail(ctx context.Context, email string) ([]models.Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SoftDelete(ctx context.Context, id uuid.UUID, actor string) error
}

// CreateRequestInput данные новой заявки клиента.
type CreateRequestInput struct {
	ClientEmail string   `json:"client_email"`
	ServiceType string   `json:"service_type"`
	Subcategory *string  `json:"subcategory,omitempty"`
	Description string   `json:"description"`
	Country     string   `json:"country"`
	City        *string  `json:"city,omitempty"`
	Urgent      bool     `json:"urgent"`
	Budget      *float64 `json:"budget,omitempty"`
}

// RequestService управляет заявками клиентов.
type RequestService struct {
	requests RequestRepo
}

func NewRequestService(requests RequestRepo) *RequestService {
	return &RequestService{requests: requests}
}

// Create валидирует и сохраняет новую заявку. Категория сразу приводится
// к каноническому ключу специальности, чтобы подбор не зависел от того,
// как клиент назвал услугу.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*models.Request, error) {
	if err := validation.ValidateEmail(input.ClientEmail); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateServiceType(input.ServiceType); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDescription(input.Description); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateCountry(input.Country); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateBudget(input.Budget); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	request := &models.Request{
		ClientEmail: strings.ToLower(strings.TrimSpace(input.ClientEmail)),
		ServiceType: strings.TrimSpace(input.ServiceType),
		Category:    NormalizeCategory(input.ServiceType),
		Subcategory: input.Subcategory,
		Description: strings.TrimSpace(input.Description),
		Country:     strings.ToUpper(strings.TrimSpace(input.Country)),
		City:        input.City,
		Urgent:      input.Urgent,
		Budget:      input.Budget,
		Status:      models.RequestStatusPending,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось сохранить заявку")
	}
	return request, nil
}

// Get возвращает заявку; удалённая для не-админа невидима.
func (s *RequestService) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Request, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище заявок недоступно")
	}
	if request.Deleted && actor.Role != models.RoleAdmin {
		return nil, apperror.ErrRequestNotFound
	}
	return request, nil
}

// List возвращает страницу заявок для админа.
func (s *RequestService) List(ctx context.Context, limit, offset int) ([]models.Request, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	requests, err := s.requests.List(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище заявок недоступно")
	}
	return requests, nil
}

// ListMine возвращает заявки клиента.
func (s *RequestService) ListMine(ctx context.Context, actor models.Actor) ([]models.Request, error) {
	requests, err := s.requests.ListByClientEmail(ctx, actor.Email)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище заявок недоступно")
	}
	return requests, nil
}

// Reject отклоняет заявку админом: предложения по ней больше не принимаются.
func (s *RequestService) Reject(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Request, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "отклонить заявку может только админ")
	}

	request, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if request.Deleted {
		return nil, apperror.New(apperror.ErrCodeGuard, "заявка удалена")
	}
	if request.Status == models.RequestStatusRejected {
		return nil, apperror.New(apperror.ErrCodeGuard, "заявка уже отклонена")
	}

	if err := s.requests.UpdateStatus(ctx, id, models.RequestStatusRejected); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось отклонить заявку")
	}
	request.Status = models.RequestStatusRejected
	return request, nil
}

// Delete мягко удаляет заявку: клиент — свою, админ — любую.
func (s *RequestService) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	request, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if actor.Role == models.RoleClient && actor.Email != request.ClientEmail {
		return apperror.New(apperror.ErrCodeGuard, "удалить можно только свою заявку")
	}
	if actor.Role == models.RoleProvider {
		return apperror.New(apperror.ErrCodeGuard, "исполнитель не удаляет заявки")
	}
	if request.Deleted {
		return apperror.New(apperror.ErrCodeGuard, "заявка уже удалена")
	}

	if err := s.requests.SoftDelete(ctx, id, actor.Role); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось удалить заявку")
	}
	return nil
}
