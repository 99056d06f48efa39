package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
	"github.com/LeBoy2525/assist-backend/internal/validation"
)

// ProposalRepo хранилище предложений со стороны сервиса.
type ProposalRepo interface {
	Create(ctx context.Context, proposal *models.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ListByRequestID(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error)
	ListByProviderID(ctx context.Context, providerID uuid.UUID) ([]models.Proposal, error)
	Refuse(ctx context.Context, id uuid.UUID, reason *string) error
}

// RequestRepoForProposal доступ к заявкам при подаче предложения.
type RequestRepoForProposal interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
}

// ProviderRepoForProposal доступ к исполнителям при подаче предложения.
type ProviderRepoForProposal interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
}

// SubmitProposalInput данные предложения исполнителя.
type SubmitProposalInput struct {
	RequestID  uuid.UUID `json:"request_id"`
	Price      float64   `json:"price"`
	DelayDays  int       `json:"delay_days"`
	Comment    *string   `json:"comment,omitempty"`
	Difficulty int       `json:"difficulty"`
}

// ProposalService управляет предложениями исполнителей по заявкам.
type ProposalService struct {
	proposals ProposalRepo
	requests  RequestRepoForProposal
	providers ProviderRepoForProposal
}

func NewProposalService(proposals ProposalRepo, requests RequestRepoForProposal, providers ProviderRepoForProposal) *ProposalService {
	return &ProposalService{proposals: proposals, requests: requests, providers: providers}
}

// Submit подаёт предложение по заявке. Один исполнитель держит не более
// одного pending-предложения на заявку; отклонённая или удалённая заявка
// предложения не принимает.
func (s *ProposalService) Submit(ctx context.Context, actor models.Actor, input SubmitProposalInput) (*models.Proposal, error) {
	if actor.Role != models.RoleProvider || actor.ProviderID == nil {
		return nil, apperror.New(apperror.ErrCodeGuard, "предложение подаёт исполнитель")
	}
	if err := validation.ValidatePrice(input.Price); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDelayDays(input.DelayDays); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDifficulty(input.Difficulty); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateComment(input.Comment); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	request, err := s.requests.GetByID(ctx, input.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище заявок недоступно")
	}
	if request.Deleted {
		return nil, apperror.ErrRequestNotFound
	}
	if request.Status == models.RequestStatusRejected {
		return nil, apperror.New(apperror.ErrCodeGuard, "заявка отклонена, предложения не принимаются")
	}

	provider, err := s.providers.GetByID(ctx, *actor.ProviderID)
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return nil, apperror.ErrProviderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище исполнителей недоступно")
	}
	if provider.Deleted || provider.Status == models.ProviderStatusRejected || provider.Status == models.ProviderStatusSuspended {
		return nil, apperror.New(apperror.ErrCodeGuard, "исполнитель не допущен к подаче предложений")
	}

	proposal := &models.Proposal{
		RequestID:  input.RequestID,
		ProviderID: provider.ID,
		Price:      input.Price,
		DelayDays:  input.DelayDays,
		Comment:    input.Comment,
		Difficulty: input.Difficulty,
		Status:     models.ProposalStatusPending,
	}

	if err := s.proposals.Create(ctx, proposal); err != nil {
		// Повтор пары (заявка, исполнитель) не гонка: пока первое
		// предложение активно, повторная подача не пройдёт никогда.
		if errors.Is(err, repository.ErrDuplicateProposal) {
			return nil, apperror.New(apperror.ErrCodeGuard, "по этой заявке уже есть ваше активное предложение")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось сохранить предложение")
	}
	return proposal, nil
}

// Get возвращает предложение: админ видит все, исполнитель — свои.
func (s *ProposalService) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProposalNotFound) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище предложений недоступно")
	}
	if actor.Role == models.RoleProvider {
		if actor.ProviderID == nil || *actor.ProviderID != proposal.ProviderID {
			return nil, apperror.ErrProposalNotFound
		}
	}
	return proposal, nil
}

// ListByRequest возвращает предложения по заявке для админа.
func (s *ProposalService) ListByRequest(ctx context.Context, requestID uuid.UUID, actor models.Actor) ([]models.Proposal, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "список предложений по заявке видит админ")
	}
	proposals, err := s.proposals.ListByRequestID(ctx, requestID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище предложений недоступно")
	}
	return proposals, nil
}

// ListMine возвращает предложения исполнителя.
func (s *ProposalService) ListMine(ctx context.Context, actor models.Actor) ([]models.Proposal, error) {
	if actor.Role != models.RoleProvider || actor.ProviderID == nil {
		return nil, apperror.New(apperror.ErrCodeGuard, "список своих предложений доступен исполнителю")
	}
	proposals, err := s.proposals.ListByProviderID(ctx, *actor.ProviderID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище предложений недоступно")
	}
	return proposals, nil
}

// Refuse отклоняет pending-предложение админом с указанием причины.
func (s *ProposalService) Refuse(ctx context.Context, id uuid.UUID, reason *string, actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return apperror.New(apperror.ErrCodeGuard, "отклонить предложение может только админ")
	}
	if err := validation.ValidateComment(reason); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	if err := s.proposals.Refuse(ctx, id, reason); err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return apperror.New(apperror.ErrCodeGuard, "предложение уже обработано")
		}
		return apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось отклонить предложение")
	}
	return nil
}
