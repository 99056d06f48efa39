package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
)

type fakeProposalRepo struct {
	created  []*models.Proposal
	existing map[uuid.UUID][]uuid.UUID // request -> providers с pending-предложением
	refused  map[uuid.UUID]bool
}

func newFakeProposalRepo() *fakeProposalRepo {
	return &fakeProposalRepo{
		existing: make(map[uuid.UUID][]uuid.UUID),
		refused:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeProposalRepo) Create(_ context.Context, proposal *models.Proposal) error {
	for _, providerID := range f.existing[proposal.RequestID] {
		if providerID == proposal.ProviderID {
			return repository.ErrDuplicateProposal
		}
	}
	proposal.ID = uuid.New()
	f.existing[proposal.RequestID] = append(f.existing[proposal.RequestID], proposal.ProviderID)
	f.created = append(f.created, proposal)
	return nil
}

func (f *fakeProposalRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	for _, p := range f.created {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repository.ErrProposalNotFound
}

func (f *fakeProposalRepo) ListByRequestID(_ context.Context, requestID uuid.UUID) ([]models.Proposal, error) {
	var out []models.Proposal
	for _, p := range f.created {
		if p.RequestID == requestID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProposalRepo) ListByProviderID(_ context.Context, providerID uuid.UUID) ([]models.Proposal, error) {
	var out []models.Proposal
	for _, p := range f.created {
		if p.ProviderID == providerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProposalRepo) Refuse(_ context.Context, id uuid.UUID, _ *string) error {
	if f.refused[id] {
		return common.ErrStaleState
	}
	f.refused[id] = true
	return nil
}

type fakeRequestRepoForProposal struct {
	requests map[uuid.UUID]*models.Request
}

func (f *fakeRequestRepoForProposal) GetByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	if r, ok := f.requests[id]; ok {
		return r, nil
	}
	return nil, repository.ErrRequestNotFound
}

type fakeProviderRepoForProposal struct {
	providers map[uuid.UUID]*models.Provider
}

func (f *fakeProviderRepoForProposal) GetByID(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	if p, ok := f.providers[id]; ok {
		return p, nil
	}
	return nil, repository.ErrProviderNotFound
}

func newProposalTestEnv() (*ProposalService, *fakeProposalRepo, *models.Request, *models.Provider, models.Actor) {
	request := &models.Request{
		ID:          uuid.New(),
		Ref:         "DEM-2026-0001",
		ServiceType: "plomberie",
		Status:      models.RequestStatusPending,
	}
	provider := &models.Provider{
		ID:     uuid.New(),
		Ref:    "PRE-2026-0001",
		Email:  "pro@assist.dev",
		Status: models.ProviderStatusActive,
	}
	actor := models.Actor{
		UserID:     uuid.New(),
		Email:      provider.Email,
		Role:       models.RoleProvider,
		ProviderID: &provider.ID,
	}

	proposals := newFakeProposalRepo()
	svc := NewProposalService(
		proposals,
		&fakeRequestRepoForProposal{requests: map[uuid.UUID]*models.Request{request.ID: request}},
		&fakeProviderRepoForProposal{providers: map[uuid.UUID]*models.Provider{provider.ID: provider}},
	)
	return svc, proposals, request, provider, actor
}

func TestProposalService_SubmitAndDuplicate(t *testing.T) {
	svc, _, request, _, actor := newProposalTestEnv()
	ctx := context.Background()

	input := SubmitProposalInput{RequestID: request.ID, Price: 500, DelayDays: 7, Difficulty: 3}

	proposal, err := svc.Submit(ctx, actor, input)
	assert.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)

	// Повторная подача той же пары нарушает предусловие: повтор не
	// пройдёт, пока первое предложение активно.
	_, err = svc.Submit(ctx, actor, input)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeGuard, appErr.Code)
}

func TestProposalService_SubmitGuards(t *testing.T) {
	svc, _, request, provider, actor := newProposalTestEnv()
	ctx := context.Background()
	input := SubmitProposalInput{RequestID: request.ID, Price: 500, DelayDays: 7, Difficulty: 3}

	// Клиент предложение подать не может.
	_, err := svc.Submit(ctx, models.Actor{Role: models.RoleClient}, input)
	assert.True(t, apperror.IsGuard(err))

	// Отклонённая заявка предложения не принимает.
	request.Status = models.RequestStatusRejected
	_, err = svc.Submit(ctx, actor, input)
	assert.True(t, apperror.IsGuard(err))
	request.Status = models.RequestStatusPending

	// Приостановленный исполнитель не допущен.
	provider.Status = models.ProviderStatusSuspended
	_, err = svc.Submit(ctx, actor, input)
	assert.True(t, apperror.IsGuard(err))
}

func TestProposalService_SubmitValidation(t *testing.T) {
	svc, _, request, _, actor := newProposalTestEnv()
	ctx := context.Background()

	_, err := svc.Submit(ctx, actor, SubmitProposalInput{RequestID: request.ID, Price: -5, DelayDays: 7, Difficulty: 3})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Submit(ctx, actor, SubmitProposalInput{RequestID: request.ID, Price: 500, DelayDays: 0, Difficulty: 3})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Submit(ctx, actor, SubmitProposalInput{RequestID: request.ID, Price: 500, DelayDays: 7, Difficulty: 9})
	assert.True(t, apperror.IsValidation(err))
}

func TestProposalService_GetVisibility(t *testing.T) {
	svc, _, request, _, actor := newProposalTestEnv()
	ctx := context.Background()

	proposal, err := svc.Submit(ctx, actor, SubmitProposalInput{RequestID: request.ID, Price: 500, DelayDays: 7, Difficulty: 3})
	assert.NoError(t, err)

	// Свой исполнитель и админ видят предложение.
	_, err = svc.Get(ctx, proposal.ID, actor)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, proposal.ID, models.Actor{Role: models.RoleAdmin})
	assert.NoError(t, err)

	// Чужой исполнитель получает "не найдено", а не "запрещено".
	otherID := uuid.New()
	_, err = svc.Get(ctx, proposal.ID, models.Actor{Role: models.RoleProvider, ProviderID: &otherID})
	assert.True(t, apperror.IsNotFound(err))
}

func TestProposalService_RefuseIsOneShot(t *testing.T) {
	svc, _, request, _, actor := newProposalTestEnv()
	ctx := context.Background()
	admin := models.Actor{Role: models.RoleAdmin, Email: "admin@assist.dev"}

	proposal, err := svc.Submit(ctx, actor, SubmitProposalInput{RequestID: request.ID, Price: 500, DelayDays: 7, Difficulty: 3})
	assert.NoError(t, err)

	reason := "условия не подходят"
	assert.NoError(t, svc.Refuse(ctx, proposal.ID, &reason, admin))

	// Повторное отклонение упирается в защиту от устаревшего состояния.
	err = svc.Refuse(ctx, proposal.ID, &reason, admin)
	assert.True(t, apperror.IsGuard(err))

	// Исполнителю отклонять нельзя.
	err = svc.Refuse(ctx, proposal.ID, &reason, actor)
	assert.True(t, apperror.IsGuard(err))
}
