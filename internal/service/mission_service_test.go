package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
)

// fakeMissionStore хранит миссии в памяти и честно воспроизводит
// CAS-семантику условной записи.
type fakeMissionStore struct {
	missions  map[uuid.UUID]*models.Mission
	proofs    map[uuid.UUID]int
	validated map[uuid.UUID]int
	stats     map[uuid.UUID]models.ProviderMissionStats
	updates   []string
}

func newFakeMissionStore() *fakeMissionStore {
	return &fakeMissionStore{
		missions:  make(map[uuid.UUID]*models.Mission),
		proofs:    make(map[uuid.UUID]int),
		validated: make(map[uuid.UUID]int),
		stats:     make(map[uuid.UUID]models.ProviderMissionStats),
	}
}

func (f *fakeMissionStore) put(m *models.Mission) {
	cp := *m
	f.missions[m.ID] = &cp
}

func (f *fakeMissionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	m, ok := f.missions[id]
	if !ok {
		return nil, repository.ErrMissionNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMissionStore) UpdateCAS(ctx context.Context, m *models.Mission, expectedState string) error {
	stored, ok := f.missions[m.ID]
	if !ok {
		return repository.ErrMissionNotFound
	}
	if stored.InternalState != expectedState {
		return common.ErrStaleState
	}
	cp := *m
	f.missions[m.ID] = &cp
	return nil
}

func (f *fakeMissionStore) ListAutoCloseEligible(ctx context.Context, confirmedBefore time.Time) ([]models.Mission, error) {
	var out []models.Mission
	for _, m := range f.missions {
		if m.InternalState == models.MissionStateAdminConfirmed &&
			m.SoldeVersee && m.ClosedAt == nil && !m.Deleted &&
			f.proofs[m.ID] > 0 && f.validated[m.ID] >= f.proofs[m.ID] &&
			m.AdminConfirmedAt != nil && !m.AdminConfirmedAt.After(confirmedBefore) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMissionStore) GetProviderMissionStats(ctx context.Context, providerID uuid.UUID) (*models.ProviderMissionStats, error) {
	stats := f.stats[providerID]
	return &stats, nil
}

func (f *fakeMissionStore) CountProofs(ctx context.Context, missionID uuid.UUID) (int, error) {
	return f.proofs[missionID], nil
}

func (f *fakeMissionStore) AppendUpdate(ctx context.Context, missionID uuid.UUID, actor, action string, detail *string) error {
	f.updates = append(f.updates, action)
	return nil
}

type fakeProposalStore struct {
	proposals map[uuid.UUID]*models.Proposal
	accepted  map[uuid.UUID]bool
}

func newFakeProposalStore() *fakeProposalStore {
	return &fakeProposalStore{
		proposals: make(map[uuid.UUID]*models.Proposal),
		accepted:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeProposalStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProposalStore) AcceptAndCreateMission(ctx context.Context, proposalID uuid.UUID, mission *models.Mission) error {
	p := f.proposals[proposalID]
	// Повторное принятие по той же заявке проигрывает гонку.
	if f.accepted[p.RequestID] {
		return common.ErrStaleState
	}
	f.accepted[p.RequestID] = true
	p.Status = models.ProposalStatusAccepted
	mission.ID = uuid.New()
	mission.Ref = "MIS-2026-0001"
	mission.CreatedAt = time.Now()
	return nil
}

type fakeRequestStore struct {
	requests map[uuid.UUID]*models.Request
}

func (f *fakeRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	return r, nil
}

func (f *fakeRequestStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.requests[id].Status = status
	return nil
}

type fakeProviderStore struct {
	providers  map[uuid.UUID]*models.Provider
	aggregates map[uuid.UUID]models.RatingAggregate
	aggErr     error
}

func newFakeProviderStore() *fakeProviderStore {
	return &fakeProviderStore{
		providers:  make(map[uuid.UUID]*models.Provider),
		aggregates: make(map[uuid.UUID]models.RatingAggregate),
	}
}

func (f *fakeProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, repository.ErrProviderNotFound
	}
	return p, nil
}

func (f *fakeProviderStore) UpdateRatingAggregate(ctx context.Context, id uuid.UUID, agg models.RatingAggregate) error {
	if f.aggErr != nil {
		return f.aggErr
	}
	f.aggregates[id] = agg
	return nil
}

type fakePaymentConfirmer struct {
	ok  bool
	err error
}

func (f *fakePaymentConfirmer) Confirm(ctx context.Context, paymentRef string) (bool, error) {
	return f.ok, f.err
}

func newTestMissionService(missions *fakeMissionStore, proposals *fakeProposalStore, providers *fakeProviderStore) *MissionService {
	return NewMissionService(
		missions, proposals,
		&fakeRequestStore{requests: make(map[uuid.UUID]*models.Request)},
		providers,
		&fakePaymentConfirmer{ok: true},
		nil,
		MissionServiceConfig{},
	)
}

func adminActor() models.Actor {
	return models.Actor{UserID: uuid.New(), Email: "admin@assist.fr", Role: models.RoleAdmin}
}

func seedMission(store *fakeMissionStore, state string) *models.Mission {
	m := &models.Mission{
		ID:            uuid.New(),
		Ref:           "MIS-2026-0042",
		RequestID:     uuid.New(),
		ProposalID:    uuid.New(),
		ProviderID:    uuid.New(),
		ClientEmail:   "client@example.com",
		InternalState: state,
		CreatedAt:     time.Now(),
	}
	store.put(m)
	return m
}

func TestMissionService_FullLifecycle(t *testing.T) {
	store := newFakeMissionStore()
	providers := newFakeProviderStore()
	svc := newTestMissionService(store, newFakeProposalStore(), providers)
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateProviderEstimated)
	providerActor := models.Actor{
		UserID: uuid.New(), Email: "pro@example.com",
		Role: models.RoleProvider, ProviderID: &m.ProviderID,
	}
	clientActor := models.Actor{UserID: uuid.New(), Email: m.ClientEmail, Role: models.RoleClient}

	// Смета: 1000 + 150 + 30 = 1180 для клиента.
	res, err := svc.GenerateDevis(ctx, m.ID, admin, DevisInput{ProviderRate: 1000, CommissionHT: 150, CommissionTVA: 30})
	assert.NoError(t, err)
	assert.Equal(t, models.MissionStateWaitingClientPayment, res.InternalState)
	assert.Equal(t, 1180.0, *res.PrixTotalClient)
	assert.Equal(t, models.PublicStatusAttentePaiement, res.PublicStatus())

	res, err = svc.ConfirmClientPayment(ctx, m.ID, clientActor, "pay-123")
	assert.NoError(t, err)
	assert.True(t, res.PaiementEffectue)
	assert.Equal(t, models.MissionStatePaidWaitingTakeover, res.InternalState)

	res, err = svc.SendAdvance(ctx, m.ID, admin, 50)
	assert.NoError(t, err)
	assert.True(t, res.AvanceVersee)
	assert.False(t, res.SoldeVersee)
	assert.Equal(t, models.MissionStateAdvanceSent, res.InternalState)

	res, err = svc.StartMission(ctx, m.ID, providerActor)
	assert.NoError(t, err)
	assert.Equal(t, models.MissionStateInProgress, res.InternalState)
	assert.NotNil(t, res.StartedAt)

	// Без доказательств подтверждение запрещено.
	_, err = svc.ConfirmByAdmin(ctx, m.ID, admin)
	assert.True(t, apperror.IsGuard(err))

	store.proofs[m.ID] = 2
	res, err = svc.ConfirmByAdmin(ctx, m.ID, admin)
	assert.NoError(t, err)
	assert.Equal(t, models.MissionStateAdminConfirmed, res.InternalState)
	assert.Equal(t, models.PublicStatusTravauxTermines, res.PublicStatus())

	// Остаток: 1000 × 50% = 500; состояние не меняется, меняется витрина.
	res, amount, err := svc.PayBalance(ctx, m.ID, admin)
	assert.NoError(t, err)
	assert.Equal(t, 500.0, amount)
	assert.Equal(t, models.MissionStateAdminConfirmed, res.InternalState)
	assert.Equal(t, models.PublicStatusSoldeVerse, res.PublicStatus())

	// Повторная выплата остатка запрещена.
	_, _, err = svc.PayBalance(ctx, m.ID, admin)
	assert.True(t, apperror.IsGuard(err))

	res, err = svc.CloseMission(ctx, m.ID, clientActor)
	assert.NoError(t, err)
	assert.Equal(t, models.MissionStateCompleted, res.InternalState)
	assert.True(t, res.Archived)
	assert.True(t, res.ProofValidatedForClient)
	assert.Equal(t, models.RoleClient, *res.ClosedBy)
	assert.Equal(t, models.PublicStatusTerminee, res.PublicStatus())

	// Оценки после закрытия.
	res, err = svc.RateMission(ctx, m.ID, clientActor, 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, *res.ClientRating)

	store.stats[m.ProviderID] = models.ProviderMissionStats{
		RatingSum: 4, RatedCount: 1, MissionCount: 1, CompletedCount: 1,
	}
	res, err = svc.RateProvider(ctx, m.ID, admin, 4)
	assert.NoError(t, err)
	assert.Equal(t, 4, *res.ProviderRating)

	agg := providers.aggregates[m.ProviderID]
	assert.Equal(t, 4.0, agg.AverageRating)
	assert.Equal(t, 100.0, agg.SuccessRate)
}

func TestMissionService_FullAdvanceCoversBalance(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStatePaidWaitingTakeover)
	rate := 800.0
	stored := store.missions[m.ID]
	stored.PaiementEffectue = true
	stored.ProviderRate = &rate

	// 100% аванс закрывает и остаток в той же записи.
	res, err := svc.SendAdvance(ctx, m.ID, admin, 100)
	assert.NoError(t, err)
	assert.True(t, res.AvanceVersee)
	assert.True(t, res.SoldeVersee)
	assert.NotNil(t, res.SoldeVerseeAt)

	// Процент вне набора отвергается валидацией.
	m2 := seedMission(store, models.MissionStatePaidWaitingTakeover)
	store.missions[m2.ID].PaiementEffectue = true
	store.missions[m2.ID].ProviderRate = &rate
	_, err = svc.SendAdvance(ctx, m2.ID, admin, 30)
	assert.True(t, apperror.IsValidation(err))
}

func TestMissionService_GuardLeavesStateUnchanged(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateInProgress)

	// Аванс из in_progress — нарушение предусловия.
	_, err := svc.SendAdvance(ctx, m.ID, admin, 50)
	assert.True(t, apperror.IsGuard(err))

	after, _ := store.GetByID(ctx, m.ID)
	assert.Equal(t, models.MissionStateInProgress, after.InternalState)
	assert.False(t, after.AvanceVersee)
}

func TestMissionService_CloseIsFirstWinner(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateAdminConfirmed)
	stored := store.missions[m.ID]
	stored.SoldeVersee = true
	clientActor := models.Actor{UserID: uuid.New(), Email: m.ClientEmail, Role: models.RoleClient}

	_, err := svc.CloseMission(ctx, m.ID, clientActor)
	assert.NoError(t, err)

	// Повторное закрытие любой стороной — guard с указанием закрывшего.
	_, err = svc.CloseMission(ctx, m.ID, admin)
	assert.True(t, apperror.IsGuard(err))
	assert.Contains(t, err.Error(), models.RoleClient)

	// Чужой клиент закрыть не может.
	m2 := seedMission(store, models.MissionStateAdminConfirmed)
	store.missions[m2.ID].SoldeVersee = true
	stranger := models.Actor{UserID: uuid.New(), Email: "other@example.com", Role: models.RoleClient}
	_, err = svc.CloseMission(ctx, m2.ID, stranger)
	assert.True(t, apperror.IsGuard(err))
}

func TestMissionService_AutoCloseIdempotent(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-48 * time.Hour)
	fresh := now.Add(-1 * time.Hour)

	eligible := seedMission(store, models.MissionStateAdminConfirmed)
	s := store.missions[eligible.ID]
	s.SoldeVersee = true
	s.AdminConfirmedAt = &old
	store.proofs[eligible.ID] = 1
	store.validated[eligible.ID] = 1

	recent := seedMission(store, models.MissionStateAdminConfirmed)
	s = store.missions[recent.ID]
	s.SoldeVersee = true
	s.AdminConfirmedAt = &fresh
	store.proofs[recent.ID] = 1
	store.validated[recent.ID] = 1

	closed, err := svc.AutoCloseEligibleMissions(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, closed)

	after, _ := store.GetByID(ctx, eligible.ID)
	assert.Equal(t, models.MissionStateCompleted, after.InternalState)
	assert.Equal(t, models.RoleSystem, *after.ClosedBy)
	assert.True(t, after.Archived)

	untouched, _ := store.GetByID(ctx, recent.ID)
	assert.Equal(t, models.MissionStateAdminConfirmed, untouched.InternalState)

	// Повторный запуск ничего не закрывает.
	closed, err = svc.AutoCloseEligibleMissions(ctx, now)
	assert.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestMissionService_AutoCloseAfterFullFlow(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateProviderEstimated)
	providerActor := models.Actor{
		UserID: uuid.New(), Email: "pro@example.com",
		Role: models.RoleProvider, ProviderID: &m.ProviderID,
	}

	_, err := svc.GenerateDevis(ctx, m.ID, admin, DevisInput{ProviderRate: 1000, CommissionHT: 150, CommissionTVA: 30})
	assert.NoError(t, err)
	_, err = svc.ConfirmClientPayment(ctx, m.ID, admin, "pay-777")
	assert.NoError(t, err)
	_, err = svc.SendAdvance(ctx, m.ID, admin, 50)
	assert.NoError(t, err)
	_, err = svc.StartMission(ctx, m.ID, providerActor)
	assert.NoError(t, err)

	store.proofs[m.ID] = 2
	_, err = svc.ConfirmByAdmin(ctx, m.ID, admin)
	assert.NoError(t, err)
	_, _, err = svc.PayBalance(ctx, m.ID, admin)
	assert.NoError(t, err)

	// Подтверждение состарилось сильно дольше льготного периода.
	old := time.Now().Add(-72 * time.Hour)
	store.missions[m.ID].AdminConfirmedAt = &old

	// Пока админ проверил не все доказательства, миссия не кандидат.
	store.validated[m.ID] = 1
	closed, err := svc.AutoCloseEligibleMissions(ctx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 0, closed)

	store.validated[m.ID] = 2
	closed, err = svc.AutoCloseEligibleMissions(ctx, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, 1, closed)

	after, _ := store.GetByID(ctx, m.ID)
	assert.Equal(t, models.MissionStateCompleted, after.InternalState)
	assert.Equal(t, models.RoleSystem, *after.ClosedBy)
	assert.True(t, after.ProofValidatedForClient)
	assert.True(t, after.Archived)
}

func TestMissionService_CreateFromAcceptedProposal(t *testing.T) {
	store := newFakeMissionStore()
	proposals := newFakeProposalStore()
	requests := &fakeRequestStore{requests: make(map[uuid.UUID]*models.Request)}
	svc := NewMissionService(store, proposals, requests, newFakeProviderStore(),
		&fakePaymentConfirmer{ok: true}, nil, MissionServiceConfig{})
	ctx := context.Background()
	admin := adminActor()

	requestID := uuid.New()
	requests.requests[requestID] = &models.Request{
		ID: requestID, ClientEmail: "client@example.com", Status: models.RequestStatusPending,
	}

	first := &models.Proposal{
		ID: uuid.New(), Ref: "PRO-2026-0001", RequestID: requestID,
		ProviderID: uuid.New(), Status: models.ProposalStatusPending,
	}
	second := &models.Proposal{
		ID: uuid.New(), Ref: "PRO-2026-0002", RequestID: requestID,
		ProviderID: uuid.New(), Status: models.ProposalStatusPending,
	}
	proposals.proposals[first.ID] = first
	proposals.proposals[second.ID] = second

	mission, err := svc.CreateFromAcceptedProposal(ctx, first.ID, admin)
	assert.NoError(t, err)
	assert.Equal(t, models.MissionStateProviderEstimated, mission.InternalState)
	assert.Equal(t, first.ProviderID, mission.ProviderID)
	assert.Equal(t, "client@example.com", mission.ClientEmail)

	// Принятие второго по той же заявке проигрывает и даёт guard.
	_, err = svc.CreateFromAcceptedProposal(ctx, second.ID, admin)
	assert.True(t, apperror.IsGuard(err))

	// Не-админ принимать не может.
	_, err = svc.CreateFromAcceptedProposal(ctx, second.ID,
		models.Actor{Role: models.RoleClient, Email: "client@example.com"})
	assert.True(t, apperror.IsGuard(err))
}

func TestMissionService_ArchiveAndUnarchive(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()

	m := seedMission(store, models.MissionStateCompleted)
	clientActor := models.Actor{UserID: uuid.New(), Email: m.ClientEmail, Role: models.RoleClient}
	providerActor := models.Actor{
		UserID: uuid.New(), Email: "pro@example.com",
		Role: models.RoleProvider, ProviderID: &m.ProviderID,
	}

	res, err := svc.Archive(ctx, m.ID, clientActor)
	assert.NoError(t, err)
	assert.True(t, res.Archived)
	assert.Equal(t, models.RoleClient, *res.ArchivedBy)

	// Разархивировать может только архивировавшая роль.
	_, err = svc.Unarchive(ctx, m.ID, providerActor)
	assert.True(t, apperror.IsGuard(err))

	res, err = svc.Unarchive(ctx, m.ID, clientActor)
	assert.NoError(t, err)
	assert.False(t, res.Archived)
	assert.Nil(t, res.ArchivedBy)

	// За пределами окна хранения разархивация запрещена.
	res, err = svc.Archive(ctx, m.ID, clientActor)
	assert.NoError(t, err)
	long := time.Now().Add(-31 * 24 * time.Hour)
	store.missions[m.ID].ArchivedAt = &long
	_, err = svc.Unarchive(ctx, m.ID, clientActor)
	assert.True(t, apperror.IsGuard(err))
}

func TestMissionService_DeletedMissionRejectsTransitions(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateProviderEstimated)
	_, err := svc.SoftDelete(ctx, m.ID, admin)
	assert.NoError(t, err)

	_, err = svc.GenerateDevis(ctx, m.ID, admin, DevisInput{ProviderRate: 100})
	assert.True(t, apperror.IsGuard(err))
}

func TestMissionService_PaymentDependencyAndRefusal(t *testing.T) {
	store := newFakeMissionStore()
	confirmer := &fakePaymentConfirmer{}
	svc := NewMissionService(store, newFakeProposalStore(),
		&fakeRequestStore{requests: make(map[uuid.UUID]*models.Request)},
		newFakeProviderStore(), confirmer, nil, MissionServiceConfig{})
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateWaitingClientPayment)

	// Платёжный сервис недоступен — dependency, не guard.
	confirmer.err = assert.AnError
	_, err := svc.ConfirmClientPayment(ctx, m.ID, admin, "pay-1")
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeDependency, appErr.Code)

	// Сервис ответил отказом — guard, состояние не меняется.
	confirmer.err = nil
	confirmer.ok = false
	_, err = svc.ConfirmClientPayment(ctx, m.ID, admin, "pay-1")
	assert.True(t, apperror.IsGuard(err))

	after, _ := store.GetByID(ctx, m.ID)
	assert.Equal(t, models.MissionStateWaitingClientPayment, after.InternalState)
	assert.False(t, after.PaiementEffectue)
}

func TestMissionService_RatingRequiresBalancePaid(t *testing.T) {
	store := newFakeMissionStore()
	svc := newTestMissionService(store, newFakeProposalStore(), newFakeProviderStore())
	ctx := context.Background()

	m := seedMission(store, models.MissionStateAdminConfirmed)
	clientActor := models.Actor{UserID: uuid.New(), Email: m.ClientEmail, Role: models.RoleClient}

	_, err := svc.RateMission(ctx, m.ID, clientActor, 5)
	assert.True(t, apperror.IsGuard(err))

	_, err = svc.RateMission(ctx, m.ID, clientActor, 7)
	assert.True(t, apperror.IsValidation(err))

	store.missions[m.ID].SoldeVersee = true
	res, err := svc.RateMission(ctx, m.ID, clientActor, 5)
	assert.NoError(t, err)
	assert.Equal(t, 5, *res.ClientRating)
}

func TestMissionService_RateProviderSurvivesRecomputeFailure(t *testing.T) {
	store := newFakeMissionStore()
	providers := newFakeProviderStore()
	providers.aggErr = assert.AnError
	svc := newTestMissionService(store, newFakeProposalStore(), providers)
	ctx := context.Background()
	admin := adminActor()

	m := seedMission(store, models.MissionStateCompleted)
	store.missions[m.ID].SoldeVersee = true

	// Оценка записана, хотя пересчёт агрегатов упал.
	res, err := svc.RateProvider(ctx, m.ID, admin, 4)
	assert.NoError(t, err)
	assert.Equal(t, 4, *res.ProviderRating)

	after, _ := store.GetByID(ctx, m.ID)
	assert.Equal(t, 4, *after.ProviderRating)
}
