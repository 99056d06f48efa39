package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/goroutine"
	"github.com/LeBoy2525/assist-backend/internal/logger"
	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
)

// MissionStore доступ машины состояний к хранилищу миссий.
type MissionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	UpdateCAS(ctx context.Context, m *models.Mission, expectedState string) error
	ListAutoCloseEligible(ctx context.Context, confirmedBefore time.Time) ([]models.Mission, error)
	GetProviderMissionStats(ctx context.Context, providerID uuid.UUID) (*models.ProviderMissionStats, error)
	CountProofs(ctx context.Context, missionID uuid.UUID) (int, error)
	AppendUpdate(ctx context.Context, missionID uuid.UUID, actor, action string, detail *string) error
}

// ProposalStoreForMission доступ к предложениям при создании миссии.
type ProposalStoreForMission interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	AcceptAndCreateMission(ctx context.Context, proposalID uuid.UUID, mission *models.Mission) error
}

// RequestStoreForMission доступ к заявкам при создании миссии.
type RequestStoreForMission interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
}

// ProviderStoreForMission доступ к исполнителям для пересчёта рейтинга.
type ProviderStoreForMission interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	UpdateRatingAggregate(ctx context.Context, id uuid.UUID, agg models.RatingAggregate) error
}

// PaymentConfirmer внешний платёжный коллаборатор: подтверждает факт
// списания по платёжной ссылке.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, paymentRef string) (bool, error)
}

// Notifier внешний канал уведомлений. Доставка best-effort: ошибка
// логируется и никогда не откатывает переход.
type Notifier interface {
	Notify(ctx context.Context, event, recipient string, data map[string]interface{}) error
}

// TransitionType закрытое множество переходов миссии. Недопустимое имя
// перехода отвергается валидацией, а не сравнением произвольных строк
// по месту использования.
type TransitionType string

const (
	TransitionGenerateDevis  TransitionType = "generate_devis"
	TransitionResetDevis     TransitionType = "reset_devis"
	TransitionConfirmPayment TransitionType = "confirm_payment"
	TransitionSendAdvance    TransitionType = "send_advance"
	TransitionStart          TransitionType = "start"
	TransitionAdminConfirm   TransitionType = "admin_confirm"
	TransitionPayBalance     TransitionType = "pay_balance"
	TransitionClose          TransitionType = "close"
	TransitionRateMission    TransitionType = "rate_mission"
	TransitionRateProvider   TransitionType = "rate_provider"
	TransitionArchive        TransitionType = "archive"
	TransitionUnarchive      TransitionType = "unarchive"
	TransitionDelete         TransitionType = "delete"
)

// DevisInput параметры формирования сметы.
type DevisInput struct {
	ProviderRate  float64 `json:"provider_rate"`
	CommissionHT  float64 `json:"commission_ht"`
	CommissionTVA float64 `json:"commission_tva"`
}

// TransitionPayload типизированные параметры перехода.
type TransitionPayload struct {
	Devis             *DevisInput `json:"devis,omitempty"`
	PaymentRef        string      `json:"payment_ref,omitempty"`
	AdvancePercentage int         `json:"advance_percentage,omitempty"`
	Rating            int         `json:"rating,omitempty"`
}

// MissionServiceConfig настраиваемые политики машины состояний.
type MissionServiceConfig struct {
	// Льготный период до автозакрытия миссии в admin_confirmed.
	AutoCloseGrace time.Duration
	// Окно, в течение которого архивацию можно отменить.
	ArchiveRetention time.Duration
}

const (
	defaultAutoCloseGrace   = 24 * time.Hour
	defaultArchiveRetention = 30 * 24 * time.Hour

	notifyTimeout = 5 * time.Second
)

// MissionService владеет жизненным циклом миссии: только он переводит
// миссию между состояниями и пересчитывает агрегаты рейтинга исполнителя.
// Каждый переход применяется как одна условная запись в хранилище:
// либо меняются все требуемые поля, либо ни одно.
type MissionService struct {
	missions  MissionStore
	proposals ProposalStoreForMission
	requests  RequestStoreForMission
	providers ProviderStoreForMission
	payments  PaymentConfirmer
	notifier  Notifier

	autoCloseGrace   time.Duration
	archiveRetention time.Duration
}

func NewMissionService(
	missions MissionStore,
	proposals ProposalStoreForMission,
	requests RequestStoreForMission,
	providers ProviderStoreForMission,
	payments PaymentConfirmer,
	notifier Notifier,
	cfg MissionServiceConfig,
) *MissionService {
	if cfg.AutoCloseGrace <= 0 {
		cfg.AutoCloseGrace = defaultAutoCloseGrace
	}
	if cfg.ArchiveRetention <= 0 {
		cfg.ArchiveRetention = defaultArchiveRetention
	}
	return &MissionService{
		missions:         missions,
		proposals:        proposals,
		requests:         requests,
		providers:        providers,
		payments:         payments,
		notifier:         notifier,
		autoCloseGrace:   cfg.AutoCloseGrace,
		archiveRetention: cfg.ArchiveRetention,
	}
}

// CreateFromAcceptedProposal принимает предложение и создаёт миссию в
// состоянии provider_estimated. Принятие и отклонение братьев атомарны:
// окно, в котором по заявке видны два принятых предложения, исключено
// на уровне хранилища.
func (s *MissionService) CreateFromAcceptedProposal(ctx context.Context, proposalID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "принимать предложения может только админ")
	}

	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, repository.ErrProposalNotFound) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище предложений недоступно")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, apperror.Newf(apperror.ErrCodeGuard, "предложение уже обработано (статус %s)", proposal.Status)
	}

	request, err := s.requests.GetByID(ctx, proposal.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperror.ErrRequestNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище заявок недоступно")
	}
	if request.Deleted {
		return nil, apperror.New(apperror.ErrCodeGuard, "заявка удалена")
	}
	if request.Status == models.RequestStatusRejected {
		return nil, apperror.New(apperror.ErrCodeGuard, "заявка отклонена админом")
	}

	mission := &models.Mission{
		RequestID:     proposal.RequestID,
		ProposalID:    proposal.ID,
		ProviderID:    proposal.ProviderID,
		ClientEmail:   request.ClientEmail,
		InternalState: models.MissionStateProviderEstimated,
	}

	if err := s.proposals.AcceptAndCreateMission(ctx, proposalID, mission); err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return nil, apperror.New(apperror.ErrCodeGuard, "по заявке уже принято другое предложение")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось принять предложение")
	}

	s.appendUpdate(ctx, mission.ID, actor.Role, "mission_created", strPtr(fmt.Sprintf("предложение %s принято", proposal.Ref)))
	s.notify(models.EventMissionCreated, mission.ClientEmail, missionEventData(mission))

	return mission, nil
}

// ApplyTransition типизированный диспетчер переходов для внешнего API.
func (s *MissionService) ApplyTransition(ctx context.Context, missionID uuid.UUID, transition TransitionType, actor models.Actor, payload TransitionPayload) (*models.Mission, error) {
	switch transition {
	case TransitionGenerateDevis:
		if payload.Devis == nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "не переданы параметры сметы")
		}
		return s.GenerateDevis(ctx, missionID, actor, *payload.Devis)
	case TransitionResetDevis:
		return s.ResetDevis(ctx, missionID, actor)
	case TransitionConfirmPayment:
		return s.ConfirmClientPayment(ctx, missionID, actor, payload.PaymentRef)
	case TransitionSendAdvance:
		return s.SendAdvance(ctx, missionID, actor, payload.AdvancePercentage)
	case TransitionStart:
		return s.StartMission(ctx, missionID, actor)
	case TransitionAdminConfirm:
		return s.ConfirmByAdmin(ctx, missionID, actor)
	case TransitionPayBalance:
		mission, _, err := s.PayBalance(ctx, missionID, actor)
		return mission, err
	case TransitionClose:
		return s.CloseMission(ctx, missionID, actor)
	case TransitionRateMission:
		return s.RateMission(ctx, missionID, actor, payload.Rating)
	case TransitionRateProvider:
		return s.RateProvider(ctx, missionID, actor, payload.Rating)
	case TransitionArchive:
		return s.Archive(ctx, missionID, actor)
	case TransitionUnarchive:
		return s.Unarchive(ctx, missionID, actor)
	case TransitionDelete:
		return s.SoftDelete(ctx, missionID, actor)
	}
	return nil, apperror.Newf(apperror.ErrCodeValidation, "неизвестный переход %q", string(transition))
}

// GenerateDevis формирует смету и переводит миссию в ожидание оплаты.
func (s *MissionService) GenerateDevis(ctx context.Context, missionID uuid.UUID, actor models.Actor, input DevisInput) (*models.Mission, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSystem {
		return nil, apperror.New(apperror.ErrCodeGuard, "смету формирует админ")
	}
	if input.ProviderRate <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка исполнителя должна быть положительной")
	}
	if input.CommissionHT < 0 || input.CommissionTVA < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "комиссия не может быть отрицательной")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.InternalState != models.MissionStateProviderEstimated {
		return nil, apperror.Newf(apperror.ErrCodeGuard, "смету можно сформировать только из состояния %s", models.MissionStateProviderEstimated)
	}

	total := input.ProviderRate + input.CommissionHT + input.CommissionTVA
	m.DevisGenere = true
	m.ProviderRate = &input.ProviderRate
	m.CommissionHT = &input.CommissionHT
	m.CommissionTVA = &input.CommissionTVA
	m.PrixTotalClient = &total
	m.InternalState = models.MissionStateWaitingClientPayment

	if err := s.applyCAS(ctx, m, models.MissionStateProviderEstimated); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "devis_genere", strPtr(fmt.Sprintf("итого для клиента %.2f", total)))
	s.notify(models.EventDevisGenere, m.ClientEmail, missionEventData(m))

	return m, nil
}

// ResetDevis сбрасывает смету, пока клиент ещё не оплатил.
func (s *MissionService) ResetDevis(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "сбросить смету может только админ")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.InternalState != models.MissionStateWaitingClientPayment {
		return nil, apperror.New(apperror.ErrCodeGuard, "сброс сметы возможен только до оплаты, из состояния ожидания оплаты")
	}
	if m.PaiementEffectue {
		return nil, apperror.New(apperror.ErrCodeGuard, "оплата клиента уже получена, смету сбросить нельзя")
	}

	m.DevisGenere = false
	m.ProviderRate = nil
	m.CommissionHT = nil
	m.CommissionTVA = nil
	m.PrixTotalClient = nil
	m.InternalState = models.MissionStateProviderEstimated

	if err := s.applyCAS(ctx, m, models.MissionStateWaitingClientPayment); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "devis_reset", nil)
	return m, nil
}

// ConfirmClientPayment фиксирует подтверждённую внешним платёжным сервисом
// оплату клиента.
func (s *MissionService) ConfirmClientPayment(ctx context.Context, missionID uuid.UUID, actor models.Actor, paymentRef string) (*models.Mission, error) {
	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleClient && actor.Email != m.ClientEmail {
		return nil, apperror.New(apperror.ErrCodeGuard, "оплату подтверждает клиент миссии")
	}
	if actor.Role == models.RoleProvider {
		return nil, apperror.New(apperror.ErrCodeGuard, "исполнитель не подтверждает оплату клиента")
	}
	if m.InternalState != models.MissionStateWaitingClientPayment {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не ожидает оплату клиента")
	}
	if paymentRef == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не передана платёжная ссылка")
	}

	ok, err := s.payments.Confirm(ctx, paymentRef)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "платёжный сервис недоступен")
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeGuard, "платёж не подтверждён платёжным сервисом")
	}

	now := time.Now()
	m.PaiementEffectue = true
	m.PaiementEffectueAt = &now
	m.InternalState = models.MissionStatePaidWaitingTakeover

	if err := s.applyCAS(ctx, m, models.MissionStateWaitingClientPayment); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "payment_confirmed", strPtr("ссылка "+paymentRef))
	s.notify(models.EventPaymentConfirmed, models.RoleAdmin, missionEventData(m))

	return m, nil
}

// SendAdvance переводит исполнителю аванс 25, 50 или 100 процентов ставки.
// Стопроцентный аванс атомарно закрывает и остаток: отдельной выплаты
// нуля не существует.
func (s *MissionService) SendAdvance(ctx context.Context, missionID uuid.UUID, actor models.Actor, percentage int) (*models.Mission, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "аванс переводит админ")
	}
	if _, ok := models.ValidAdvancePercentages[percentage]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "процент аванса должен быть 25, 50 или 100")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.InternalState != models.MissionStatePaidWaitingTakeover {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не ожидает перевода аванса")
	}
	if !m.PaiementEffectue {
		return nil, apperror.New(apperror.ErrCodeGuard, "оплата клиента ещё не получена")
	}
	if m.ProviderRate == nil {
		return nil, apperror.New(apperror.ErrCodeGuard, "ставка исполнителя не определена")
	}

	now := time.Now()
	m.AvanceVersee = true
	m.AvanceVerseeAt = &now
	m.AvancePercentage = &percentage
	if percentage == 100 {
		m.SoldeVersee = true
		m.SoldeVerseeAt = &now
	}
	m.InternalState = models.MissionStateAdvanceSent

	if err := s.applyCAS(ctx, m, models.MissionStatePaidWaitingTakeover); err != nil {
		return nil, err
	}

	amount := *m.ProviderRate * float64(percentage) / 100
	s.appendUpdate(ctx, m.ID, actor.Role, "advance_sent", strPtr(fmt.Sprintf("%d%% %.2f", percentage, amount)))
	s.notify(models.EventAdvanceSent, providerRecipient(m.ProviderID), missionEventData(m))

	return m, nil
}

// StartMission фиксирует, что назначенный исполнитель приступил к работе.
func (s *MissionService) StartMission(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleProvider || actor.ProviderID == nil || *actor.ProviderID != m.ProviderID {
		return nil, apperror.New(apperror.ErrCodeGuard, "начать миссию может только назначенный исполнитель")
	}
	if m.InternalState != models.MissionStateAdvanceSent {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не готова к началу работ: аванс ещё не переведён")
	}

	now := time.Now()
	m.StartedAt = &now
	m.InternalState = models.MissionStateInProgress

	if err := s.applyCAS(ctx, m, models.MissionStateAdvanceSent); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "mission_started", nil)
	s.notify(models.EventMissionStarted, models.RoleAdmin, missionEventData(m))

	return m, nil
}

// UpdateProgress обновляет прогресс выполнения без смены состояния.
func (s *MissionService) UpdateProgress(ctx context.Context, missionID uuid.UUID, actor models.Actor, percent int, deadline *time.Time) (*models.Mission, error) {
	if percent < 0 || percent > 100 {
		return nil, apperror.New(apperror.ErrCodeValidation, "прогресс должен быть от 0 до 100")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleProvider || actor.ProviderID == nil || *actor.ProviderID != m.ProviderID {
		return nil, apperror.New(apperror.ErrCodeGuard, "прогресс обновляет назначенный исполнитель")
	}
	if m.InternalState != models.MissionStateInProgress {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не в работе")
	}

	m.ProgressPercent = percent
	if deadline != nil {
		m.Deadline = deadline
	}

	if err := s.applyCAS(ctx, m, models.MissionStateInProgress); err != nil {
		return nil, err
	}
	return m, nil
}

// ConfirmByAdmin подтверждает выполнение работ после проверки доказательств.
func (s *MissionService) ConfirmByAdmin(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "подтвердить выполнение может только админ")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.InternalState != models.MissionStateInProgress {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не в работе")
	}

	proofs, err := s.missions.CountProofs(ctx, m.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище доказательств недоступно")
	}
	if proofs == 0 {
		return nil, apperror.New(apperror.ErrCodeGuard, "нет загруженных доказательств выполнения работ")
	}

	now := time.Now()
	m.AdminConfirmedAt = &now
	m.InternalState = models.MissionStateAdminConfirmed

	if err := s.applyCAS(ctx, m, models.MissionStateInProgress); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "admin_confirmed", nil)
	s.notify(models.EventMissionConfirmed, m.ClientEmail, missionEventData(m))

	return m, nil
}

// PayBalance выплачивает исполнителю остаток: ставка × (100 − аванс) / 100.
func (s *MissionService) PayBalance(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, float64, error) {
	if actor.Role != models.RoleAdmin {
		return nil, 0, apperror.New(apperror.ErrCodeGuard, "остаток выплачивает админ")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, 0, err
	}
	if m.InternalState != models.MissionStateAdminConfirmed {
		return nil, 0, apperror.New(apperror.ErrCodeGuard, "миссия не в состоянии подтверждённых работ")
	}
	if m.SoldeVersee {
		return nil, 0, apperror.New(apperror.ErrCodeGuard, "остаток уже выплачен")
	}
	if !m.PaiementEffectue || !m.AvanceVersee || m.ProviderRate == nil || m.AvancePercentage == nil {
		return nil, 0, apperror.New(apperror.ErrCodeGuard, "аванс ещё не переведён")
	}

	amount := *m.ProviderRate * float64(100-*m.AvancePercentage) / 100

	now := time.Now()
	m.SoldeVersee = true
	m.SoldeVerseeAt = &now

	if err := s.applyCAS(ctx, m, models.MissionStateAdminConfirmed); err != nil {
		return nil, 0, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "balance_paid", strPtr(fmt.Sprintf("%.2f", amount)))
	s.notify(models.EventBalancePaid, providerRecipient(m.ProviderID), missionEventData(m))

	return m, amount, nil
}

// CloseMission закрывает миссию. Закрыть может клиент миссии или админ;
// первый закрывший побеждает, миссия автоматически архивируется.
func (s *MissionService) CloseMission(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleSystem:
	case models.RoleClient:
		if actor.Email != m.ClientEmail {
			return nil, apperror.New(apperror.ErrCodeGuard, "закрыть миссию может только её клиент")
		}
	default:
		return nil, apperror.New(apperror.ErrCodeGuard, "исполнитель не закрывает миссию")
	}

	if m.ClosedAt != nil {
		closedBy := models.RoleAdmin
		if m.ClosedBy != nil {
			closedBy = *m.ClosedBy
		}
		return nil, apperror.Newf(apperror.ErrCodeGuard, "миссия уже закрыта (%s)", closedBy)
	}
	if m.InternalState != models.MissionStateAdminConfirmed {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не в состоянии подтверждённых работ")
	}
	if !m.SoldeVersee {
		return nil, apperror.New(apperror.ErrCodeGuard, "остаток исполнителю ещё не выплачен")
	}

	now := time.Now()
	role := actor.Role

	// При закрытии доказательства считаются принятыми клиентом.
	m.ProofValidatedForClient = true
	m.InternalState = models.MissionStateCompleted
	m.ClosedAt = &now
	m.ClosedBy = &role
	m.Archived = true
	m.ArchivedAt = &now
	m.ArchivedBy = &role

	if err := s.applyCAS(ctx, m, models.MissionStateAdminConfirmed); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, role, "mission_closed", strPtr("закрыто и заархивировано"))
	s.notify(models.EventMissionClosed, m.ClientEmail, missionEventData(m))

	return m, nil
}

// RateMission сохраняет оценку клиента платформе по миссии.
func (s *MissionService) RateMission(ctx context.Context, missionID uuid.UUID, actor models.Actor, rating int) (*models.Mission, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleClient || actor.Email != m.ClientEmail {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссию оценивает её клиент")
	}
	if err := s.checkRatable(m); err != nil {
		return nil, err
	}

	m.ClientRating = &rating
	if err := s.applyCAS(ctx, m, m.InternalState); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "client_rated", strPtr(fmt.Sprintf("%d/5", rating)))
	s.notify(models.EventMissionRated, models.RoleAdmin, missionEventData(m))

	return m, nil
}

// RateProvider сохраняет оценку исполнителя админом и пересчитывает
// агрегаты рейтинга исполнителя от полного набора его миссий.
func (s *MissionService) RateProvider(ctx context.Context, missionID uuid.UUID, actor models.Actor, rating int) (*models.Mission, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeGuard, "исполнителя оценивает админ")
	}

	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRatable(m); err != nil {
		return nil, err
	}

	m.ProviderRating = &rating
	if err := s.applyCAS(ctx, m, m.InternalState); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "provider_rated", strPtr(fmt.Sprintf("%d/5", rating)))

	// Оценка уже записана; сбой пересчёта агрегатов переход не отменяет,
	// следующий пересчёт считает от полного набора и навёрстывает.
	if _, err := s.RecomputeProviderRating(ctx, m.ProviderID); err != nil && logger.Log != nil {
		logger.Log.WithError(err).Warnf("mission service: агрегаты исполнителя %s не пересчитаны", m.ProviderID)
	}

	return m, nil
}

// checkRatable общий гейт оценок: остаток выплачен, миссия подтверждена
// или завершена.
func (s *MissionService) checkRatable(m *models.Mission) error {
	if !m.SoldeVersee {
		return apperror.New(apperror.ErrCodeGuard, "оценка доступна после выплаты остатка")
	}
	if m.InternalState != models.MissionStateCompleted && m.InternalState != models.MissionStateAdminConfirmed {
		return apperror.New(apperror.ErrCodeGuard, "оценка доступна для подтверждённой или завершённой миссии")
	}
	return nil
}

// RecomputeProviderRating пересчитывает агрегаты рейтинга исполнителя.
// Всегда считается от полного набора миссий на момент запуска; при
// конкурентных пересчётах побеждает последняя запись.
func (s *MissionService) RecomputeProviderRating(ctx context.Context, providerID uuid.UUID) (*models.RatingAggregate, error) {
	stats, err := s.missions.GetProviderMissionStats(ctx, providerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище миссий недоступно")
	}

	agg := models.RatingAggregate{MissionCount: stats.MissionCount}
	if stats.RatedCount > 0 {
		agg.AverageRating = float64(stats.RatingSum) / float64(stats.RatedCount)
	}
	if stats.MissionCount > 0 {
		agg.SuccessRate = float64(stats.CompletedCount) / float64(stats.MissionCount) * 100
	}

	if err := s.providers.UpdateRatingAggregate(ctx, providerID, agg); err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return nil, apperror.ErrProviderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище исполнителей недоступно")
	}

	return &agg, nil
}

// Archive архивирует миссию по инициативе любой её стороны.
func (s *MissionService) Archive(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if !m.IsParty(actor) {
		return nil, apperror.New(apperror.ErrCodeGuard, "архивировать миссию может только её участник")
	}
	if m.Archived {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия уже в архиве")
	}

	now := time.Now()
	role := actor.Role
	m.Archived = true
	m.ArchivedAt = &now
	m.ArchivedBy = &role

	if err := s.applyCAS(ctx, m, m.InternalState); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, role, "archived", nil)
	return m, nil
}

// Unarchive возвращает миссию из архива. Разрешено только той же роли,
// которая архивировала, и только внутри окна хранения.
func (s *MissionService) Unarchive(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if !m.IsParty(actor) {
		return nil, apperror.New(apperror.ErrCodeGuard, "разархивировать миссию может только её участник")
	}
	if !m.Archived {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия не в архиве")
	}
	if m.ArchivedBy == nil || *m.ArchivedBy != actor.Role {
		return nil, apperror.New(apperror.ErrCodeGuard, "разархивировать может только та же роль, что архивировала")
	}
	if m.ArchivedAt != nil && time.Since(*m.ArchivedAt) > s.archiveRetention {
		return nil, apperror.New(apperror.ErrCodeGuard, "срок отмены архивации истёк")
	}

	m.Archived = false
	m.ArchivedAt = nil
	m.ArchivedBy = nil

	if err := s.applyCAS(ctx, m, m.InternalState); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, actor.Role, "unarchived", nil)
	return m, nil
}

// SoftDelete помечает миссию удалённой; дальнейшие переходы запрещены.
func (s *MissionService) SoftDelete(ctx context.Context, missionID uuid.UUID, actor models.Actor) (*models.Mission, error) {
	m, err := s.loadActionable(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if !m.IsParty(actor) {
		return nil, apperror.New(apperror.ErrCodeGuard, "удалить миссию может только её участник")
	}

	now := time.Now()
	role := actor.Role
	m.Deleted = true
	m.DeletedAt = &now
	m.DeletedBy = &role

	if err := s.applyCAS(ctx, m, m.InternalState); err != nil {
		return nil, err
	}

	s.appendUpdate(ctx, m.ID, role, "deleted", nil)
	return m, nil
}

// AutoCloseEligibleMissions закрывает миссии, простоявшие в admin_confirmed
// с валидированными доказательствами дольше льготного периода без действий
// клиента. Идемпотентна и безопасна при конкурентных запусках: уже
// закрытая миссия — no-op, проигравший CAS просто пропускает её.
func (s *MissionService) AutoCloseEligibleMissions(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.autoCloseGrace)

	eligible, err := s.missions.ListAutoCloseEligible(ctx, cutoff)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище миссий недоступно")
	}

	closed := 0
	for i := range eligible {
		m := eligible[i]
		role := models.RoleSystem

		m.ProofValidatedForClient = true
		m.InternalState = models.MissionStateCompleted
		m.ClosedAt = &now
		m.ClosedBy = &role
		m.Archived = true
		m.ArchivedAt = &now
		m.ArchivedBy = &role

		err := s.missions.UpdateCAS(ctx, &m, models.MissionStateAdminConfirmed)
		if errors.Is(err, common.ErrStaleState) {
			// Кто-то закрыл её параллельно.
			continue
		}
		if err != nil {
			return closed, apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось закрыть миссию")
		}

		closed++
		s.appendUpdate(ctx, m.ID, role, "mission_closed", strPtr("автозакрытие по истечении льготного периода"))
		s.notify(models.EventMissionClosed, m.ClientEmail, missionEventData(&m))
	}

	return closed, nil
}

// loadActionable читает миссию и отклоняет работу с удалённой.
func (s *MissionService) loadActionable(ctx context.Context, missionID uuid.UUID) (*models.Mission, error) {
	m, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrMissionNotFound) {
			return nil, apperror.ErrMissionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDependency, "хранилище миссий недоступно")
	}
	if !m.Actionable() {
		return nil, apperror.New(apperror.ErrCodeGuard, "миссия удалена и не принимает переходы")
	}
	return m, nil
}

// applyCAS записывает переход одной условной операцией хранилища.
func (s *MissionService) applyCAS(ctx context.Context, m *models.Mission, expectedState string) error {
	if err := s.missions.UpdateCAS(ctx, m, expectedState); err != nil {
		if errors.Is(err, common.ErrStaleState) {
			return apperror.ErrStaleMission
		}
		return apperror.Wrap(err, apperror.ErrCodeDependency, "не удалось сохранить переход")
	}
	return nil
}

// appendUpdate пишет запись журнала; сбой журнала переход не откатывает.
func (s *MissionService) appendUpdate(ctx context.Context, missionID uuid.UUID, actor, action string, detail *string) {
	if err := s.missions.AppendUpdate(ctx, missionID, actor, action, detail); err != nil && logger.Log != nil {
		logger.Log.WithError(err).Warnf("mission service: журнал миссии %s не записан", missionID)
	}
}

// notify асинхронно рассылает событие; сбой доставки логируется
// и никогда не влияет на переход.
func (s *MissionService) notify(event, recipient string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, event, recipient, data); err != nil && logger.Log != nil {
			logger.Log.WithError(err).Warnf("mission service: уведомление %s не доставлено", event)
		}
	})
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
	}
	return nil
}

func missionEventData(m *models.Mission) map[string]interface{} {
	return map[string]interface{}{
		"mission_id":  m.ID,
		"mission_ref": m.Ref,
		"state":       m.InternalState,
		"status":      m.PublicStatus(),
	}
}

// providerRecipient адрес исполнителя для канала уведомлений.
func providerRecipient(providerID uuid.UUID) string {
	return "provider:" + providerID.String()
}

func strPtr(s string) *string {
	return &s
}
