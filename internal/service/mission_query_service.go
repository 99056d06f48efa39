package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/pkg/apperror"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
)

// MissionQueryStore доступ к миссиям для чтения, доказательствам и журналу.
type MissionQueryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	GetByRef(ctx context.Context, ref string) (*models.Mission, error)
	List(ctx context.Context, includeArchived bool, limit, offset int) ([]models.Mission, error)
	ListByClientEmail(ctx context.Context, email string, includeArchived bool) ([]models.Mission, error)
	ListByProviderID(ctx context.Context, providerID uuid.UUID, includeArchived bool) ([]models.Mission, error)
	AddProof(ctx context.Context, proof *models.MissionProof) error
	ListProofs(ctx context.Context, missionID uuid.UUID) ([]models.MissionProof, error)
	ValidateProof(ctx context.Context, proofID uuid.UUID) error
	ListUpdates(ctx context.Context, missionID uuid.UUID) ([]models.MissionUpdate, error)
	AppendUpdate(ctx context.Context, missionID uuid.UUID, actor, action string, detail *string) error
}

// AttachProofInput описание уже сохранённого файла доказательства.
type AttachProofInput struct {
	FileName  string
	FilePath  string
	MimeType  string
	SizeBytes int64
}

// MissionQueryService обслуживает чтение миссий и работу с
// доказательствами. Видимость: админ видит всё, стороны миссии видят
// только свои миссии, удалённые миссии скрыты от всех кроме админа.
type MissionQueryService struct {
	missions MissionQueryStore
}

func NewMissionQueryService(missions MissionQueryStore) *MissionQueryService {
	return &MissionQueryService{missions: missions}
}

// Get возвращает миссию по идентификатору с учётом видимости.
func (s *MissionQueryService) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Mission, error) {
	mission, err := s.missions.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	return s.checkVisible(mission, actor)
}

// GetByRef возвращает миссию по человекочитаемому номеру (MIS-2026-0001).
func (s *MissionQueryService) GetByRef(ctx context.Context, ref string, actor models.Actor) (*models.Mission, error) {
	mission, err := s.missions.GetByRef(ctx, ref)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	return s.checkVisible(mission, actor)
}

// List возвращает миссии участника: админу весь список, клиенту миссии
// по его email, исполнителю миссии его профиля.
func (s *MissionQueryService) List(ctx context.Context, actor models.Actor, includeArchived bool, limit, offset int) ([]models.Mission, error) {
	switch actor.Role {
	case models.RoleAdmin:
		missions, err := s.missions.List(ctx, includeArchived, limit, offset)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить список миссий")
		}
		return missions, nil
	case models.RoleClient:
		missions, err := s.missions.ListByClientEmail(ctx, actor.Email, includeArchived)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить список миссий")
		}
		return missions, nil
	case models.RoleProvider:
		if actor.ProviderID == nil {
			return []models.Mission{}, nil
		}
		missions, err := s.missions.ListByProviderID(ctx, *actor.ProviderID, includeArchived)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить список миссий")
		}
		return missions, nil
	}
	return nil, apperror.ErrForbidden
}

// AttachProof регистрирует сохранённый файл доказательства. Загружать
// может назначенный исполнитель или админ, начиная с состояния in_progress.
func (s *MissionQueryService) AttachProof(ctx context.Context, missionID uuid.UUID, actor models.Actor, input AttachProofInput) (*models.MissionProof, error) {
	mission, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	if mission.Deleted {
		return nil, apperror.ErrMissionNotFound
	}
	if actor.Role != models.RoleAdmin {
		if actor.Role != models.RoleProvider || !mission.IsParty(actor) {
			return nil, apperror.New(apperror.ErrCodeGuard, "доказательства загружает назначенный исполнитель")
		}
	}
	switch mission.InternalState {
	case models.MissionStateInProgress, models.MissionStateAdminConfirmed, models.MissionStateCompleted:
	default:
		return nil, apperror.New(apperror.ErrCodeGuard, "доказательства принимаются после начала работ")
	}

	proof := &models.MissionProof{
		ID:         uuid.New(),
		MissionID:  missionID,
		FilePath:   input.FilePath,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		SizeBytes:  input.SizeBytes,
		UploadedBy: actor.Email,
	}
	if err := s.missions.AddProof(ctx, proof); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить доказательство")
	}

	// Журнал вторичен, загрузка уже состоялась.
	detail := fmt.Sprintf("файл %s (%s)", proof.FileName, proof.MimeType)
	_ = s.missions.AppendUpdate(ctx, missionID, actor.Email, "proof_uploaded", &detail)

	return proof, nil
}

// ListProofs возвращает доказательства миссии сторонам и админу.
func (s *MissionQueryService) ListProofs(ctx context.Context, missionID uuid.UUID, actor models.Actor) ([]models.MissionProof, error) {
	mission, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	if _, err := s.checkVisible(mission, actor); err != nil {
		return nil, err
	}

	proofs, err := s.missions.ListProofs(ctx, missionID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить доказательства")
	}
	return proofs, nil
}

// ValidateProof отмечает доказательство проверенным (админ).
func (s *MissionQueryService) ValidateProof(ctx context.Context, missionID, proofID uuid.UUID, actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return apperror.ErrForbidden
	}
	if _, err := s.missions.GetByID(ctx, missionID); err != nil {
		return s.mapNotFound(err)
	}
	if err := s.missions.ValidateProof(ctx, proofID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "доказательство не найдено")
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отметить доказательство")
	}
	return nil
}

// ListUpdates возвращает журнал действий по миссии (админ).
func (s *MissionQueryService) ListUpdates(ctx context.Context, missionID uuid.UUID, actor models.Actor) ([]models.MissionUpdate, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if _, err := s.missions.GetByID(ctx, missionID); err != nil {
		return nil, s.mapNotFound(err)
	}

	updates, err := s.missions.ListUpdates(ctx, missionID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить журнал миссии")
	}
	return updates, nil
}

func (s *MissionQueryService) checkVisible(mission *models.Mission, actor models.Actor) (*models.Mission, error) {
	if mission.Deleted && actor.Role != models.RoleAdmin {
		return nil, apperror.ErrMissionNotFound
	}
	if !mission.IsParty(actor) {
		return nil, apperror.ErrMissionNotFound
	}
	return mission, nil
}

func (s *MissionQueryService) mapNotFound(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return apperror.ErrMissionNotFound
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить миссию")
}
