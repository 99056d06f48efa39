package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
)

var ErrMissionNotFound = errors.New("mission not found")

type MissionRepository struct {
	db *sqlx.DB
}

func NewMissionRepository(db *sqlx.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// GetByID возвращает миссию по идентификатору.
func (r *MissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	return common.GetByID[models.Mission](ctx, r.db, "missions", id, ErrMissionNotFound)
}

// GetByRef возвращает миссию по человекочитаемому номеру.
func (r *MissionRepository) GetByRef(ctx context.Context, ref string) (*models.Mission, error) {
	return common.GetByField[models.Mission](ctx, r.db, "missions", "ref", ref, ErrMissionNotFound)
}

// List возвращает неудалённые миссии для админа.
func (r *MissionRepository) List(ctx context.Context, includeArchived bool, limit, offset int) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.SelectContext(ctx, &missions, `
		SELECT * FROM missions
		WHERE deleted = false AND (archived = false OR $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, includeArchived, limit, offset)
	return missions, err
}

// ListByClientEmail возвращает миссии клиента.
func (r *MissionRepository) ListByClientEmail(ctx context.Context, email string, includeArchived bool) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.SelectContext(ctx, &missions, `
		SELECT * FROM missions
		WHERE client_email = $1 AND deleted = false AND (archived = false OR $2)
		ORDER BY created_at DESC
	`, email, includeArchived)
	return missions, err
}

// ListByProviderID возвращает миссии исполнителя.
func (r *MissionRepository) ListByProviderID(ctx context.Context, providerID uuid.UUID, includeArchived bool) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.SelectContext(ctx, &missions, `
		SELECT * FROM missions
		WHERE provider_id = $1 AND deleted = false AND (archived = false OR $2)
		ORDER BY created_at DESC
	`, providerID, includeArchived)
	return missions, err
}

// UpdateCAS записывает все изменяемые поля миссии при условии, что её
// внутреннее состояние в базе всё ещё равно expectedState. Проигравший
// конкурентный переход не меняет ни одной строки и получает ErrStaleState —
// частичных мутаций не бывает по построению.
func (r *MissionRepository) UpdateCAS(ctx context.Context, m *models.Mission, expectedState string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE missions SET
			internal_state = $2,
			devis_genere = $3,
			provider_rate = $4,
			commission_ht = $5,
			commission_tva = $6,
			prix_total_client = $7,
			paiement_effectue = $8,
			paiement_effectue_at = $9,
			avance_versee = $10,
			avance_versee_at = $11,
			avance_percentage = $12,
			solde_versee = $13,
			solde_versee_at = $14,
			started_at = $15,
			deadline = $16,
			progress_percent = $17,
			admin_confirmed_at = $18,
			proof_validated_for_client = $19,
			closed_at = $20,
			closed_by = $21,
			client_rating = $22,
			provider_rating = $23,
			archived = $24,
			archived_at = $25,
			archived_by = $26,
			deleted = $27,
			deleted_at = $28,
			deleted_by = $29,
			updated_at = NOW()
		WHERE id = $1 AND internal_state = $30
	`,
		m.ID, m.InternalState, m.DevisGenere, m.ProviderRate, m.CommissionHT,
		m.CommissionTVA, m.PrixTotalClient, m.PaiementEffectue, m.PaiementEffectueAt,
		m.AvanceVersee, m.AvanceVerseeAt, m.AvancePercentage, m.SoldeVersee,
		m.SoldeVerseeAt, m.StartedAt, m.Deadline, m.ProgressPercent,
		m.AdminConfirmedAt, m.ProofValidatedForClient, m.ClosedAt, m.ClosedBy,
		m.ClientRating, m.ProviderRating, m.Archived, m.ArchivedAt, m.ArchivedBy,
		m.Deleted, m.DeletedAt, m.DeletedBy, expectedState,
	)
	if err != nil {
		return fmt.Errorf("mission repository: update %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return common.ErrStaleState
	}
	return nil
}

// ListAutoCloseEligible возвращает миссии, которые простояли в
// admin_confirmed с подтверждённым остатком дольше льготного периода.
// Валидированность доказательств читается из mission_proofs: флаг
// proof_validated_for_client на миссии ставится только при закрытии.
func (r *MissionRepository) ListAutoCloseEligible(ctx context.Context, confirmedBefore time.Time) ([]models.Mission, error) {
	var missions []models.Mission
	err := r.db.SelectContext(ctx, &missions, `
		SELECT * FROM missions
		WHERE internal_state = $1
		  AND solde_versee = true
		  AND closed_at IS NULL
		  AND deleted = false
		  AND admin_confirmed_at IS NOT NULL
		  AND admin_confirmed_at <= $2
		  AND EXISTS (
			SELECT 1 FROM mission_proofs p WHERE p.mission_id = missions.id
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM mission_proofs p
			WHERE p.mission_id = missions.id AND p.validated_at IS NULL
		  )
		ORDER BY admin_confirmed_at
	`, models.MissionStateAdminConfirmed, confirmedBefore)
	return missions, err
}

// GetProviderMissionStats читает полный набор оценённых миссий исполнителя.
// Пересчёт всегда идёт от полного набора, а не инкрементально, поэтому
// порядок конкурентных пересчётов не влияет на итог.
func (r *MissionRepository) GetProviderMissionStats(ctx context.Context, providerID uuid.UUID) (*models.ProviderMissionStats, error) {
	var stats models.ProviderMissionStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COALESCE(SUM(provider_rating), 0)                        AS rating_sum,
			COUNT(provider_rating)                                   AS rated_count,
			COUNT(*)                                                 AS mission_count,
			COUNT(*) FILTER (WHERE internal_state = $2)              AS completed_count
		FROM missions
		WHERE provider_id = $1 AND deleted = false
	`, providerID, models.MissionStateCompleted)
	if err != nil {
		return nil, fmt.Errorf("mission repository: provider stats %w", err)
	}
	return &stats, nil
}

// AddProof сохраняет запись о доказательстве выполнения.
func (r *MissionRepository) AddProof(ctx context.Context, proof *models.MissionProof) error {
	query := `
		INSERT INTO mission_proofs (mission_id, file_path, file_name, mime_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		proof.MissionID, proof.FilePath, proof.FileName, proof.MimeType,
		proof.SizeBytes, proof.UploadedBy,
	).Scan(&proof.ID, &proof.CreatedAt)
}

// ListProofs возвращает доказательства по миссии.
func (r *MissionRepository) ListProofs(ctx context.Context, missionID uuid.UUID) ([]models.MissionProof, error) {
	var proofs []models.MissionProof
	err := r.db.SelectContext(ctx, &proofs, `
		SELECT * FROM mission_proofs WHERE mission_id = $1 ORDER BY created_at
	`, missionID)
	return proofs, err
}

// CountProofs возвращает количество загруженных доказательств.
func (r *MissionRepository) CountProofs(ctx context.Context, missionID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM mission_proofs WHERE mission_id = $1`, missionID)
	return count, err
}

// ValidateProof отмечает доказательство проверенным админом.
func (r *MissionRepository) ValidateProof(ctx context.Context, proofID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mission_proofs SET validated_at = NOW() WHERE id = $1 AND validated_at IS NULL
	`, proofID)
	if err != nil {
		return fmt.Errorf("mission repository: validate proof %w", err)
	}
	return checkAffected(res, ErrMissionNotFound)
}

// AppendUpdate добавляет запись в журнал действий по миссии.
func (r *MissionRepository) AppendUpdate(ctx context.Context, missionID uuid.UUID, actor, action string, detail *string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mission_updates (mission_id, actor, action, detail)
		VALUES ($1, $2, $3, $4)
	`, missionID, actor, action, detail)
	if err != nil {
		return fmt.Errorf("mission repository: append update %w", err)
	}
	return nil
}

// ListUpdates возвращает журнал действий по миссии.
func (r *MissionRepository) ListUpdates(ctx context.Context, missionID uuid.UUID) ([]models.MissionUpdate, error) {
	var updates []models.MissionUpdate
	err := r.db.SelectContext(ctx, &updates, `
		SELECT * FROM mission_updates WHERE mission_id = $1 ORDER BY created_at
	`, missionID)
	return updates, err
}

// CountByState возвращает количество неудалённых миссий в состоянии.
func (r *MissionRepository) CountByState(ctx context.Context, state string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM missions WHERE internal_state = $1 AND deleted = false`, state)
	return count, err
}
