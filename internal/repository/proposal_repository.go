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

var (
	ErrProposalNotFound      = errors.New("proposal not found")
	ErrDuplicateProposal     = errors.New("pending proposal already exists for this request and provider")
	ErrProposalNotAcceptable = errors.New("proposal is not acceptable")
)

const (
	proposalRefScope = "PRO"
	missionRefScope  = "MIS"
)

type ProposalRepository struct {
	db *sqlx.DB
}

func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Create создаёт предложение. Дубликат pending-предложения той же пары
// (заявка, исполнитель) отклоняется внутри транзакции.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var exists bool
		err := tx.QueryRowxContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM proposals
				WHERE request_id = $1 AND provider_id = $2 AND status = $3
			)
		`, proposal.RequestID, proposal.ProviderID, models.ProposalStatusPending).Scan(&exists)
		if err != nil {
			return fmt.Errorf("proposal repository: check duplicate %w", err)
		}
		if exists {
			return ErrDuplicateProposal
		}

		ref, err := common.NextRef(ctx, tx, proposalRefScope, time.Now().Year())
		if err != nil {
			return err
		}
		proposal.Ref = ref

		query := `
			INSERT INTO proposals (ref, request_id, provider_id, price, delay_days,
				comment, difficulty, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at
		`
		return tx.QueryRowxContext(ctx, query,
			proposal.Ref, proposal.RequestID, proposal.ProviderID, proposal.Price,
			proposal.DelayDays, proposal.Comment, proposal.Difficulty, proposal.Status,
		).Scan(&proposal.ID, &proposal.CreatedAt, &proposal.UpdatedAt)
	})
}

// GetByID возвращает предложение по идентификатору.
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return common.GetByID[models.Proposal](ctx, r.db, "proposals", id, ErrProposalNotFound)
}

// ListByRequestID возвращает предложения по заявке, ранние первыми.
func (r *ProposalRepository) ListByRequestID(ctx context.Context, requestID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.SelectContext(ctx, &proposals, `
		SELECT * FROM proposals WHERE request_id = $1 ORDER BY created_at
	`, requestID)
	return proposals, err
}

// ListByProviderID возвращает предложения исполнителя.
func (r *ProposalRepository) ListByProviderID(ctx context.Context, providerID uuid.UUID) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := r.db.SelectContext(ctx, &proposals, `
		SELECT * FROM proposals WHERE provider_id = $1 ORDER BY created_at DESC
	`, providerID)
	return proposals, err
}

// Refuse отклоняет pending-предложение с указанием причины.
func (r *ProposalRepository) Refuse(ctx context.Context, id uuid.UUID, reason *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE proposals SET status = $2, refusal_reason = $3, refused_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, models.ProposalStatusRefused, reason, models.ProposalStatusPending)
	if err != nil {
		return fmt.Errorf("proposal repository: refuse %w", err)
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

// AcceptAndCreateMission атомарно принимает предложение, отклоняет его
// pending-братьев по той же заявке и создаёт миссию в начальном состоянии.
// Принятие условное: если по заявке уже есть принятое предложение или само
// предложение больше не pending, ни одна строка не меняется и возвращается
// common.ErrStaleState.
func (r *ProposalRepository) AcceptAndCreateMission(ctx context.Context, proposalID uuid.UUID, mission *models.Mission) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE proposals SET status = $2, accepted_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $3
			  AND NOT EXISTS (
				SELECT 1 FROM proposals p2
				WHERE p2.request_id = proposals.request_id AND p2.status = $2
			  )
		`, proposalID, models.ProposalStatusAccepted, models.ProposalStatusPending)
		if err != nil {
			return fmt.Errorf("proposal repository: accept %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return common.ErrStaleState
		}

		reason := "выбрано другое предложение"
		if _, err := tx.ExecContext(ctx, `
			UPDATE proposals SET status = $3, refusal_reason = $4, refused_at = NOW(), updated_at = NOW()
			WHERE request_id = $1 AND id <> $2 AND status = $5
		`, mission.RequestID, proposalID, models.ProposalStatusRefused, reason, models.ProposalStatusPending); err != nil {
			return fmt.Errorf("proposal repository: refuse siblings %w", err)
		}

		ref, err := common.NextRef(ctx, tx, missionRefScope, time.Now().Year())
		if err != nil {
			return err
		}
		mission.Ref = ref

		query := `
			INSERT INTO missions (ref, request_id, proposal_id, provider_id, client_email, internal_state)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		return tx.QueryRowxContext(ctx, query,
			mission.Ref, mission.RequestID, mission.ProposalID, mission.ProviderID,
			mission.ClientEmail, mission.InternalState,
		).Scan(&mission.ID, &mission.CreatedAt, &mission.UpdatedAt)
	})
}
