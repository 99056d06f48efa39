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

var ErrRequestNotFound = errors.New("request not found")

// Префикс человекочитаемых номеров заявок: DEM-2026-0001
const requestRefScope = "DEM"

type RequestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create создаёт заявку, выдавая ей сквозной номер внутри года
// в той же транзакции, что и вставка.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		ref, err := common.NextRef(ctx, tx, requestRefScope, time.Now().Year())
		if err != nil {
			return err
		}
		request.Ref = ref

		query := `
			INSERT INTO requests (ref, client_email, service_type, category, subcategory,
				description, country, city, urgent, budget, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`
		return tx.QueryRowxContext(ctx, query,
			request.Ref, request.ClientEmail, request.ServiceType, request.Category,
			request.Subcategory, request.Description, request.Country, request.City,
			request.Urgent, request.Budget, request.Status,
		).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	})
}

// GetByID возвращает заявку по идентификатору.
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	return common.GetByID[models.Request](ctx, r.db, "requests", id, ErrRequestNotFound)
}

// GetByRef возвращает заявку по человекочитаемому номеру.
func (r *RequestRepository) GetByRef(ctx context.Context, ref string) (*models.Request, error) {
	return common.GetByField[models.Request](ctx, r.db, "requests", "ref", ref, ErrRequestNotFound)
}

// List возвращает неудалённые заявки, новые первыми.
func (r *RequestRepository) List(ctx context.Context, limit, offset int) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM requests WHERE deleted = false
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	return requests, err
}

// ListByClientEmail возвращает неудалённые заявки клиента.
func (r *RequestRepository) ListByClientEmail(ctx context.Context, email string) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM requests WHERE client_email = $1 AND deleted = false
		ORDER BY created_at DESC
	`, email)
	return requests, err
}

// UpdateStatus переводит заявку в новый статус.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE requests SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted = false
	`, id, status)
	if err != nil {
		return fmt.Errorf("request repository: update status %w", err)
	}
	return checkAffected(res, ErrRequestNotFound)
}

// SoftDelete помечает заявку удалённой с фиксацией автора.
func (r *RequestRepository) SoftDelete(ctx context.Context, id uuid.UUID, actor string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE requests SET deleted = true, deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`, id, actor)
	if err != nil {
		return fmt.Errorf("request repository: soft delete %w", err)
	}
	return checkAffected(res, ErrRequestNotFound)
}

// CountByStatus возвращает количество неудалённых заявок в статусе.
func (r *RequestRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM requests WHERE status = $1 AND deleted = false`, status)
	return count, err
}
