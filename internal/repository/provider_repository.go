package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/repository/common"
)

var ErrProviderNotFound = errors.New("provider not found")

const providerRefScope = "PRE"

type ProviderRepository struct {
	db *sqlx.DB
}

func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// Create регистрирует исполнителя со статусом pending.
func (r *ProviderRepository) Create(ctx context.Context, provider *models.Provider) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		ref, err := common.NextRef(ctx, tx, providerRefScope, time.Now().Year())
		if err != nil {
			return err
		}
		provider.Ref = ref

		query := `
			INSERT INTO providers (ref, email, company_name, contact_name, specialties,
				countries, experience_years, status, availability)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`
		return tx.QueryRowxContext(ctx, query,
			provider.Ref, provider.Email, provider.CompanyName, provider.ContactName,
			provider.Specialties, provider.Countries, provider.ExperienceYears,
			provider.Status, provider.Availability,
		).Scan(&provider.ID, &provider.CreatedAt, &provider.UpdatedAt)
	})
}

// GetByID возвращает исполнителя по идентификатору.
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return common.GetByID[models.Provider](ctx, r.db, "providers", id, ErrProviderNotFound)
}

// GetByEmail возвращает исполнителя по email.
func (r *ProviderRepository) GetByEmail(ctx context.Context, email string) (*models.Provider, error) {
	return common.GetByField[models.Provider](ctx, r.db, "providers", "email", email, ErrProviderNotFound)
}

// List возвращает всех неудалённых исполнителей.
func (r *ProviderRepository) List(ctx context.Context, limit, offset int) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.SelectContext(ctx, &providers, `
		SELECT * FROM providers WHERE deleted = false
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	return providers, err
}

// ListEligible возвращает кандидатов для подбора: активных и ожидающих
// модерации, без отклонённых и удалённых.
func (r *ProviderRepository) ListEligible(ctx context.Context) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.SelectContext(ctx, &providers, `
		SELECT * FROM providers
		WHERE deleted = false AND status IN ($1, $2)
		ORDER BY created_at
	`, models.ProviderStatusActive, models.ProviderStatusPending)
	return providers, err
}

// UpdateStatus переводит исполнителя в новый статус модерации.
func (r *ProviderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE providers SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted = false
	`, id, status)
	if err != nil {
		return fmt.Errorf("provider repository: update status %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// UpdateAvailability меняет доступность исполнителя.
func (r *ProviderRepository) UpdateAvailability(ctx context.Context, id uuid.UUID, availability string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE providers SET availability = $2, updated_at = NOW() WHERE id = $1 AND deleted = false
	`, id, availability)
	if err != nil {
		return fmt.Errorf("provider repository: update availability %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// UpdateRatingAggregate записывает пересчитанные агрегаты рейтинга.
// Последняя запись побеждает: каждый пересчёт читает полный набор
// оценённых миссий на момент запуска.
func (r *ProviderRepository) UpdateRatingAggregate(ctx context.Context, id uuid.UUID, agg models.RatingAggregate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE providers SET average_rating = $2, mission_count = $3, success_rate = $4, updated_at = NOW()
		WHERE id = $1
	`, id, agg.AverageRating, agg.MissionCount, agg.SuccessRate)
	if err != nil {
		return fmt.Errorf("provider repository: update rating aggregate %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// SoftDelete помечает исполнителя удалённым.
func (r *ProviderRepository) SoftDelete(ctx context.Context, id uuid.UUID, actor string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE providers SET deleted = true, deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`, id, actor)
	if err != nil {
		return fmt.Errorf("provider repository: soft delete %w", err)
	}
	return checkAffected(res, ErrProviderNotFound)
}

// CountActive возвращает количество активных исполнителей.
func (r *ProviderRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM providers WHERE status = $1 AND deleted = false
	`, models.ProviderStatusActive)
	return count, err
}

// checkAffected преобразует нулевое число затронутых строк в notFoundErr.
func checkAffected(res sql.Result, notFoundErr error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFoundErr
	}
	return nil
}
