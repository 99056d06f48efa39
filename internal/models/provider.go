package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Provider описывает исполнителя услуг.
type Provider struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Ref             string         `db:"ref" json:"ref"`
	Email           string         `db:"email" json:"email"`
	CompanyName     *string        `db:"company_name" json:"company_name,omitempty"`
	ContactName     string         `db:"contact_name" json:"contact_name"`
	Specialties     pq.StringArray `db:"specialties" json:"specialties"`
	Countries       pq.StringArray `db:"countries" json:"countries"`
	ExperienceYears int            `db:"experience_years" json:"experience_years"`
	AverageRating   float64        `db:"average_rating" json:"average_rating"`
	MissionCount    int            `db:"mission_count" json:"mission_count"`
	SuccessRate     float64        `db:"success_rate" json:"success_rate"`
	Status          string         `db:"status" json:"status"`
	Availability    string         `db:"availability" json:"availability"`
	Deleted         bool           `db:"deleted" json:"deleted"`
	DeletedAt       *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy       *string        `db:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// RatingAggregate содержит пересчитанные агрегаты рейтинга исполнителя.
// Пишется только пересчётом в MissionService, никогда самим исполнителем.
type RatingAggregate struct {
	AverageRating float64 `json:"average_rating"`
	MissionCount  int     `json:"mission_count"`
	SuccessRate   float64 `json:"success_rate"`
}

// ProviderMissionStats агрегаты по миссиям исполнителя для пересчёта рейтинга.
type ProviderMissionStats struct {
	RatingSum      int `db:"rating_sum"`
	RatedCount     int `db:"rated_count"`
	MissionCount   int `db:"mission_count"`
	CompletedCount int `db:"completed_count"`
}

// HasSpecialty проверяет, есть ли у исполнителя указанная специальность.
func (p *Provider) HasSpecialty(category string) bool {
	for _, s := range p.Specialties {
		if s == category {
			return true
		}
	}
	return false
}

// OperatesIn проверяет, работает ли исполнитель в указанной стране.
func (p *Provider) OperatesIn(country string) bool {
	for _, c := range p.Countries {
		if c == country {
			return true
		}
	}
	return false
}
