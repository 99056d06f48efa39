package models

import (
	"time"

	"github.com/google/uuid"
)

// Request описывает заявку клиента на услугу.
// Создаётся клиентом; после создания меняется только админом (отклонение)
// или системой (мягкое удаление).
type Request struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Ref         string     `db:"ref" json:"ref"`
	ClientEmail string     `db:"client_email" json:"client_email"`
	ServiceType string     `db:"service_type" json:"service_type"`
	Category    string     `db:"category" json:"category"`
	Subcategory *string    `db:"subcategory" json:"subcategory,omitempty"`
	Description string     `db:"description" json:"description"`
	Country     string     `db:"country" json:"country"`
	City        *string    `db:"city" json:"city,omitempty"`
	Urgent      bool       `db:"urgent" json:"urgent"`
	Budget      *float64   `db:"budget" json:"budget,omitempty"`
	Status      string     `db:"status" json:"status"`
	Deleted     bool       `db:"deleted" json:"deleted"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy   *string    `db:"deleted_by" json:"deleted_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
