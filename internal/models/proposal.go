package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal представляет ценовое предложение исполнителя по заявке.
// На пару (заявка, исполнитель) допускается не более одного предложения
// в статусе pending; по заявке может быть принято ровно одно предложение.
type Proposal struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Ref           string     `db:"ref" json:"ref"`
	RequestID     uuid.UUID  `db:"request_id" json:"request_id"`
	ProviderID    uuid.UUID  `db:"provider_id" json:"provider_id"`
	Price         float64    `db:"price" json:"price"`
	DelayDays     int        `db:"delay_days" json:"delay_days"`
	Comment       *string    `db:"comment" json:"comment,omitempty"`
	Difficulty    int        `db:"difficulty" json:"difficulty"`
	Status        string     `db:"status" json:"status"`
	RefusalReason *string    `db:"refusal_reason" json:"refusal_reason,omitempty"`
	AcceptedAt    *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	RefusedAt     *time.Time `db:"refused_at" json:"refused_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ProposalScore результат ранжирования предложения для админа.
type ProposalScore struct {
	Proposal        Proposal `json:"proposal"`
	PriceScore      float64  `json:"price_score"`
	DelayScore      float64  `json:"delay_score"`
	RatingScore     float64  `json:"rating_score"`
	DifficultyScore float64  `json:"difficulty_score"`
	Composite       float64  `json:"composite"`
}

// MatchResult результат подбора исполнителя под заявку.
type MatchResult struct {
	Provider Provider `json:"provider"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
}
