package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification запись в ленте уведомлений пользователя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// События жизненного цикла, рассылаемые участникам.
const (
	EventProposalSubmitted = "proposal.submitted"
	EventProposalAccepted  = "proposal.accepted"
	EventProposalRefused   = "proposal.refused"
	EventMissionCreated    = "mission.created"
	EventDevisGenere       = "mission.devis_genere"
	EventPaymentConfirmed  = "mission.payment_confirmed"
	EventAdvanceSent       = "mission.advance_sent"
	EventMissionStarted    = "mission.started"
	EventMissionConfirmed  = "mission.confirmed"
	EventBalancePaid       = "mission.balance_paid"
	EventMissionClosed     = "mission.closed"
	EventMissionRated      = "mission.rated"
)
