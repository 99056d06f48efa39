package models

import (
	"time"

	"github.com/google/uuid"
)

// Mission описывает финансово-операционный цикл работы по принятому предложению.
// Создаётся ровно один раз на принятое предложение и никогда не удаляется
// физически: archived и deleted — независимые мягкие маркеры.
type Mission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Ref         string    `db:"ref" json:"ref"`
	RequestID   uuid.UUID `db:"request_id" json:"request_id"`
	ProposalID  uuid.UUID `db:"proposal_id" json:"proposal_id"`
	ProviderID  uuid.UUID `db:"provider_id" json:"provider_id"`
	ClientEmail string    `db:"client_email" json:"client_email"`

	// Внутреннее состояние — единственный авторитетный статус миссии.
	// Публичный статус всегда выводится из него функцией PublicStatus.
	InternalState string `db:"internal_state" json:"internal_state"`

	// Смета и комиссия платформы
	DevisGenere     bool     `db:"devis_genere" json:"devis_genere"`
	ProviderRate    *float64 `db:"provider_rate" json:"provider_rate,omitempty"`
	CommissionHT    *float64 `db:"commission_ht" json:"commission_ht,omitempty"`
	CommissionTVA   *float64 `db:"commission_tva" json:"commission_tva,omitempty"`
	PrixTotalClient *float64 `db:"prix_total_client" json:"prix_total_client,omitempty"`

	// Платёжные вехи
	PaiementEffectue   bool       `db:"paiement_effectue" json:"paiement_effectue"`
	PaiementEffectueAt *time.Time `db:"paiement_effectue_at" json:"paiement_effectue_at,omitempty"`
	AvanceVersee       bool       `db:"avance_versee" json:"avance_versee"`
	AvanceVerseeAt     *time.Time `db:"avance_versee_at" json:"avance_versee_at,omitempty"`
	AvancePercentage   *int       `db:"avance_percentage" json:"avance_percentage,omitempty"`
	SoldeVersee        bool       `db:"solde_versee" json:"solde_versee"`
	SoldeVerseeAt      *time.Time `db:"solde_versee_at" json:"solde_versee_at,omitempty"`

	// Исполнение
	StartedAt               *time.Time `db:"started_at" json:"started_at,omitempty"`
	Deadline                *time.Time `db:"deadline" json:"deadline,omitempty"`
	ProgressPercent         int        `db:"progress_percent" json:"progress_percent"`
	AdminConfirmedAt        *time.Time `db:"admin_confirmed_at" json:"admin_confirmed_at,omitempty"`
	ProofValidatedForClient bool       `db:"proof_validated_for_client" json:"proof_validated_for_client"`

	// Закрытие: первый закрывший фиксируется в ClosedBy, повторное закрытие запрещено
	ClosedAt *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	ClosedBy *string    `db:"closed_by" json:"closed_by,omitempty"`

	// Оценки: клиент оценивает платформу, админ — исполнителя
	ClientRating   *int `db:"client_rating" json:"client_rating,omitempty"`
	ProviderRating *int `db:"provider_rating" json:"provider_rating,omitempty"`

	// Ортогональные фасеты жизненного цикла
	Archived   bool       `db:"archived" json:"archived"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	ArchivedBy *string    `db:"archived_by" json:"archived_by,omitempty"`
	Deleted    bool       `db:"deleted" json:"deleted"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy  *string    `db:"deleted_by" json:"deleted_by,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Публичные статусы миссии (витринные строки для клиента).
const (
	PublicStatusDevisEnPreparation = "devis_en_preparation"
	PublicStatusAttentePaiement    = "en_attente_paiement"
	PublicStatusPaiementRecu       = "paiement_recu"
	PublicStatusAvanceVersee       = "avance_versee"
	PublicStatusEnCours            = "en_cours"
	PublicStatusTravauxTermines    = "travaux_termines"
	PublicStatusSoldeVerse         = "solde_verse"
	PublicStatusTerminee           = "terminee"
)

// PublicStatus возвращает витринный статус миссии.
// Это чистая проекция внутреннего состояния (и для admin_confirmed —
// флага solde_versee); публичный статус нигде не хранится отдельно.
func (m *Mission) PublicStatus() string {
	switch m.InternalState {
	case MissionStateProviderEstimated:
		return PublicStatusDevisEnPreparation
	case MissionStateWaitingClientPayment:
		return PublicStatusAttentePaiement
	case MissionStatePaidWaitingTakeover:
		return PublicStatusPaiementRecu
	case MissionStateAdvanceSent:
		return PublicStatusAvanceVersee
	case MissionStateInProgress:
		return PublicStatusEnCours
	case MissionStateAdminConfirmed:
		if m.SoldeVersee {
			return PublicStatusSoldeVerse
		}
		return PublicStatusTravauxTermines
	case MissionStateCompleted:
		return PublicStatusTerminee
	}
	return m.InternalState
}

// Actionable сообщает, допускает ли миссия дальнейшие переходы.
func (m *Mission) Actionable() bool {
	return !m.Deleted
}

// IsParty проверяет, является ли участник стороной миссии.
func (m *Mission) IsParty(actor Actor) bool {
	switch actor.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleClient:
		return actor.Email == m.ClientEmail
	case RoleProvider:
		return actor.ProviderID != nil && *actor.ProviderID == m.ProviderID
	}
	return false
}

// MissionProof описывает загруженное доказательство выполнения работ.
type MissionProof struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	MissionID   uuid.UUID  `db:"mission_id" json:"mission_id"`
	FilePath    string     `db:"file_path" json:"file_path"`
	FileName    string     `db:"file_name" json:"file_name"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	UploadedBy  string     `db:"uploaded_by" json:"uploaded_by"`
	ValidatedAt *time.Time `db:"validated_at" json:"validated_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// MissionUpdate запись журнала действий по миссии (лента для админа).
type MissionUpdate struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MissionID uuid.UUID `db:"mission_id" json:"mission_id"`
	Actor     string    `db:"actor" json:"actor"`
	Action    string    `db:"action" json:"action"`
	Detail    *string   `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
