package models

// Роли участников платформы
const (
	RoleClient   = "client"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// RequestStatus константы статусов заявок
const (
	RequestStatusPending  = "pending"
	RequestStatusRejected = "rejected"
)

// ProviderStatus константы статусов исполнителей
const (
	ProviderStatusPending   = "pending"
	ProviderStatusActive    = "active"
	ProviderStatusSuspended = "suspended"
	ProviderStatusRejected  = "rejected"
)

// ProviderAvailability константы доступности исполнителя
const (
	ProviderAvailable   = "available"
	ProviderUnavailable = "unavailable"
)

// ProposalStatus константы статусов предложений
const (
	ProposalStatusPending  = "pending"
	ProposalStatusAccepted = "accepted"
	ProposalStatusRefused  = "refused"
)

// Внутренние состояния миссии. Порядок фиксирован, переходы возможны
// только по рёбрам машины состояний в MissionService.
const (
	MissionStateProviderEstimated    = "provider_estimated"
	MissionStateWaitingClientPayment = "waiting_client_payment"
	MissionStatePaidWaitingTakeover  = "paid_waiting_takeover"
	MissionStateAdvanceSent          = "advance_sent"
	MissionStateInProgress           = "in_progress"
	MissionStateAdminConfirmed       = "admin_confirmed"
	MissionStateCompleted            = "completed"
)

// Допустимые проценты аванса исполнителю
var ValidAdvancePercentages = map[int]struct{}{
	25:  {},
	50:  {},
	100: {},
}

// ValidMissionStates список валидных внутренних состояний миссии
var ValidMissionStates = map[string]struct{}{
	MissionStateProviderEstimated:    {},
	MissionStateWaitingClientPayment: {},
	MissionStatePaidWaitingTakeover:  {},
	MissionStateAdvanceSent:          {},
	MissionStateInProgress:           {},
	MissionStateAdminConfirmed:       {},
	MissionStateCompleted:            {},
}

// ValidProviderStatuses список валидных статусов исполнителя
var ValidProviderStatuses = map[string]struct{}{
	ProviderStatusPending:   {},
	ProviderStatusActive:    {},
	ProviderStatusSuspended: {},
	ProviderStatusRejected:  {},
}
