package dto

// RegisterRequest регистрация учётной записи.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// LoginRequest вход.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest обновление токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateRequestRequest новая заявка клиента.
type CreateRequestRequest struct {
	ClientEmail string   `json:"client_email" binding:"required"`
	ServiceType string   `json:"service_type" binding:"required"`
	Subcategory *string  `json:"subcategory"`
	Description string   `json:"description" binding:"required"`
	Country     string   `json:"country" binding:"required"`
	City        *string  `json:"city"`
	Urgent      bool     `json:"urgent"`
	Budget      *float64 `json:"budget"`
}

// RegisterProviderRequest анкета исполнителя.
type RegisterProviderRequest struct {
	Email           string   `json:"email" binding:"required"`
	CompanyName     *string  `json:"company_name"`
	ContactName     string   `json:"contact_name" binding:"required"`
	Specialties     []string `json:"specialties" binding:"required"`
	Countries       []string `json:"countries" binding:"required"`
	ExperienceYears int      `json:"experience_years"`
}

// SetProviderStatusRequest решение модерации.
type SetProviderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetAvailabilityRequest переключение доступности исполнителя.
type SetAvailabilityRequest struct {
	Availability string `json:"availability" binding:"required"`
}

// SubmitProposalRequest предложение исполнителя по заявке.
type SubmitProposalRequest struct {
	RequestID  string  `json:"request_id" binding:"required"`
	Price      float64 `json:"price" binding:"required"`
	DelayDays  int     `json:"delay_days" binding:"required"`
	Comment    *string `json:"comment"`
	Difficulty int     `json:"difficulty" binding:"required"`
}

// RefuseProposalRequest отклонение предложения админом.
type RefuseProposalRequest struct {
	Reason *string `json:"reason"`
}

// MissionTransitionRequest применение перехода к миссии.
type MissionTransitionRequest struct {
	Transition        string        `json:"transition" binding:"required"`
	Devis             *DevisRequest `json:"devis"`
	PaymentRef        string        `json:"payment_ref"`
	AdvancePercentage int           `json:"advance_percentage"`
	Rating            int           `json:"rating"`
}

// DevisRequest параметры сметы.
type DevisRequest struct {
	ProviderRate  float64 `json:"provider_rate" binding:"required"`
	CommissionHT  float64 `json:"commission_ht"`
	CommissionTVA float64 `json:"commission_tva"`
}

// UpdateProgressRequest обновление прогресса исполнителем.
type UpdateProgressRequest struct {
	ProgressPercent int     `json:"progress_percent"`
	Deadline        *string `json:"deadline"`
}
