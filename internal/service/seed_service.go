package service

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/crypto/bcrypt"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/repository"
)

// SeedService генерирует фейковые данные для разработки.
type SeedService struct {
	users     *repository.UserRepository
	requests  *repository.RequestRepository
	providers *repository.ProviderRepository
	proposals *repository.ProposalRepository
}

func NewSeedService(
	users *repository.UserRepository,
	requests *repository.RequestRepository,
	providers *repository.ProviderRepository,
	proposals *repository.ProposalRepository,
) *SeedService {
	return &SeedService{
		users:     users,
		requests:  requests,
		providers: providers,
		proposals: proposals,
	}
}

// SeedAccount учётные данные сгенерированного аккаунта.
type SeedAccount struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// SeedResult итог генерации.
type SeedResult struct {
	Requests  int           `json:"requests"`
	Providers int           `json:"providers"`
	Proposals int           `json:"proposals"`
	Accounts  []SeedAccount `json:"accounts"`
}

const seedPassword = "Passw0rd!dev"

var (
	seedServiceTypes = []string{
		"plomberie", "electricite", "demenagement", "traduction",
		"assistance_administrative", "informatique", "menage", "btp", "transport",
	}
	seedCountries = []string{"FR", "BE", "CH", "LU", "DE", "ES", "MA", "SN"}
	seedCities    = []string{"Paris", "Lyon", "Bruxelles", "Genève", "Luxembourg", "Marseille", "Dakar", "Casablanca"}
	seedCompanies = []string{
		"Atlas Services", "Trans-Europe Assist", "Helvetia Pro", "Benelux Travaux",
		"Artisans Réunis", "ProServ International", "Confort Express",
	}
	seedContacts = []string{
		"Jean Dupont", "Marie Lambert", "Karim Benali", "Aminata Diallo",
		"Luca Moretti", "Sophie Muller", "Pavel Novak", "Fatima Zahra",
	}
)

// Seed наполняет базу заявками, исполнителями и предложениями.
// Повторный запуск добавляет новые данные поверх существующих.
func (s *SeedService) Seed(ctx context.Context, numRequests, numProviders int) (*SeedResult, error) {
	result := &SeedResult{}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed: хеширование пароля: %w", err)
	}

	// Учётки копятся и вставляются одной пачкой в конце; существующий
	// email при вставке пропускается, пароль у сидовых учёток всегда общий.
	accounts := []models.User{
		{Email: "admin@assist.dev", PasswordHash: string(hash), Role: models.RoleAdmin, IsActive: true},
	}

	providers := make([]*models.Provider, 0, numProviders)
	for i := 0; i < numProviders; i++ {
		company := seedCompanies[rand.Intn(len(seedCompanies))]
		specialties := pickDistinct(seedServiceTypes, 1+rand.Intn(3))
		countries := pickDistinct(seedCountries, 1+rand.Intn(3))

		provider := &models.Provider{
			Email:           fmt.Sprintf("provider%d@assist.dev", rand.Intn(1_000_000)),
			CompanyName:     &company,
			ContactName:     seedContacts[rand.Intn(len(seedContacts))],
			Specialties:     specialties,
			Countries:       countries,
			ExperienceYears: rand.Intn(20),
			Status:          models.ProviderStatusActive,
			Availability:    models.ProviderAvailable,
		}
		if err := s.providers.Create(ctx, provider); err != nil {
			return nil, fmt.Errorf("seed: создание исполнителя: %w", err)
		}
		providers = append(providers, provider)
		result.Providers++

		accounts = append(accounts, models.User{Email: provider.Email, PasswordHash: string(hash), Role: models.RoleProvider, IsActive: true})
	}

	for i := 0; i < numRequests; i++ {
		serviceType := seedServiceTypes[rand.Intn(len(seedServiceTypes))]
		city := seedCities[rand.Intn(len(seedCities))]
		budget := float64(100 + rand.Intn(5000))

		request := &models.Request{
			ClientEmail: fmt.Sprintf("client%d@assist.dev", rand.Intn(1_000_000)),
			ServiceType: serviceType,
			Category:    NormalizeCategory(serviceType),
			Description: fmt.Sprintf("Нужна помощь: %s, срочность умеренная, детали обсуждаемы.", serviceType),
			Country:     seedCountries[rand.Intn(len(seedCountries))],
			City:        &city,
			Urgent:      rand.Intn(4) == 0,
			Budget:      &budget,
			Status:      models.RequestStatusPending,
		}
		if err := s.requests.Create(ctx, request); err != nil {
			return nil, fmt.Errorf("seed: создание заявки: %w", err)
		}
		result.Requests++

		accounts = append(accounts, models.User{Email: request.ClientEmail, PasswordHash: string(hash), Role: models.RoleClient, IsActive: true})

		// Часть заявок сразу получает предложения.
		if len(providers) == 0 || rand.Intn(2) == 0 {
			continue
		}
		for _, provider := range pickProviders(providers, 1+rand.Intn(2)) {
			comment := "Готовы приступить на этой неделе."
			proposal := &models.Proposal{
				RequestID:  request.ID,
				ProviderID: provider.ID,
				Price:      float64(80 + rand.Intn(4000)),
				DelayDays:  1 + rand.Intn(30),
				Comment:    &comment,
				Difficulty: 1 + rand.Intn(5),
				Status:     models.ProposalStatusPending,
			}
			if err := s.proposals.Create(ctx, proposal); err != nil {
				// Дубликат пары (заявка, исполнитель) пропускается.
				continue
			}
			result.Proposals++
		}
	}

	if err := s.users.CreateBatch(ctx, accounts); err != nil {
		return nil, fmt.Errorf("seed: создание учёток: %w", err)
	}
	for _, account := range accounts {
		result.Accounts = append(result.Accounts, SeedAccount{Email: account.Email, Password: seedPassword, Role: account.Role})
	}

	return result, nil
}

func pickDistinct(pool []string, n int) []string {
	perm := rand.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, pool[idx])
	}
	return out
}

func pickProviders(pool []*models.Provider, n int) []*models.Provider {
	perm := rand.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]*models.Provider, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, pool[idx])
	}
	return out
}
