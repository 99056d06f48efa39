package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/repository"
)

func makeProvider(ref string, specialties, countries []string) models.Provider {
	return models.Provider{
		ID:          uuid.New(),
		Ref:         ref,
		Email:       ref + "@assist.dev",
		ContactName: "Контакт " + ref,
		Specialties: specialties,
		Countries:   countries,
		Status:      models.ProviderStatusActive,
	}
}

func makeRequest(serviceType, country string) *models.Request {
	return &models.Request{
		ID:          uuid.New(),
		Ref:         "DEM-2026-0001",
		ClientEmail: "client@assist.dev",
		ServiceType: serviceType,
		Country:     country,
		Status:      models.RequestStatusPending,
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "plomberie", NormalizeCategory("Plumbing"))
	assert.Equal(t, "plomberie", NormalizeCategory("  plombier "))
	assert.Equal(t, "btp", NormalizeCategory("renovation"))
	assert.Equal(t, "traduction", NormalizeCategory("INTERPRETARIAT"))
	// Неизвестный тип остаётся своим каноном в нижнем регистре.
	assert.Equal(t, "jardinage", NormalizeCategory("Jardinage"))
}

func TestMatchProviders_EligibilityFilter(t *testing.T) {
	request := makeRequest("plomberie", "FR")

	active := makeProvider("PRE-2026-0001", []string{"plomberie"}, []string{"FR"})
	pending := makeProvider("PRE-2026-0002", []string{"plomberie"}, []string{"FR"})
	pending.Status = models.ProviderStatusPending
	rejected := makeProvider("PRE-2026-0003", []string{"plomberie"}, []string{"FR"})
	rejected.Status = models.ProviderStatusRejected
	suspended := makeProvider("PRE-2026-0004", []string{"plomberie"}, []string{"FR"})
	suspended.Status = models.ProviderStatusSuspended
	deleted := makeProvider("PRE-2026-0005", []string{"plomberie"}, []string{"FR"})
	deleted.Deleted = true

	results := MatchProviders(request, []models.Provider{active, pending, rejected, suspended, deleted})

	refs := make([]string, 0, len(results))
	for _, r := range results {
		refs = append(refs, r.Provider.Ref)
	}
	assert.ElementsMatch(t, []string{"PRE-2026-0001", "PRE-2026-0002"}, refs)
}

func TestMatchProviders_SpecialtyGatesScore(t *testing.T) {
	request := makeRequest("electricite", "BE")

	// Исполнитель без нужной специальности: страна и опыт не спасают.
	wrongSpecialty := makeProvider("PRE-2026-0001", []string{"menage"}, []string{"BE"})
	wrongSpecialty.ExperienceYears = 15
	wrongSpecialty.SuccessRate = 100

	matching := makeProvider("PRE-2026-0002", []string{"electricite"}, []string{"CH"})

	results := MatchProviders(request, []models.Provider{wrongSpecialty, matching})

	assert.Len(t, results, 2)
	assert.Equal(t, "PRE-2026-0002", results[0].Provider.Ref)
	assert.Equal(t, 50.0, results[0].Score)
	assert.Equal(t, "PRE-2026-0001", results[1].Provider.Ref)
	assert.Equal(t, 0.0, results[1].Score)
	assert.Empty(t, results[1].Reasons)
}

func TestMatchProviders_ScoreComposition(t *testing.T) {
	request := makeRequest("plumbing", "FR")

	full := makeProvider("PRE-2026-0001", []string{"plomberie"}, []string{"FR", "BE"})
	full.SuccessRate = 80
	full.ExperienceYears = 5

	results := MatchProviders(request, []models.Provider{full})

	assert.Len(t, results, 1)
	// 50 за специальность + 20 за страну + 20*0.8 + 10*0.5.
	assert.InDelta(t, 50+20+16+5, results[0].Score, 1e-9)
	assert.Len(t, results[0].Reasons, 4)
}

func TestMatchProviders_ExperienceCap(t *testing.T) {
	request := makeRequest("plomberie", "FR")

	veteran := makeProvider("PRE-2026-0001", []string{"plomberie"}, nil)
	veteran.ExperienceYears = 30
	capped := makeProvider("PRE-2026-0002", []string{"plomberie"}, nil)
	capped.ExperienceYears = 10

	results := MatchProviders(request, []models.Provider{veteran, capped})

	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestMatchProviders_MonotonicOrder(t *testing.T) {
	request := makeRequest("demenagement", "LU")

	base := makeProvider("PRE-2026-0003", []string{"demenagement"}, nil)
	withGeo := makeProvider("PRE-2026-0002", []string{"demenagement"}, []string{"LU"})
	withGeoAndRate := makeProvider("PRE-2026-0001", []string{"demenagement"}, []string{"LU"})
	withGeoAndRate.SuccessRate = 90

	results := MatchProviders(request, []models.Provider{base, withGeo, withGeoAndRate})

	assert.Equal(t, "PRE-2026-0001", results[0].Provider.Ref)
	assert.Equal(t, "PRE-2026-0002", results[1].Provider.Ref)
	assert.Equal(t, "PRE-2026-0003", results[2].Provider.Ref)
	assert.True(t, results[0].Score > results[1].Score)
	assert.True(t, results[1].Score > results[2].Score)
}

func TestMatchProviders_TieBreakByRef(t *testing.T) {
	request := makeRequest("menage", "FR")

	second := makeProvider("PRE-2026-0002", []string{"menage"}, []string{"FR"})
	first := makeProvider("PRE-2026-0001", []string{"menage"}, []string{"FR"})

	results := MatchProviders(request, []models.Provider{second, first})

	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "PRE-2026-0001", results[0].Provider.Ref)
}

type fakeRequestRepoForMatching struct {
	requests map[uuid.UUID]*models.Request
}

func (f *fakeRequestRepoForMatching) GetByID(_ context.Context, id uuid.UUID) (*models.Request, error) {
	if r, ok := f.requests[id]; ok {
		return r, nil
	}
	return nil, repository.ErrRequestNotFound
}

type fakeProviderRepoForMatching struct {
	providers []models.Provider
}

func (f *fakeProviderRepoForMatching) ListEligible(_ context.Context) ([]models.Provider, error) {
	return f.providers, nil
}

func TestMatchingService_DeletedRequestHidden(t *testing.T) {
	request := makeRequest("plomberie", "FR")
	request.Deleted = true

	svc := NewMatchingService(
		&fakeRequestRepoForMatching{requests: map[uuid.UUID]*models.Request{request.ID: request}},
		&fakeProviderRepoForMatching{},
	)

	_, err := svc.MatchProvidersForRequest(context.Background(), request.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "заявка не найдена")
}
