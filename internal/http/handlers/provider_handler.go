package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LeBoy2525/assist-backend/internal/dto"
	"github.com/LeBoy2525/assist-backend/internal/http/handlers/common"
	"github.com/LeBoy2525/assist-backend/internal/service"
)

// ProviderHandler обслуживает маршруты исполнителей.
type ProviderHandler struct {
	providers *service.ProviderService
}

func NewProviderHandler(providers *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{providers: providers}
}

// Register обрабатывает POST /providers. Анкета подаётся без авторизации,
// до модерации исполнитель остаётся в статусе pending.
func (h *ProviderHandler) Register(c *gin.Context) {
	var req dto.RegisterProviderRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := h.providers.Register(c.Request.Context(), service.RegisterProviderInput{
		Email:           req.Email,
		CompanyName:     req.CompanyName,
		ContactName:     req.ContactName,
		Specialties:     req.Specialties,
		Countries:       req.Countries,
		ExperienceYears: req.ExperienceYears,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, provider)
}

// Get обрабатывает GET /providers/:id.
func (h *ProviderHandler) Get(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := h.providers.Get(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, provider)
}

// List обрабатывает GET /providers (админ).
func (h *ProviderHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	providers, err := h.providers.List(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, providers)
}

// SetStatus обрабатывает POST /providers/:id/status (модерация, админ).
func (h *ProviderHandler) SetStatus(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.SetProviderStatusRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := h.providers.SetStatus(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, provider)
}

// SetAvailability обрабатывает POST /providers/:id/availability.
func (h *ProviderHandler) SetAvailability(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.SetAvailabilityRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := h.providers.SetAvailability(c.Request.Context(), id, req.Availability, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, provider)
}

// Delete обрабатывает DELETE /providers/:id.
func (h *ProviderHandler) Delete(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.providers.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "профиль исполнителя удалён", nil)
}
