package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LeBoy2525/assist-backend/internal/dto"
	"github.com/LeBoy2525/assist-backend/internal/http/handlers/common"
	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/service"
)

// RequestHandler обслуживает маршруты заявок клиентов.
type RequestHandler struct {
	requests *service.RequestService
	matching *service.MatchingService
}

func NewRequestHandler(requests *service.RequestService, matching *service.MatchingService) *RequestHandler {
	return &RequestHandler{requests: requests, matching: matching}
}

// Create обрабатывает POST /requests. Доступен без авторизации:
// заявку оставляет любой посетитель.
func (h *RequestHandler) Create(c *gin.Context) {
	var req dto.CreateRequestRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	request, err := h.requests.Create(c.Request.Context(), service.CreateRequestInput{
		ClientEmail: req.ClientEmail,
		ServiceType: req.ServiceType,
		Subcategory: req.Subcategory,
		Description: req.Description,
		Country:     req.Country,
		City:        req.City,
		Urgent:      req.Urgent,
		Budget:      req.Budget,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// Get обрабатывает GET /requests/:id.
func (h *RequestHandler) Get(c *gin.Context) {
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

	request, err := h.requests.Get(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// List обрабатывает GET /requests (админ).
func (h *RequestHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	requests, err := h.requests.List(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

// ListMine обрабатывает GET /requests/mine (клиент).
func (h *RequestHandler) ListMine(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	requests, err := h.requests.ListMine(c.Request.Context(), actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

// Reject обрабатывает POST /requests/:id/reject (админ).
func (h *RequestHandler) Reject(c *gin.Context) {
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

	request, err := h.requests.Reject(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// Delete обрабатывает DELETE /requests/:id.
func (h *RequestHandler) Delete(c *gin.Context) {
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

	if err := h.requests.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "заявка удалена", nil)
}

// Match обрабатывает GET /requests/:id/match (админ): подбор исполнителей,
// разделённый на предложенных (специальность совпала) и прочих.
func (h *RequestHandler) Match(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.matching.MatchProvidersForRequest(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.MatchResponse{
		Suggested: make([]models.MatchResult, 0, len(results)),
		Others:    make([]models.MatchResult, 0),
	}
	for _, r := range results {
		if r.Score > 0 {
			resp.Suggested = append(resp.Suggested, r)
		} else {
			resp.Others = append(resp.Others, r)
		}
	}

	c.JSON(http.StatusOK, resp)
}
