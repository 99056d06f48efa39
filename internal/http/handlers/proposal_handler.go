package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LeBoy2525/assist-backend/internal/dto"
	"github.com/LeBoy2525/assist-backend/internal/http/handlers/common"
	"github.com/LeBoy2525/assist-backend/internal/service"
)

// ProposalHandler обслуживает маршруты предложений исполнителей.
type ProposalHandler struct {
	proposals *service.ProposalService
	missions  *service.MissionService
	ranking   *service.RankingService
}

func NewProposalHandler(proposals *service.ProposalService, missions *service.MissionService, ranking *service.RankingService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, missions: missions, ranking: ranking}
}

// Submit обрабатывает POST /proposals (исполнитель).
func (h *ProposalHandler) Submit(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req dto.SubmitProposalRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, common.ErrInvalidUUID.Error())
		return
	}

	proposal, err := h.proposals.Submit(c.Request.Context(), actor, service.SubmitProposalInput{
		RequestID:  requestID,
		Price:      req.Price,
		DelayDays:  req.DelayDays,
		Comment:    req.Comment,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

// Get обрабатывает GET /proposals/:id.
func (h *ProposalHandler) Get(c *gin.Context) {
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

	proposal, err := h.proposals.Get(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// ListByRequest обрабатывает GET /requests/:id/proposals (админ).
func (h *ProposalHandler) ListByRequest(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	proposals, err := h.proposals.ListByRequest(c.Request.Context(), requestID, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, proposals)
}

// Rank обрабатывает GET /requests/:id/proposals/ranked (админ):
// действующие предложения по заявке, упорядоченные по составному баллу.
func (h *ProposalHandler) Rank(c *gin.Context) {
	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	scores, err := h.ranking.RankProposalsForRequest(c.Request.Context(), requestID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, scores)
}

// ListMine обрабатывает GET /proposals/mine (исполнитель).
func (h *ProposalHandler) ListMine(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	proposals, err := h.proposals.ListMine(c.Request.Context(), actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, proposals)
}

// Refuse обрабатывает POST /proposals/:id/refuse (админ).
func (h *ProposalHandler) Refuse(c *gin.Context) {
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

	var req dto.RefuseProposalRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.proposals.Refuse(c.Request.Context(), id, req.Reason, actor); err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "предложение отклонено", nil)
}

// Accept обрабатывает POST /proposals/:id/accept (админ): принятие
// предложения с созданием миссии в одной транзакции.
func (h *ProposalHandler) Accept(c *gin.Context) {
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

	mission, err := h.missions.CreateFromAcceptedProposal(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewMissionResponse(mission))
}
