package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LeBoy2525/assist-backend/internal/dto"
	"github.com/LeBoy2525/assist-backend/internal/http/handlers/common"
	"github.com/LeBoy2525/assist-backend/internal/service"
	"github.com/LeBoy2525/assist-backend/internal/storage"
)

// MissionHandler обслуживает маршруты миссий: чтение, переходы
// жизненного цикла, прогресс, доказательства и журнал.
type MissionHandler struct {
	missions *service.MissionService
	queries  *service.MissionQueryService
	proofs   *storage.ProofStorage
}

func NewMissionHandler(missions *service.MissionService, queries *service.MissionQueryService, proofs *storage.ProofStorage) *MissionHandler {
	return &MissionHandler{missions: missions, queries: queries, proofs: proofs}
}

// Get обрабатывает GET /missions/:id.
func (h *MissionHandler) Get(c *gin.Context) {
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

	mission, err := h.queries.Get(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMissionResponse(mission))
}

// GetByRef обрабатывает GET /missions/ref/:ref.
func (h *MissionHandler) GetByRef(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	ref := c.Param("ref")
	if ref == "" {
		common.RespondError(c, http.StatusBadRequest, "номер миссии отсутствует")
		return
	}

	mission, err := h.queries.GetByRef(c.Request.Context(), ref, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMissionResponse(mission))
}

// List обрабатывает GET /missions. Видимость определяется ролью,
// архивные миссии включаются флагом include_archived=true.
func (h *MissionHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	includeArchived := c.Query("include_archived") == "true"

	missions, err := h.queries.List(c.Request.Context(), actor, includeArchived, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMissionListResponse(missions))
}

// Transition обрабатывает POST /missions/:id/transition: единая точка
// применения переходов жизненного цикла.
func (h *MissionHandler) Transition(c *gin.Context) {
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

	var req dto.MissionTransitionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	payload := service.TransitionPayload{
		PaymentRef:        req.PaymentRef,
		AdvancePercentage: req.AdvancePercentage,
		Rating:            req.Rating,
	}
	if req.Devis != nil {
		payload.Devis = &service.DevisInput{
			ProviderRate:  req.Devis.ProviderRate,
			CommissionHT:  req.Devis.CommissionHT,
			CommissionTVA: req.Devis.CommissionTVA,
		}
	}

	mission, err := h.missions.ApplyTransition(c.Request.Context(), id, service.TransitionType(req.Transition), actor, payload)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMissionResponse(mission))
}

// UpdateProgress обрабатывает POST /missions/:id/progress (исполнитель).
func (h *MissionHandler) UpdateProgress(c *gin.Context) {
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

	var req dto.UpdateProgressRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var deadline *time.Time
	if req.Deadline != nil && *req.Deadline != "" {
		parsed, err := time.Parse(time.RFC3339, *req.Deadline)
		if err != nil {
			common.RespondError(c, http.StatusBadRequest, "неверный формат срока, ожидается RFC3339")
			return
		}
		deadline = &parsed
	}

	mission, err := h.missions.UpdateProgress(c.Request.Context(), id, actor, req.ProgressPercent, deadline)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMissionResponse(mission))
}

// UploadProof обрабатывает POST /missions/:id/proofs (multipart).
// Файл сначала сохраняется на диск, затем регистрируется в хранилище.
func (h *MissionHandler) UploadProof(c *gin.Context) {
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

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "файл не передан")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	relPath, mimeType, size, err := h.proofs.Save(c.Request.Context(), id, fileHeader.Filename, src)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	proof, err := h.queries.AttachProof(c.Request.Context(), id, actor, service.AttachProofInput{
		FileName:  fileHeader.Filename,
		FilePath:  relPath,
		MimeType:  mimeType,
		SizeBytes: size,
	})
	if err != nil {
		// Файл уже на диске, но не зарегистрирован: подчищаем.
		_ = h.proofs.Delete(c.Request.Context(), relPath)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, proof)
}

// ListProofs обрабатывает GET /missions/:id/proofs.
func (h *MissionHandler) ListProofs(c *gin.Context) {
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

	proofs, err := h.queries.ListProofs(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, proofs)
}

// ValidateProof обрабатывает POST /missions/:id/proofs/:proofId/validate (админ).
func (h *MissionHandler) ValidateProof(c *gin.Context) {
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

	proofID, err := common.ParseUUIDParam(c, "proofId")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.queries.ValidateProof(c.Request.Context(), id, proofID, actor); err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "доказательство отмечено проверенным", nil)
}

// ListUpdates обрабатывает GET /missions/:id/updates (админ).
func (h *MissionHandler) ListUpdates(c *gin.Context) {
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

	updates, err := h.queries.ListUpdates(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, updates)
}
