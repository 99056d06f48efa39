package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LeBoy2525/assist-backend/internal/http/handlers/common"
	"github.com/LeBoy2525/assist-backend/internal/service"
)

// SeedHandler генерация фейковых данных. Подключается только в development.
type SeedHandler struct {
	seed *service.SeedService
}

func NewSeedHandler(seed *service.SeedService) *SeedHandler {
	return &SeedHandler{seed: seed}
}

// Seed обрабатывает POST /seed?requests=20&providers=10.
func (h *SeedHandler) Seed(c *gin.Context) {
	numRequests := common.ParseIntQuery(c, "requests", 20)
	numProviders := common.ParseIntQuery(c, "providers", 10)
	if numRequests < 1 || numRequests > 500 || numProviders < 1 || numProviders > 200 {
		common.RespondError(c, http.StatusBadRequest, "допустимо 1..500 заявок и 1..200 исполнителей")
		return
	}

	result, err := h.seed.Seed(c.Request.Context(), numRequests, numProviders)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
