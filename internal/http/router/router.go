package router

import (
	"github.com/gin-gonic/gin"

	"github.com/LeBoy2525/assist-backend/internal/config"
	"github.com/LeBoy2525/assist-backend/internal/http/handlers"
	"github.com/LeBoy2525/assist-backend/internal/http/middleware"
	"github.com/LeBoy2525/assist-backend/internal/models"
	"github.com/LeBoy2525/assist-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	requestHandler *handlers.RequestHandler,
	providerHandler *handlers.ProviderHandler,
	proposalHandler *handlers.ProposalHandler,
	missionHandler *handlers.MissionHandler,
	notificationHandler *handlers.NotificationHandler,
	statsHandler *handlers.StatsHandler,
	healthHandler *handlers.HealthHandler,
	wsHandler *handlers.WSHandler,
	seedHandler *handlers.SeedHandler,
	auth *service.AuthService,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Check)

	api := r.Group("/api")

	if seedHandler != nil && cfg.Env == "development" {
		api.POST("/seed", seedHandler.Seed)
	}

	// Аутентификация с жёстким лимитом на перебор паролей.
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты: заявка клиента и анкета исполнителя подаются
	// без авторизации, поэтому прикрыты лимитом на отправку.
	submitRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	api.POST("/requests", submitRateLimit, requestHandler.Create)
	api.POST("/providers", submitRateLimit, providerHandler.Register)

	api.GET("/ws", wsHandler.Connect)

	// Защищённые маршруты.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(auth))
	{
		adminOnly := middleware.RequireRoles(models.RoleAdmin)
		providerOnly := middleware.RequireRoles(models.RoleProvider)

		// Заявки.
		protected.GET("/requests", adminOnly, requestHandler.List)
		protected.GET("/requests/mine", requestHandler.ListMine)
		protected.GET("/requests/:id", middleware.UUIDValidator("id"), requestHandler.Get)
		protected.POST("/requests/:id/reject", middleware.UUIDValidator("id"), adminOnly, requestHandler.Reject)
		protected.DELETE("/requests/:id", middleware.UUIDValidator("id"), requestHandler.Delete)
		protected.GET("/requests/:id/match", middleware.UUIDValidator("id"), adminOnly, requestHandler.Match)
		protected.GET("/requests/:id/proposals", middleware.UUIDValidator("id"), adminOnly, proposalHandler.ListByRequest)
		protected.GET("/requests/:id/proposals/ranked", middleware.UUIDValidator("id"), adminOnly, proposalHandler.Rank)

		// Исполнители.
		protected.GET("/providers", adminOnly, providerHandler.List)
		protected.GET("/providers/:id", middleware.UUIDValidator("id"), providerHandler.Get)
		protected.POST("/providers/:id/status", middleware.UUIDValidator("id"), adminOnly, providerHandler.SetStatus)
		protected.POST("/providers/:id/availability", middleware.UUIDValidator("id"), providerHandler.SetAvailability)
		protected.DELETE("/providers/:id", middleware.UUIDValidator("id"), providerHandler.Delete)

		// Предложения.
		protected.POST("/proposals", providerOnly, proposalHandler.Submit)
		protected.GET("/proposals/mine", providerOnly, proposalHandler.ListMine)
		protected.GET("/proposals/:id", middleware.UUIDValidator("id"), proposalHandler.Get)
		protected.POST("/proposals/:id/refuse", middleware.UUIDValidator("id"), adminOnly, proposalHandler.Refuse)
		protected.POST("/proposals/:id/accept", middleware.UUIDValidator("id"), adminOnly, proposalHandler.Accept)

		// Миссии.
		protected.GET("/missions", missionHandler.List)
		protected.GET("/missions/ref/:ref", missionHandler.GetByRef)
		protected.GET("/missions/:id", middleware.UUIDValidator("id"), missionHandler.Get)
		protected.POST("/missions/:id/transition", middleware.UUIDValidator("id"), missionHandler.Transition)
		protected.POST("/missions/:id/progress", middleware.UUIDValidator("id"), providerOnly, missionHandler.UpdateProgress)
		protected.POST("/missions/:id/proofs", middleware.UUIDValidator("id"), missionHandler.UploadProof)
		protected.GET("/missions/:id/proofs", middleware.UUIDValidator("id"), missionHandler.ListProofs)
		protected.POST("/missions/:id/proofs/:proofId/validate", middleware.UUIDValidator("id"), middleware.UUIDValidator("proofId"), adminOnly, missionHandler.ValidateProof)
		protected.GET("/missions/:id/updates", middleware.UUIDValidator("id"), adminOnly, missionHandler.ListUpdates)

		// Уведомления.
		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)

		// Сводка.
		protected.GET("/stats", adminOnly, statsHandler.Get)
	}

	return r
}
