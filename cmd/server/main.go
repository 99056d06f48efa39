package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LeBoy2525/assist-backend/internal/config"
	"github.com/LeBoy2525/assist-backend/internal/db"
	"github.com/LeBoy2525/assist-backend/internal/goroutine"
	httpHandlers "github.com/LeBoy2525/assist-backend/internal/http/handlers"
	httpRouter "github.com/LeBoy2525/assist-backend/internal/http/router"
	"github.com/LeBoy2525/assist-backend/internal/logger"
	"github.com/LeBoy2525/assist-backend/internal/payment"
	"github.com/LeBoy2525/assist-backend/internal/repository"
	"github.com/LeBoy2525/assist-backend/internal/service"
	"github.com/LeBoy2525/assist-backend/internal/storage"
	"github.com/LeBoy2525/assist-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	proofStorage, err := storage.NewProofStorage(cfg.ProofStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	requestRepo := repository.NewRequestRepository(dbConn)
	providerRepo := repository.NewProviderRepository(dbConn)
	proposalRepo := repository.NewProposalRepository(dbConn)
	missionRepo := repository.NewMissionRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Сервисы.
	authService := service.NewAuthService(userRepo, providerRepo, tokenManager)
	requestService := service.NewRequestService(requestRepo)
	providerService := service.NewProviderService(providerRepo)
	proposalService := service.NewProposalService(proposalRepo, requestRepo, providerRepo)
	matchingService := service.NewMatchingService(requestRepo, providerRepo)
	rankingService := service.NewRankingService(proposalRepo, providerRepo)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, providerRepo, hub)
	statsService := service.NewStatsService(requestRepo, providerRepo, missionRepo)
	seedService := service.NewSeedService(userRepo, requestRepo, providerRepo, proposalRepo)

	var paymentConfirmer service.PaymentConfirmer
	if cfg.PaymentConfirmURL != "" {
		paymentConfirmer = payment.NewClient(cfg.PaymentConfirmURL)
	} else {
		paymentConfirmer = payment.NoopConfirmer{}
	}

	missionService := service.NewMissionService(
		missionRepo, proposalRepo, requestRepo, providerRepo,
		paymentConfirmer, notificationService,
		service.MissionServiceConfig{
			AutoCloseGrace:   cfg.AutoCloseGrace,
			ArchiveRetention: cfg.ArchiveRetention,
		},
	)
	missionQueryService := service.NewMissionQueryService(missionRepo)

	// Фоновое автозакрытие подтверждённых миссий.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		runAutoClose(ctx, missionService)
	})

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	requestHandler := httpHandlers.NewRequestHandler(requestService, matchingService)
	providerHandler := httpHandlers.NewProviderHandler(providerService)
	proposalHandler := httpHandlers.NewProposalHandler(proposalService, missionService, rankingService)
	missionHandler := httpHandlers.NewMissionHandler(missionService, missionQueryService, proofStorage)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	statsHandler := httpHandlers.NewStatsHandler(statsService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	wsHandler := httpHandlers.NewWSHandler(hub, authService, cfg.AllowedOrigins)

	var seedHandler *httpHandlers.SeedHandler
	if cfg.Env == "development" {
		seedHandler = httpHandlers.NewSeedHandler(seedService)
	}

	engine := httpRouter.SetupRouter(
		cfg,
		authHandler, requestHandler, providerHandler, proposalHandler,
		missionHandler, notificationHandler, statsHandler, healthHandler,
		wsHandler, seedHandler,
		authService,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// runAutoClose раз в час закрывает миссии, по которым всё выплачено и
// проверено, а льготный период истёк.
func runAutoClose(ctx context.Context, missions *service.MissionService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			closed, err := missions.AutoCloseEligibleMissions(ctx, now)
			if err != nil {
				logger.Log.WithError(err).Error("автозакрытие миссий завершилось с ошибкой")
				continue
			}
			if closed > 0 {
				logger.Log.WithField("closed", closed).Info("миссии закрыты автоматически")
			}
		}
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
