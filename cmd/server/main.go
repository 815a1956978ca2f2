package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/truecar-kr/truecar-backend/config"
	"github.com/truecar-kr/truecar-backend/internal/app/controller"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
	"github.com/truecar-kr/truecar-backend/internal/router"
	"github.com/truecar-kr/truecar-backend/internal/scheduler"
	"github.com/truecar-kr/truecar-backend/internal/storage"
	"github.com/truecar-kr/truecar-backend/internal/websocket"
	"github.com/truecar-kr/truecar-backend/pkg/logger"
	"github.com/truecar-kr/truecar-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting TRUECAR Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := db.SeedAdmins(db.GetDB(), cfg.Admin.SignupEmails); err != nil {
		logger.Warn("Failed to seed admin users", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Redis 없으면 프로세스 메모리로 대체 (단일 인스턴스 전용)
	var (
		markers service.ViewMarkerStore = service.NewMemoryViewMarkers()
		cache   service.PopularCache
	)
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory view markers", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redis.Close()
			markers = redis.NewViewMarkers(redis.GetClient())
			cache = redis.NewCache(redis.GetClient(), "truecar:reviews:")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Initialize repositories
	reviewRepo := repository.NewReviewRepository(db.GetDB())
	adminRepo := repository.NewAdminUserRepository(db.GetDB())
	accountRepo := repository.NewAccountRepository(db.GetDB())

	// Initialize services
	adminGate := service.NewAdminGate(adminRepo)
	authService := service.NewAuthService(
		accountRepo,
		adminGate,
		cfg.Admin.SignupEmails,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	reviewService := service.NewReviewService(reviewRepo, adminGate, service.ReviewServiceConfig{
		ReadTimeout:     cfg.Server.ReadTimeout,
		PopularCacheTTL: cfg.Views.PopularCacheTTL,
		Cache:           cache,
	})
	viewService := service.NewViewService(reviewRepo, service.ViewServiceConfig{
		DedupWindow:      cfg.Views.DedupWindow,
		IncrementTimeout: cfg.Views.IncrementTimeout,
		Markers:          markers,
		Publisher:        hub,
	})
	s3Storage := storage.NewS3Storage(ctx, cfg.S3)
	imageProcessor := storage.NewImageProcessor()
	uploadService := service.NewUploadService(s3Storage, imageProcessor, adminGate)

	// Initialize controllers
	authController := controller.NewAuthController(authService, adminGate)
	reviewController := controller.NewReviewController(reviewService, viewService, hub, cfg.CORS.AllowedOrigins)
	uploadController := controller.NewUploadController(uploadService, imageProcessor.MaxBytes)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authController,
		reviewController,
		uploadController,
		authMiddleware,
		adminGate,
		cfg,
	)
	engine := r.Setup()

	popularScheduler := scheduler.NewPopularScheduler(reviewService, scheduler.DefaultPopularSpec)
	if cache != nil {
		if err := popularScheduler.Start(); err != nil {
			logger.Warn("Popular review scheduler not started", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer popularScheduler.Stop()
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	logger.Info("Server stopped successfully")
}
