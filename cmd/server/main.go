package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veloplan/training-app/internal/api"
	"veloplan/training-app/internal/cache"
	"veloplan/training-app/internal/config"
	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/logging"
	"veloplan/training-app/internal/metrics"
	"veloplan/training-app/internal/provider"
	"veloplan/training-app/internal/repository/mongo"
	"veloplan/training-app/internal/scheduler"
	"veloplan/training-app/internal/service"
	"veloplan/training-app/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title Training Plan API
// @version 1.0
// @description API for athlete profiles, training plans, the workout calendar, and provider sync.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	// --- Logging ---
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("starting training app server", zap.String("address", cfg.Server.Address))

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		logger.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established", zap.String("database", cfg.Database.Name))

	// --- Ensure Indexes ---
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureProfileIndexes(ctx, appDB.Collection("profiles"))
		mongo.EnsureTrainingPlanIndexes(ctx, appDB.Collection("training_plans"))
		mongo.EnsureLibraryWorkoutIndexes(ctx, appDB.Collection("library_workouts"))
		mongo.EnsurePlanInstanceIndexes(ctx, appDB.Collection("plan_instances"))
		mongo.EnsureScheduledWorkoutIndexes(ctx, appDB.Collection("scheduled_workouts"))
		mongo.EnsureActivityIndexes(ctx, appDB.Collection("activities"))
		mongo.EnsureConnectionIndexes(ctx, appDB.Collection("connections"))
		mongo.EnsureFileIndexes(ctx, appDB.Collection("files"))
		logger.Info("index creation process completed")
	}()

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3, logger)
	if err != nil {
		logger.Fatal("failed to initialize S3 storage", zap.Error(err))
	}

	// --- OAuth State Store ---
	stateStore := cache.NewRedisStateStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := stateStore.Ping(ctx); err != nil {
			// Provider connect flows fail until Redis returns; everything
			// else keeps working.
			logger.Warn("redis unreachable", zap.String("address", cfg.Redis.Address), zap.Error(err))
		}
		cancel()
	}

	// --- Provider Clients ---
	providers := provider.Registry{}
	if cfg.Strava.ClientID != "" {
		providers[domain.ProviderStrava] = provider.NewStravaClient(cfg.Strava)
		logger.Info("provider configured", zap.String("provider", "strava"))
	}
	if cfg.TrainingPeaks.ClientID != "" {
		providers[domain.ProviderTrainingPeaks] = provider.NewTrainingPeaksClient(cfg.TrainingPeaks)
		logger.Info("provider configured", zap.String("provider", "trainingpeaks"))
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	profileRepo := mongo.NewMongoProfileRepository(appDB)
	planRepo := mongo.NewMongoTrainingPlanRepository(appDB)
	libraryRepo := mongo.NewMongoLibraryWorkoutRepository(appDB)
	instanceRepo := mongo.NewMongoPlanInstanceRepository(appDB)
	workoutRepo := mongo.NewMongoScheduledWorkoutRepository(appDB)
	activityRepo := mongo.NewMongoActivityRepository(appDB)
	connectionRepo := mongo.NewMongoConnectionRepository(appDB)
	fileRepo := mongo.NewMongoFileRepository(appDB)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, logger)
	profileService := service.NewProfileService(profileRepo)
	planService := service.NewPlanService(planRepo, libraryRepo)
	scheduleService := service.NewScheduleService(instanceRepo, workoutRepo, planRepo, libraryRepo, activityRepo, userRepo, logger)
	activityService := service.NewActivityService(activityRepo, fileRepo, fileStorage, scheduleService, logger)
	connectionService := service.NewConnectionService(connectionRepo, activityRepo, scheduleService, providers, stateStore, logger)
	adminService := service.NewAdminService(userRepo, logger)

	// --- Seed Admin Account ---
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Error("admin seeding failed", zap.Error(err))
		}
		cancel()
	}

	// --- Background Jobs ---
	jobs := scheduler.New(logger)
	if err := jobs.Add(cfg.Sync.TokenRefreshSpec, "token-refresh", connectionService.RefreshExpiring); err != nil {
		logger.Fatal("invalid token refresh schedule", zap.Error(err))
	}
	if err := jobs.Add(cfg.Sync.RematchSpec, "rematch-sweep", scheduleService.RematchSweep); err != nil {
		logger.Fatal("invalid rematch schedule", zap.Error(err))
	}
	jobs.Start()

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger), metrics.Middleware())

	// --- Setup Routes ---
	api.SetupRoutes(
		router,
		cfg.JWT.Secret,
		cfg.Strava.WebhookSecret,
		logger,
		authService,
		profileService,
		planService,
		scheduleService,
		activityService,
		connectionService,
		adminService,
	)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen and serve error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := jobs.Stop(ctxShutdown); err != nil {
		logger.Error("background jobs did not finish in time", zap.Error(err))
	}

	logger.Info("server exiting")
}
