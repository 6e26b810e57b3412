package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/timetablepro/timetablepro-api/api/swagger"
	"github.com/timetablepro/timetablepro-api/internal/handler"
	"github.com/timetablepro/timetablepro-api/internal/middleware"
	"github.com/timetablepro/timetablepro-api/internal/models"
	"github.com/timetablepro/timetablepro-api/internal/repository"
	"github.com/timetablepro/timetablepro-api/internal/service"
	"github.com/timetablepro/timetablepro-api/pkg/cache"
	"github.com/timetablepro/timetablepro-api/pkg/config"
	"github.com/timetablepro/timetablepro-api/pkg/database"
	"github.com/timetablepro/timetablepro-api/pkg/jobs"
	"github.com/timetablepro/timetablepro-api/pkg/logger"
	corsmiddleware "github.com/timetablepro/timetablepro-api/pkg/middleware/cors"
	reqidmiddleware "github.com/timetablepro/timetablepro-api/pkg/middleware/requestid"
	"github.com/timetablepro/timetablepro-api/pkg/storage"
)

// @title TimeTablePro API
// @version 1.0.0
// @description School timetable management with conflict-checked scheduling
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Caching is an optimisation. The API stays up without Redis.
		logr.Sugar().Warnw("redis unavailable, timetable cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "timetablepro",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	roomService := service.NewRoomService(roomRepo, scheduleRepo, validate, logr)
	scheduleService := service.NewScheduleService(scheduleRepo, availabilityRepo, roomRepo, userRepo, cacheService, metricsService, cfg.Schedule, validate, logr)
	availabilityService := service.NewAvailabilityService(availabilityRepo, userRepo, cacheService, validate, logr)
	timetableService := service.NewTimetableService(scheduleRepo, availabilityRepo, roomRepo, userRepo, cacheService, cfg.Schedule, logr)

	var exportJobService *service.ExportJobService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		secret := cfg.Exports.SignedURLSecret
		if secret == "" {
			logr.Sugar().Warnw("EXPORTS_SIGNED_URL_SECRET unset, falling back to JWT secret")
			secret = cfg.JWT.Secret
		}
		signer := storage.NewSignedURLSigner(secret, cfg.Exports.SignedURLTTL)
		exportJobRepo := repository.NewExportJobRepository(db)
		exportService := service.NewExportService(timetableService, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)
		worker := service.NewExportWorker(exportJobRepo, exportService, cfg.Exports.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("timetable-exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(context.Background())
		defer exportQueue.Stop()

		exportJobService = service.NewExportJobService(exportJobRepo, exportQueue, exportService, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobService.RecoverPendingJobs(context.Background())
		exportJobService.StartCleanup(context.Background())
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roomHandler := handler.NewRoomHandler(roomService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	timetableHandler := handler.NewTimetableHandler(timetableService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		users.POST("", adminOnly, userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), userHandler.Get)
		users.PUT("/:id", adminOnly, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Deactivate)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", staff, userHandler.ListTeachers)
		teachers.GET("/:id/availability", staff, availabilityHandler.List)
		teachers.PUT("/:id/availability", middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), availabilityHandler.Replace)
		teachers.DELETE("/:id/availability", adminOnly, availabilityHandler.Clear)
	}

	rooms := protected.Group("/rooms")
	{
		rooms.GET("", roomHandler.List)
		rooms.GET("/:id", roomHandler.Get)
		rooms.POST("", adminOnly, roomHandler.Create)
		rooms.PUT("/:id", adminOnly, roomHandler.Update)
		rooms.DELETE("/:id", adminOnly, roomHandler.Delete)
	}

	schedules := protected.Group("/schedules")
	{
		schedules.GET("", scheduleHandler.List)
		schedules.GET("/:id", scheduleHandler.Get)
		schedules.POST("", adminOnly, scheduleHandler.Create)
		schedules.PUT("/:id", adminOnly, scheduleHandler.Update)
		schedules.DELETE("/:id", adminOnly, scheduleHandler.Delete)
		schedules.POST("/check", staff, scheduleHandler.Check)
	}

	timetables := protected.Group("/timetables")
	{
		timetables.GET("/teachers/:id", timetableHandler.ForTeacher)
		timetables.GET("/teachers/:id/export", timetableHandler.ExportTeacher)
		timetables.GET("/rooms/:id", timetableHandler.ForRoom)
		timetables.GET("/rooms/:id/export", timetableHandler.ExportRoom)
	}

	if exportJobService != nil {
		exportHandler := handler.NewExportHandler(exportJobService)
		timetables.POST("/exports", staff, exportHandler.Create)
		timetables.GET("/exports/:id", staff, exportHandler.Status)
		// Download is token-authenticated; the signed token stands in for a session.
		api.GET("/timetables/exports/download/:token", exportHandler.Download)
	}

	protected.GET("/metrics/snapshot", adminOnly, metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
