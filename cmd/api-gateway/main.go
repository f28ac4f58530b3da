package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/asp-booking-api/internal/events"
	"github.com/noah-isme/asp-booking-api/internal/handler"
	"github.com/noah-isme/asp-booking-api/internal/middleware"
	"github.com/noah-isme/asp-booking-api/internal/models"
	"github.com/noah-isme/asp-booking-api/internal/repository"
	"github.com/noah-isme/asp-booking-api/internal/service"
	"github.com/noah-isme/asp-booking-api/pkg/cache"
	"github.com/noah-isme/asp-booking-api/pkg/config"
	"github.com/noah-isme/asp-booking-api/pkg/database"
	"github.com/noah-isme/asp-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/asp-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/asp-booking-api/pkg/middleware/requestid"
)

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

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and pub/sub disabled", "error", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var delegate events.Publisher
	if redisClient != nil {
		delegate = events.NewRedisPublisher(redisClient, cfg.Events.Channel, cfg.Events.CriticalStream)
	} else {
		delegate = events.NewLogPublisher(logr)
	}
	publisher := events.NewAsyncPublisher(delegate, events.AsyncConfig{
		Workers:   cfg.Events.DispatchWorkers,
		Buffer:    cfg.Events.DispatchBuffer,
		Retries:   cfg.Events.DispatchRetries,
		RetryWait: cfg.Events.DispatchRetryWait,
		Logger:    logr,
	})
	publisher.Start(context.Background())
	defer publisher.Stop()

	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	childRepo := repository.NewChildRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Roster.CacheTTL, logr, cfg.Roster.CacheEnabled)
	}

	sessionSvc := service.NewSessionService(sessionRepo, publisher, validate, metricsSvc, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, childRepo, publisher, cacheSvc, validate, metricsSvc, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(attendanceSvc, logr)
	}

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		manage := middleware.RequireRoles(models.StaffRoleProvider, models.StaffRoleAdmin)

		api.POST("/sessions", manage, sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.POST("/sessions/:id/start", sessionHandler.Start)
		api.POST("/sessions/:id/complete", sessionHandler.Complete)
		api.POST("/sessions/:id/cancel", manage, sessionHandler.Cancel)

		api.GET("/sessions/:id/roster", attendanceHandler.Roster)
		api.GET("/sessions/:id/attendance", attendanceHandler.ListBySession)
		api.POST("/sessions/:id/attendance/check-in", attendanceHandler.CheckIn)
		api.POST("/sessions/:id/attendance/check-out", attendanceHandler.CheckOut)
		api.POST("/sessions/:id/attendance/absent", attendanceHandler.MarkAbsent)
		api.POST("/sessions/:id/attendance/excused", attendanceHandler.MarkExcused)
		api.POST("/sessions/:id/attendance/submit", manage, attendanceHandler.Submit)
		api.GET("/sessions/:id/attendance/export", attendanceHandler.ExportSheet)

		api.GET("/children/:childId/attendance", attendanceHandler.ListByChild)
		api.GET("/parents/:parentId/attendance", attendanceHandler.ListByParent)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
