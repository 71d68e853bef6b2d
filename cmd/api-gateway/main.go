package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/escolaris/academia-api/api/swagger"
	"github.com/escolaris/academia-api/internal/events"
	"github.com/escolaris/academia-api/internal/handler"
	"github.com/escolaris/academia-api/internal/middleware"
	"github.com/escolaris/academia-api/internal/models"
	"github.com/escolaris/academia-api/internal/repository"
	"github.com/escolaris/academia-api/internal/service"
	"github.com/escolaris/academia-api/pkg/cache"
	"github.com/escolaris/academia-api/pkg/config"
	"github.com/escolaris/academia-api/pkg/database"
	"github.com/escolaris/academia-api/pkg/logger"
	corsmiddleware "github.com/escolaris/academia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/escolaris/academia-api/pkg/middleware/requestid"
)

// @title Academia API
// @version 1.0.0
// @description Academic performance and gamification engine
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	clock := service.SystemClock()
	bus := events.NewBus(logr)
	metricsSvc := service.NewMetricsService()

	bus.Subscribe(models.EventStudentLeveledUp, func(ctx context.Context, event models.Event) {
		metricsSvc.CountLevelUp()
	})

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)

	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration, clock)
	recalcSvc := service.NewRecalcService(enrollmentRepo, gradeRepo, cfg.Grading, cfg.Recalc, logr)
	recalcSvc.ObserveOutcomes(metricsSvc.CountRecalc)
	recalcSvc.Start(ctx)
	defer recalcSvc.Stop()

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, recalcSvc, bus, validate, logr, clock)
	gradeSvc := service.NewGradeService(gradeRepo, recalcSvc, bus, cfg.Grading, validate, logr, clock)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, enrollmentSvc, logr, clock)
	gamificationSvc := service.NewGamificationService(pointsRepo, badgeRepo, bus, cfg.Gamification, validate, logr, clock)
	rankingSvc := service.NewRankingService(
		pointsRepo,
		cache.NewScopeLock(redisClient, cfg.Rankings.LockTTL),
		cache.NewLeaderboardCache(redisClient, cfg.Rankings.CacheTTL),
		logr, clock)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, attendanceSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	gamificationHandler := handler.NewGamificationHandler(gamificationSvc, metricsSvc)
	rankingHandler := handler.NewRankingHandler(rankingSvc, metricsSvc)
	recalcHandler := handler.NewRecalcHandler(recalcSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	{
		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Create)
		api.GET("/enrollments/:id", enrollmentHandler.Get)
		api.POST("/enrollments/:id/withdraw", enrollmentHandler.Withdraw)
		api.POST("/enrollments/:id/reactivate", enrollmentHandler.Reactivate)
		api.POST("/enrollments/:id/transfer", enrollmentHandler.Transfer)
		api.POST("/enrollments/:id/finalize",
			middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), enrollmentHandler.Finalize)
		api.PUT("/enrollments/:id/attendance", enrollmentHandler.RecordAttendance)
		api.POST("/enrollments/:id/attendance/sync", enrollmentHandler.SyncAttendance)
		api.GET("/enrollments/:id/grades", gradeHandler.ListByEnrollment)
		api.POST("/enrollments/:id/recalculate", recalcHandler.Enrollment)

		api.POST("/grades", gradeHandler.Capture)
		api.GET("/grades/:id", gradeHandler.Get)
		api.POST("/grades/:id/regrade", gradeHandler.Regrade)
		api.GET("/grades/:id/history", gradeHandler.History)
		api.POST("/grades/:id/lock",
			middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), gradeHandler.Lock)
		api.POST("/groups/:groupId/periods/:period/lock",
			middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), gradeHandler.LockPeriod)

		api.GET("/students/:studentId/points", gamificationHandler.Profile)
		api.GET("/students/:studentId/points/history", gamificationHandler.History)
		api.GET("/students/:studentId/badges", gamificationHandler.Badges)
		api.POST("/points/awards", gamificationHandler.AwardPoints)
		api.PUT("/points/streaks", gamificationHandler.UpdateStreak)
		api.POST("/badges/awards", gamificationHandler.AwardBadge)

		api.GET("/rankings/:scope/:scopeId", rankingHandler.Leaderboard)
		api.POST("/rankings/:scope/:scopeId/recompute", rankingHandler.Recompute)

		api.POST("/cycles/:cycleId/recalculate",
			middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), recalcHandler.Cycle)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
