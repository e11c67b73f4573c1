package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/aulafit/checkin-api/api/swagger"
	"github.com/aulafit/checkin-api/internal/handler"
	"github.com/aulafit/checkin-api/internal/middleware"
	"github.com/aulafit/checkin-api/internal/models"
	"github.com/aulafit/checkin-api/internal/repository"
	"github.com/aulafit/checkin-api/internal/service"
	"github.com/aulafit/checkin-api/pkg/cache"
	"github.com/aulafit/checkin-api/pkg/config"
	"github.com/aulafit/checkin-api/pkg/database"
	"github.com/aulafit/checkin-api/pkg/logger"
	corsmiddleware "github.com/aulafit/checkin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/aulafit/checkin-api/pkg/middleware/requestid"
)

// @title AulaFit Check-in API
// @version 1.0.0
// @description Class scheduling and enrollment check-in service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.Database.Name); err != nil {
		logr.Sugar().Fatalw("failed to apply migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, class list caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr, metricsSvc)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "checkin-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, cacheRepo, validate, logr, service.ClassConfig{
		WindowDays:        cfg.Classes.WindowDays,
		CacheTTL:          cfg.Classes.CacheTTL,
		MaxImageSizeBytes: cfg.Uploads.MaxImageSizeBytes,
		AllowedMIMEs:      cfg.Uploads.AllowedMIMEs,
	})
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, validate, logr, service.EnrollmentConfig{
		MaxPerClass:        cfg.Enrollment.MaxPerClass,
		CancelCutoff:       cfg.Enrollment.CancelCutoff,
		ClearRestoresSeats: cfg.Enrollment.ClearRestoresSeats,
	})
	reportSvc := service.NewReportService(enrollmentRepo, classRepo, logr, cfg.Enrollment.DisplayTimezone)

	authHandler := handler.NewAuthHandler(authSvc, handler.CookieConfig{
		Name:   cfg.JWT.CookieName,
		MaxAge: cfg.JWT.Expiration,
		Secure: cfg.Env == config.EnvProduction,
	})
	userHandler := handler.NewUserHandler(userSvc)
	classHandler := handler.NewClassHandler(classSvc, reportSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, metricsSvc)
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

	requireAuth := middleware.JWT(authSvc, cfg.JWT.CookieName)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		classes := api.Group("/classes", requireAuth)
		{
			classes.GET("", classHandler.List)
			classes.GET("/:id", classHandler.Get)
			classes.POST("", adminOnly, classHandler.Create)
			classes.PUT("/:id", adminOnly, classHandler.Update)
			classes.GET("/:id/report", adminOnly, enrollmentHandler.ReportByClass)
			classes.GET("/:id/report/export", adminOnly, classHandler.ExportReport)
		}

		enrollments := api.Group("/enrollments", requireAuth)
		{
			enrollments.GET("", enrollmentHandler.List)
			enrollments.POST("", enrollmentHandler.Create)
			enrollments.DELETE("", adminOnly, enrollmentHandler.Clear)
			enrollments.DELETE("/:id", enrollmentHandler.Delete)
		}

		users := api.Group("/users", requireAuth, adminOnly)
		{
			users.GET("", userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.POST("", userHandler.Create)
			users.PATCH("/:id", userHandler.Update)
			users.DELETE("/:id", userHandler.Delete)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
