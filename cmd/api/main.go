package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/academyhq/academy-api/api/swagger"
	"github.com/academyhq/academy-api/internal/handler"
	"github.com/academyhq/academy-api/internal/middleware"
	"github.com/academyhq/academy-api/internal/models"
	"github.com/academyhq/academy-api/internal/repository"
	"github.com/academyhq/academy-api/internal/service"
	"github.com/academyhq/academy-api/pkg/cache"
	"github.com/academyhq/academy-api/pkg/config"
	"github.com/academyhq/academy-api/pkg/database"
	"github.com/academyhq/academy-api/pkg/logger"
	corsmiddleware "github.com/academyhq/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/academyhq/academy-api/pkg/middleware/requestid"
)

// @title Academy API
// @version 1.0.0
// @description Membership, authentication and course catalog API
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	// Redis is optional: the course catalog degrades to direct reads.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	authSvc := service.NewAuthService(userRepo, &service.LogMailer{Logger: logr}, validate, logr, service.AuthConfig{
		TokenSecret:   cfg.Auth.TokenSecret,
		TokenExpiry:   cfg.Auth.TokenExpiry,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	profileSvc := service.NewProfileService(userRepo, validate, logr)

	// A typed nil pointer must not reach the cache interface.
	var courseSvc *service.CourseService
	if cacheRepo != nil {
		courseSvc = service.NewCourseService(courseRepo, userRepo, cacheRepo, metricsSvc, validate, logr, cfg.Courses.CacheTTL)
	} else {
		courseSvc = service.NewCourseService(courseRepo, userRepo, nil, metricsSvc, validate, logr, cfg.Courses.CacheTTL)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{Origins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/forgot-password", authHandler.ForgotPassword)
	api.POST("/reset-password", authHandler.ResetPassword)

	authed := api.Group("", middleware.Auth(authSvc))
	authed.POST("/logout", authHandler.Logout)

	// Profile routes are user-role only; there is no role hierarchy.
	profile := authed.Group("", middleware.RequireRole(models.RoleUser))
	profile.GET("/profile", profileHandler.Profile)
	profile.PUT("/update-profile/:id", profileHandler.UpdateProfile)
	profile.PUT("/update-password/:id", profileHandler.UpdatePassword)

	// The whole catalog surface is admin-gated; admins manage courses on
	// instructors' behalf.
	courses := authed.Group("/course", middleware.RequireRole(models.RoleAdmin))
	courses.GET("", courseHandler.List)
	courses.GET("/export", courseHandler.Export)
	courses.GET("/:id", courseHandler.Get)

	mutate := courses.Group("", middleware.Audit(userRepo, models.AuditActionCourseWrite, "course"))
	mutate.POST("", courseHandler.Create)
	mutate.PUT("/:id", courseHandler.Update)
	mutate.DELETE("/:id", courseHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
