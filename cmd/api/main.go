package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-dept-api/api/swagger"
	"github.com/noah-isme/uni-dept-api/internal/handler"
	"github.com/noah-isme/uni-dept-api/internal/middleware"
	"github.com/noah-isme/uni-dept-api/internal/repository"
	"github.com/noah-isme/uni-dept-api/internal/service"
	"github.com/noah-isme/uni-dept-api/pkg/cache"
	"github.com/noah-isme/uni-dept-api/pkg/config"
	"github.com/noah-isme/uni-dept-api/pkg/database"
	"github.com/noah-isme/uni-dept-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-dept-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-dept-api/pkg/middleware/requestid"
)

// @title University Department API
// @version 0.1.0
// @description Department, staff, and course management with arbitrated course assignments
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.UnassignedTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	departmentRepo := repository.NewDepartmentRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	resolver := service.NewConflictResolver(courseRepo)
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, departmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, staffRepo, departmentRepo, requestRepo, resolver, cacheSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(courseRepo, staffRepo, departmentRepo, resolver, cacheSvc, metricsSvc, cfg.Assignments.MaxAttempts, logr)
	requestSvc := service.NewCourseRequestService(requestRepo, courseRepo, staffRepo, resolver, cacheSvc, metricsSvc, cfg.Assignments.MaxAttempts, validate, logr)
	exportSvc := service.NewExportService(departmentRepo, courseRepo, staffRepo, cfg.Exports.Enabled, logr)

	departmentHandler := handler.NewDepartmentHandler(departmentSvc, exportSvc)
	staffHandler := handler.NewStaffHandler(staffSvc, assignmentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc, assignmentSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	opsHandler := handler.NewOpsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Identity(cfg.Identity.TokenSecret))

	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET("/metrics", opsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		departments := api.Group("/departments")
		departments.GET("", departmentHandler.List)
		departments.POST("", departmentHandler.Create)
		departments.GET("/:id", departmentHandler.Get)
		departments.PUT("/:id", departmentHandler.Update)
		departments.DELETE("/:id", departmentHandler.Delete)
		departments.GET("/:id/unassigned-courses", courseHandler.Unassigned)
		departments.GET("/:id/roster/export", departmentHandler.ExportRoster)

		staff := api.Group("/staff")
		staff.GET("", staffHandler.List)
		staff.POST("", staffHandler.Create)
		staff.GET("/:id", staffHandler.Get)
		staff.PUT("/:id", staffHandler.Update)
		staff.DELETE("/:id", staffHandler.Delete)
		staff.GET("/:id/courses", staffHandler.Courses)

		courses := api.Group("/courses")
		courses.GET("", courseHandler.List)
		courses.POST("", courseHandler.Create)
		courses.GET("/:id", courseHandler.Get)
		courses.PUT("/:id", courseHandler.Update)
		courses.DELETE("/:id", courseHandler.Delete)
		courses.POST("/:id/assign", courseHandler.Assign)
		courses.POST("/:id/unassign", courseHandler.Unassign)

		requests := api.Group("/course-requests")
		requests.GET("", requestHandler.List)
		requests.POST("", requestHandler.Submit)
		requests.GET("/:id", requestHandler.Get)
		requests.PATCH("/:id", requestHandler.Decide)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
