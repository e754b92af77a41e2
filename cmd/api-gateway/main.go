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

	_ "github.com/noah-isme/course-rec-api/api/swagger"
	"github.com/noah-isme/course-rec-api/internal/handler"
	"github.com/noah-isme/course-rec-api/internal/middleware"
	"github.com/noah-isme/course-rec-api/internal/models"
	"github.com/noah-isme/course-rec-api/internal/repository"
	"github.com/noah-isme/course-rec-api/internal/service"
	"github.com/noah-isme/course-rec-api/pkg/cache"
	"github.com/noah-isme/course-rec-api/pkg/config"
	"github.com/noah-isme/course-rec-api/pkg/database"
	"github.com/noah-isme/course-rec-api/pkg/export"
	"github.com/noah-isme/course-rec-api/pkg/jobs"
	"github.com/noah-isme/course-rec-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-rec-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-rec-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-rec-api/pkg/storage"
)

// @title Course Recommendation API
// @version 1.0.0
// @description Course catalog, prerequisite checking and confidence-scored recommendations for academic advising.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
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
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Redis is optional: without it every read goes straight to postgres.
	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	var catalogCache, dashboardCache *service.CacheService
	if cacheRepo != nil {
		catalogCache = service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
		dashboardCache = service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, true)
	}

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	prereqRepo := repository.NewPrerequisiteRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	userRepo := repository.NewUserRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	prereqSvc := service.NewPrerequisiteService(prereqRepo, courseRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, prereqRepo, prereqSvc, catalogCache, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, studentRepo, courseRepo, enrollmentRepo, validate, logr)
	recommendationSvc := service.NewRecommendationService(studentRepo, courseRepo, prereqSvc, enrollmentRepo, gradeRepo, metrics, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:    cfg.JWT.Secret,
		AccessTokenExpiry:    cfg.JWT.Expiration,
		RefreshTokenExpiry:   cfg.JWT.RefreshExpiration,
		Issuer:               "course-rec-api",
		Audience:             []string{"course-rec-api"},
		SessionPurgeInterval: cfg.JWT.SessionPurge,
		SessionRetention:     cfg.JWT.SessionRetention,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Stats:   statsRepo,
		Metrics: metrics,
		Cache:   dashboardCache,
		Logger:  logr,
		Config:  service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authSvc.StartSessionJanitor(ctx)

	var (
		reportSvc   *service.ReportService
		reportQueue *jobs.Queue
	)
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(recommendationSvc, studentRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, exportSvc, metrics, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			BufferSize: cfg.Reports.QueueSize,
			MaxRetries: cfg.Reports.WorkerRetries,
			RetryDelay: cfg.Reports.RetryDelay,
			OnDepth:    metrics.SetReportQueueDepth,
			Logger:     logr,
		})
		reportSvc = service.NewReportService(reportRepo, studentRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:        cfg.Reports.SignedURLTTL,
			CleanupInterval:  cfg.Reports.CleanupInterval,
			MaxRetries:       cfg.Reports.WorkerRetries,
			MaxActivePerUser: cfg.Reports.MaxActivePerUser,
		})

		reportQueue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	recommendationHandler := handler.NewRecommendationHandler(recommendationSvc, reportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)
	var reportHandler *handler.ReportHandler
	if reportSvc != nil {
		reportHandler = handler.NewReportHandler(reportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	if reportHandler != nil {
		// Download is authenticated by the signed token in the URL itself.
		api.GET("/reports/download", reportHandler.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	{
		secured.POST("/auth/logout", authHandler.Logout)
		secured.POST("/auth/change-password", authHandler.ChangePassword)
		secured.GET("/auth/me", authHandler.Me)

		staff := middleware.RequireRoles(models.RoleAdmin, models.RoleCounselor)
		selfOrStaff := middleware.RBAC(string(models.RoleAdmin), string(models.RoleCounselor), middleware.Self)
		adminOnly := middleware.RequireRoles(models.RoleAdmin)

		students := secured.Group("/students")
		{
			students.GET("", staff, studentHandler.List)
			students.POST("", staff, middleware.Audit(userRepo, logr, models.AuditActionCreate, "student"), studentHandler.Create)
			students.GET("/:id", selfOrStaff, studentHandler.Get)
			students.PUT("/:id", staff, middleware.Audit(userRepo, logr, models.AuditActionUpdate, "student"), studentHandler.Update)
			students.DELETE("/:id", adminOnly, middleware.Audit(userRepo, logr, models.AuditActionDelete, "student"), studentHandler.Delete)
			students.GET("/:id/enrollments", selfOrStaff, enrollmentHandler.ListByStudent)
			students.GET("/:id/grades", selfOrStaff, gradeHandler.ListByStudent)
			students.GET("/:id/recommendations", selfOrStaff, recommendationHandler.List)
			if reportSvc != nil {
				students.POST("/:id/recommendations/export", selfOrStaff, middleware.Audit(userRepo, logr, models.AuditActionExport, "recommendation"), recommendationHandler.Export)
			}
		}

		courses := secured.Group("/courses")
		{
			courses.GET("", courseHandler.List)
			courses.GET("/:id", courseHandler.Get)
			courses.GET("/:id/prerequisites", courseHandler.ListPrerequisites)
			courses.POST("", adminOnly, middleware.Audit(userRepo, logr, models.AuditActionCreate, "course"), courseHandler.Create)
			courses.PUT("/:id", adminOnly, middleware.Audit(userRepo, logr, models.AuditActionUpdate, "course"), courseHandler.Update)
			courses.DELETE("/:id", adminOnly, middleware.Audit(userRepo, logr, models.AuditActionDelete, "course"), courseHandler.Delete)
			courses.POST("/:id/prerequisites", adminOnly, middleware.Audit(userRepo, logr, models.AuditActionCreate, "prerequisite"), courseHandler.AddPrerequisite)
			courses.DELETE("/:id/prerequisites/:linkId", adminOnly, middleware.Audit(userRepo, logr, models.AuditActionDelete, "prerequisite"), courseHandler.RemovePrerequisite)
		}

		enrollments := secured.Group("/enrollments")
		enrollments.Use(staff)
		{
			enrollments.GET("", enrollmentHandler.List)
			enrollments.POST("", middleware.Audit(userRepo, logr, models.AuditActionCreate, "enrollment"), enrollmentHandler.Create)
			enrollments.PUT("/:id/status", middleware.Audit(userRepo, logr, models.AuditActionUpdate, "enrollment"), enrollmentHandler.UpdateStatus)
		}

		grades := secured.Group("/grades")
		grades.Use(staff)
		{
			grades.GET("", gradeHandler.List)
			grades.POST("", middleware.Audit(userRepo, logr, models.AuditActionCreate, "grade"), gradeHandler.Record)
		}

		if cfg.Dashboard.Enabled {
			dashboard := secured.Group("/dashboard")
			dashboard.Use(staff)
			{
				dashboard.GET("/overview", dashboardHandler.Overview)
				dashboard.GET("/system", dashboardHandler.System)
			}
		}

		if reportHandler != nil {
			// Ownership is checked in the service: non-admins only see their own jobs.
			secured.GET("/reports/:id", reportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		serverErrors <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	case sig := <-quit:
		logr.Sugar().Infow("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Errorw("graceful shutdown failed", "error", err)
			_ = srv.Close()
		}

		// Drain in-flight report jobs before the deferred cancel stops
		// the cleanup loop.
		if reportQueue != nil {
			reportQueue.Stop()
		}
	}
}
