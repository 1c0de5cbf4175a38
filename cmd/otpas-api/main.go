package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/Abdulhakimkamal/otpas-hu-api/api/swagger"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/handler"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/repository"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/router"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/cache"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/config"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/database"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/events"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/jobs"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/logger"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/storage"
)

// @title OTPAS-HU API
// @version 1.0.0
// @description Academic records, evaluations and grading for Haramaya University
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type redisPinger struct{ client *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"postgres": db}
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client)
		checks["redis"] = redisPinger{client: client}
	} else {
		cacheRepo = repository.NewMemoryCacheRepository(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	publisher, err := events.Connect(cfg.NATS, logr)
	if err != nil {
		logr.Fatal("failed to connect nats", zap.Error(err))
	}
	defer publisher.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, sessionRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, sessionRepo, departmentRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, departmentRepo, userRepo, validate, logr)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, courseRepo, userRepo, validate, logr, service.EvaluationServiceDeps{
		Cache:     cacheSvc,
		Publisher: publisher,
		Metrics:   metricsSvc,
		Audit:     sessionRepo,
	})
	announcementSvc := service.NewAnnouncementService(announcementRepo, validate, logr)

	deps := router.Dependencies{
		Logger:  logr,
		Metrics: metricsSvc,
		Tokens:  authSvc,
		Auth:    handler.NewAuthHandler(authSvc),
		Users:   handler.NewUserHandler(userSvc),
		Depts:   handler.NewDepartmentHandler(departmentSvc),
		Courses: handler.NewCourseHandler(courseSvc),
		Evals:   handler.NewEvaluationHandler(evaluationSvc),
		News:    handler.NewAnnouncementHandler(announcementSvc),
		System:  handler.NewMetricsHandler(metricsSvc, checks),
	}

	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		disk, err := storage.NewDisk(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare report storage", zap.Error(err))
		}
		signer := storage.NewSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

		worker := service.NewReportWorker(reportRepo, courseRepo, evaluationSvc, disk, metricsSvc, cfg.Reports.WorkerRetries, logr)
		queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		metricsSvc.WatchQueue("reports", queue.Stats)

		reportSvc := service.NewReportService(reportRepo, courseRepo, queue, disk, signer, validate, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			DownloadPrefix:  cfg.APIPrefix + "/export/",
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
		deps.Reports = handler.NewReportHandler(reportSvc)
	}

	engine := router.New(cfg, deps)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
	logr.Info("server stopped")
}
