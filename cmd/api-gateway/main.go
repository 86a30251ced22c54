package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/admission-api/api/swagger"
	"github.com/noah-isme/admission-api/internal/handler"
	"github.com/noah-isme/admission-api/internal/middleware"
	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	"github.com/noah-isme/admission-api/internal/service"
	"github.com/noah-isme/admission-api/pkg/cache"
	"github.com/noah-isme/admission-api/pkg/config"
	"github.com/noah-isme/admission-api/pkg/database"
	"github.com/noah-isme/admission-api/pkg/export"
	"github.com/noah-isme/admission-api/pkg/jobs"
	"github.com/noah-isme/admission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admission-api/pkg/middleware/requestid"
	"github.com/noah-isme/admission-api/pkg/paystack"
	"github.com/noah-isme/admission-api/pkg/storage"
)

// @title Admission Portal API
// @version 1.0.0
// @description Applicant registration, fee payment, application forms and staff review
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	// A nil interface keeps the cache repository in its always-miss mode.
	var cacheClient redis.Cmdable
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summary caching disabled", zap.Error(err))
	} else {
		cacheClient = redisClient
		defer redisClient.Close()
	}

	files, err := newFileStorage(context.Background(), cfg.Storage)
	if err != nil {
		logr.Sugar().Fatalw("file storage init failed", "driver", cfg.Storage.Driver, "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanupQueue := jobs.NewQueue("file-cleanup", service.FileCleanupHandler(files, logr), jobs.QueueConfig{
		Workers:    2,
		BufferSize: 256,
		MaxRetries: 5,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	// Runs past the signal so uploads still in flight during Shutdown can queue deletes.
	cleanupQueue.Start(context.Background())

	accounts := repository.NewAccountRepository(db)
	students := repository.NewStudentRepository(db)
	applications := repository.NewApplicationRepository(db)
	payments := repository.NewPaymentRepository(db)
	referrals := repository.NewReferralRepository(db)

	validate := service.NewValidator()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(cacheClient, logr), metricsSvc, cfg.Summary.CacheTTL, logr, cacheClient != nil)

	authSvc := service.NewAuthService(accounts, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "admission-api",
	})
	referralSvc := service.NewReferralService(referrals, accounts, cacheSvc, metricsSvc, validate, logr)
	gateway := paystack.New(paystack.Config{
		BaseURL:   cfg.Payment.GatewayBaseURL,
		SecretKey: cfg.Payment.GatewaySecret,
		Timeout:   cfg.Payment.VerifyTimeout,
	})
	paymentSvc := service.NewPaymentService(payments, accounts, gateway, accounts, cacheSvc, metricsSvc, logr, service.PaymentConfig{
		FeeAmount:      cfg.Payment.FeeAmount,
		FeeAmountMinor: cfg.Payment.FeeAmountMinor,
		Currency:       cfg.Payment.Currency,
		PublicKey:      cfg.Payment.PublicKey,
		CallbackURL:    cfg.Payment.CallbackURL,
		VerifyTimeout:  cfg.Payment.VerifyTimeout,
	})
	applicationSvc := service.NewApplicationService(applications, students, files, signer, cacheSvc, metricsSvc, validate, logr, service.ApplicationConfig{
		NumberPrefix:         cfg.Admission.NumberPrefix,
		PassportMaxBytes:     cfg.Admission.PassportMaxBytes,
		DocumentMaxBytes:     cfg.Admission.DocumentMaxBytes,
		AllowedPhotoMIMEs:    cfg.Admission.AllowedPhotoMIMEs,
		AllowedDocumentMIMEs: cfg.Admission.AllowedDocumentMIMEs,
		FilesBaseURL:         strings.TrimRight(cfg.APIPrefix, "/") + "/files",
	}, service.WithFileCleanupQueue(cleanupQueue))
	reviewSvc := service.NewReviewService(applications, accounts, cacheSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(applications, files, service.ExportConfig{
		InstitutionName: cfg.Admission.InstitutionName,
		NumberPrefix:    cfg.Admission.NumberPrefix,
	}, logr, export.NewPDFExporter(), export.NewXLSXExporter())
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Profiles:     students,
		Applications: applications,
		Logger:       logr,
		Config: service.DashboardServiceConfig{
			FeeAmount: cfg.Payment.FeeAmount,
			Currency:  cfg.Payment.Currency,
			PublicKey: cfg.Payment.PublicKey,
		},
	})
	summarySvc := service.NewSummaryService(applications, payments, referrals, cacheSvc, cfg.Summary.CacheTTL, logr)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logr)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Admission.DocumentMaxBytes * int64(len(models.DocumentTypes)+1)
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta(strings.TrimRight(cfg.APIPrefix, "/") + "/admin"))

	registerRoutes(r, routeDeps{
		cfg:       cfg,
		auth:      handler.NewAuthHandler(authSvc),
		referral:  handler.NewReferralHandler(referralSvc),
		payment:   handler.NewPaymentHandler(paymentSvc),
		app:       handler.NewApplicationHandler(applicationSvc, exportSvc),
		review:    handler.NewReviewHandler(reviewSvc, applicationSvc, exportSvc),
		dashboard: handler.NewDashboardHandler(dashboardSvc, summarySvc),
		metrics:   handler.NewMetricsHandler(metricsSvc, db),
		tokens:    authSvc,
		audit:     accounts,
		limiter:   limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cleanupQueue.Stop()
}

func newFileStorage(ctx context.Context, cfg config.StorageConfig) (storage.FileStorage, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		return storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
