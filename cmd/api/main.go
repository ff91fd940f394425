package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nucleo-eljunko/comodato-api/internal/handler"
	"github.com/nucleo-eljunko/comodato-api/internal/repository"
	"github.com/nucleo-eljunko/comodato-api/internal/router"
	"github.com/nucleo-eljunko/comodato-api/internal/service"
	"github.com/nucleo-eljunko/comodato-api/internal/validation"
	"github.com/nucleo-eljunko/comodato-api/pkg/cache"
	"github.com/nucleo-eljunko/comodato-api/pkg/config"
	"github.com/nucleo-eljunko/comodato-api/pkg/database"
	"github.com/nucleo-eljunko/comodato-api/pkg/jobs"
	"github.com/nucleo-eljunko/comodato-api/pkg/logger"
	"github.com/nucleo-eljunko/comodato-api/pkg/mailer"
)

// @title Comodato API
// @version 1.0.0
// @description Instrument loan management for the music program
// @BasePath /api/v1
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
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and rate limiting disabled", "error", err)
		rdb = nil
	}

	var sender mailer.Sender
	if cfg.Mail.Host == "" {
		sender = mailer.NewLogSender(logr)
	} else {
		sender = mailer.NewSMTPSender(cfg.Mail)
	}

	mailQueue := jobs.NewQueue("mailer", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			return fmt.Errorf("unexpected mail payload %T", job.Payload)
		}
		return sender.Send(msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Mailer.Workers,
		MaxRetries: cfg.Mailer.MaxRetries,
		RetryDelay: cfg.Mailer.RetryDelay,
		Logger:     logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	userRepo := repository.NewUserRepository(db)
	repRepo := repository.NewRepresentativeRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	instrumentRepo := repository.NewInstrumentRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(rdb, logr)

	validate := validation.NewValidator()

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, rdb != nil)

	authSvc := service.NewAuthService(userRepo, repRepo, mailQueue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
		VerificationExpiry: cfg.Loans.VerificationExpiry,
		RecoveryExpiry:     cfg.Loans.RecoveryExpiry,
		AppBaseURL:         cfg.AppBaseURL,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	repSvc := service.NewRepresentativeService(repRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, repRepo, validate, logr)
	instrumentSvc := service.NewInstrumentService(instrumentRepo, loanRepo, userRepo, cacheSvc, validate, logr)
	loanSvc := service.NewLoanService(loanRepo, instrumentRepo, studentRepo, userRepo, cacheSvc, validate, logr, cfg.Loans.UnitCode)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	exportSvc := service.NewExportService(loanRepo, instrumentRepo, studentRepo, repRepo, userRepo, metricsSvc, logr)

	engine := router.New(router.Deps{
		Config:  cfg,
		Logger:  logr,
		Redis:   rdb,
		Metrics: metricsSvc,
		Auth:    authSvc,

		AuthHandler:           handler.NewAuthHandler(authSvc),
		UserHandler:           handler.NewUserHandler(userSvc),
		RepresentativeHandler: handler.NewRepresentativeHandler(repSvc),
		StudentHandler:        handler.NewStudentHandler(studentSvc),
		InstrumentHandler:     handler.NewInstrumentHandler(instrumentSvc),
		LoanHandler:           handler.NewLoanHandler(loanSvc),
		DashboardHandler:      handler.NewDashboardHandler(dashboardSvc),
		ExportHandler:         handler.NewExportHandler(exportSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
