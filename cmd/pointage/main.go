package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/pointage-admin/pointage-admin/cmd/pointage/cli"
	"github.com/pointage-admin/pointage-admin/internal/app"
	"github.com/pointage-admin/pointage-admin/internal/attendance"
	"github.com/pointage-admin/pointage-admin/internal/audit"
	"github.com/pointage-admin/pointage-admin/internal/auth"
	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/dashboard"
	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/listing"
	"github.com/pointage-admin/pointage-admin/internal/navigation"
	"github.com/pointage-admin/pointage-admin/internal/observability"
	"github.com/pointage-admin/pointage-admin/internal/platform/cache"
	"github.com/pointage-admin/pointage-admin/internal/platform/db"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
	"github.com/pointage-admin/pointage-admin/internal/view"
	"github.com/pointage-admin/pointage-admin/jobs"
	"github.com/pointage-admin/pointage-admin/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	// A missing .env is fine; the environment may be set by the container.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		ops := cli.NewJobsCLI(redisOpts)
		defer func() { _ = ops.Close() }()
		if err := ops.Run(ctx, os.Args[2:], cfg.AuditRetentionDays, os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "pointage_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	submitLocks := shared.NewSubmitLocks(redisClient, cfg.SubmitLockTTL)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	apiClient := backend.NewClient(backend.Options{
		BaseURL:       cfg.APIBaseURL,
		ProfileSecret: cfg.ProfileSecret,
		Timeout:       cfg.APITimeout,
		Observer:      metrics,
	})

	var (
		pool     *pgxpool.Pool
		recorder audit.Recorder = audit.Observed("log", audit.LogRecorder{Logger: logger}, metrics)
		recent   dashboard.RecentAudit
	)
	if cfg.AuditStoreEnabled() {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		store := audit.NewStore(pool)
		recent = store
		recorder = audit.Observed("postgres", store, metrics)
	}
	if cfg.AuditAsync {
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = jobClient.Close() }()
		recorder = audit.Observed("queue", jobClient, metrics)
	}

	registry := entity.NewRegistry()
	authStore := auth.NewStore(sessionManager, apiClient, logger)
	authHandler := auth.NewHandler(logger, authStore, templates, csrfManager)
	guard := rbac.Guard{Source: authStore, Logger: logger}
	pages := view.NewRenderer(templates, csrfManager, authStore, logger)

	listingHandler := listing.NewHandler(listing.Config{
		Registry: registry,
		API:      apiClient,
		Identity: authStore,
		Guard:    guard,
		Pages:    pages,
		Locks:    submitLocks,
		Audit:    recorder,
		CacheTTL: cfg.OptionsCacheTTL,
		Logger:   logger,
	})
	dashboardHandler := dashboard.NewHandler(dashboard.Config{
		Registry: registry,
		API:      apiClient,
		Identity: authStore,
		Guard:    guard,
		Pages:    pages,
		Recent:   recent,
		Logger:   logger,
	})
	attendanceHandler := attendance.NewHandler(apiClient, authStore, guard, pages, time.Now, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Metrics:            metrics,
		AuthHandler:        authHandler,
		ListingHandler:     listingHandler,
		DashboardHandler:   dashboardHandler,
		AttendanceHandler:  attendanceHandler,
		MenuHandler:        navigation.NewHandler(authStore),
		PermissionsHandler: rbac.NewPermissionsHandler(guard),
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
