package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/auth"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/bike"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/expiry"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/invoice"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/notify"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/permission"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/quotation"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/servicerecord"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/servicerequest"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/store"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/transition"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/user"
	"github.com/georgemunganga/bikeservice-backend/internal/modules/workflow"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/clock"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/config"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/database"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/httpx"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/logging"
	"github.com/georgemunganga/bikeservice-backend/internal/platform/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.RunMigrations {
		if err := database.Migrate(db); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, db, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) error {
	clk := clock.System()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.Middleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.Respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())

	// ── Identity ────────────────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)
	userHandler.RegisterPublicRoutes(router)

	authService := auth.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL, clk)
	auth.NewHandler(authService).RegisterRoutes(router)

	permission.NewHandler().RegisterRoutes(router)

	// ── Stores & Authorization ──────────────────────────────
	storeRepo := store.NewPostgresRepository(db)
	kernel := access.NewKernel(storeRepo)
	storeService := store.NewService(storeRepo, userService, kernel)
	bikeRepo := bike.NewPostgresRepository(db)
	bikeService := bike.NewService(bikeRepo)

	// ── Notifications ───────────────────────────────────────
	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.Twilio.Enabled() {
		notifier = notify.NewSMS(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, userService, logger)
		logger.Info("sms notifications enabled")
	}
	notifier = notify.NewAsync(notifier, logger)

	// ── Workflow ────────────────────────────────────────────
	workflowStore := workflow.NewPostgresStore(db)
	requestService := servicerequest.NewService(workflowStore, kernel, bikeRepo, clk, logger)
	quotationService := quotation.NewService(workflowStore, kernel, clk, notifier, logger, cfg.QuotationValidityDays)
	recordService := servicerecord.NewService(workflowStore, kernel, storeRepo, clk, logger)
	invoiceService := invoice.NewService(workflowStore, kernel, clk, notifier, logger, cfg.InvoiceDueDays)
	dispatcher := transition.NewDispatcher(requestService, quotationService, recordService, invoiceService, kernel)

	sweeper := expiry.NewSweeper(workflowStore, clk, logger)
	scheduler, err := expiry.NewScheduler(sweeper, cfg.SweepSchedule, logger)
	if err != nil {
		return err
	}

	router.Group(func(r chi.Router) {
		r.Use(access.Authenticate(authService))

		userHandler.RegisterRoutes(r)
		store.NewHandler(storeService).RegisterRoutes(r)
		bike.NewHandler(bikeService).RegisterRoutes(r)
		servicerequest.NewHandler(requestService).RegisterRoutes(r)
		quotation.NewHandler(quotationService).RegisterRoutes(r)
		servicerecord.NewHandler(recordService).RegisterRoutes(r)
		invoice.NewHandler(invoiceService).RegisterRoutes(r)
		transition.NewHandler(dispatcher).RegisterRoutes(r)
		expiry.NewHandler(sweeper).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bike service API starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
