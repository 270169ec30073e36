package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nanmu42/gzip"
	"github.com/printmate/order-service/internal/artifact"
	"github.com/printmate/order-service/internal/auth"
	"github.com/printmate/order-service/internal/config"
	"github.com/printmate/order-service/internal/dispatch"
	"github.com/printmate/order-service/internal/extract"
	"github.com/printmate/order-service/internal/gateway"
	"github.com/printmate/order-service/internal/interface/api/rest"
	"github.com/printmate/order-service/internal/lifecycle"
	"github.com/printmate/order-service/internal/metrics"
	"github.com/printmate/order-service/internal/pricing"
	"github.com/printmate/order-service/internal/store"
	"github.com/printmate/order-service/pkg/accesslog"
	"github.com/printmate/order-service/pkg/logger"
	"github.com/printmate/order-service/pkg/unzip"
	sqldblogger "github.com/simukti/sqldb-logger"
	"golang.org/x/sync/errgroup"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)
	defer func() {
		_ = logger.Sync()
	}()

	metrics.Register()

	// Select the order store: durable when a DSN is configured,
	// in-memory otherwise.
	var orderStore store.OrderStore = store.NewMemory()

	if cfg.DSN != "" {
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return fmt.Errorf("failed to open the database: %w", err)
		}

		// Log every query to the database.
		db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

		// Check connectivity and DSN correctness.
		if err = db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}

		// Close connection.
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error(err)
			}
		}()

		// Create default transaction manager for database/sql package.
		trManager := manager.Must(
			trmsql.NewDefaultFactory(db),
			manager.WithCtxManager(trmcontext.DefaultManager),
		)

		pgStore, err := store.NewPostgres(db, trmsql.DefaultCtxGetter, trManager, logger)
		if err != nil {
			return fmt.Errorf("failed to init postgres order store: %w", err)
		}
		if err = pgStore.Bootstrap(serverCtx); err != nil {
			return err
		}

		orderStore = pgStore
	}

	// Init artifact storage.
	artifacts, err := artifact.NewStore(cfg.ArtifactDir, logger)
	if err != nil {
		return fmt.Errorf("failed to init artifact store: %w", err)
	}

	// Init pricing.
	calc, err := pricing.NewCalculator(cfg.Payment.UnitPrice, cfg.Payment.Currency)
	if err != nil {
		return fmt.Errorf("failed to init pricing calculator: %w", err)
	}

	// Init fulfillment dispatcher.
	dispatcher, err := dispatch.NewEmail(artifacts, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init dispatcher: %w", err)
	}

	// Init the order lifecycle service.
	lifecycleService, err := lifecycle.NewService(
		orderStore,
		artifacts,
		extract.NewPDF(logger),
		dispatcher,
		gateway.NewWebhook(logger),
		gateway.NewLogNotifier(logger),
		calc,
		cfg,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to init lifecycle service: %w", err)
	}

	// Init operator auth service.
	authService, err := auth.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}

	// Create root router.
	router := initRootRouter(logger)

	// Init handlers for collaborator event routes.
	rest.NewEventsController(lifecycleService, logger, rest.ChiServerOptions{
		BaseURL:    "/api/events",
		BaseRouter: router,
	})

	// Init handlers for operator routes.
	rest.NewOperatorController(orderStore, authService, logger, rest.ChiServerOptions{
		BaseURL:    "/api/operator",
		BaseRouter: router,
	})

	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Start the abandon sweeper.
	lifecycleService.Run()
	defer lifecycleService.Stop()

	g, gCtx := errgroup.WithContext(serverCtx)

	// Start the HTTP server.
	g.Go(func() error {
		logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown.
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		select {
		case signal := <-sig:
			logger.With(serverCtx, "signal", signal.String()).
				Infof("Shutting down server with %s timeout",
					cfg.HTTPServer.ShutdownTimeout)
		case <-gCtx.Done():
			return gCtx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(serverCtx, cfg.HTTPServer.ShutdownTimeout)
		defer cancel()

		if err := hs.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		serverStopCtx()

		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}
