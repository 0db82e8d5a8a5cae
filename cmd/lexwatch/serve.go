package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lexwatch/lexwatch/internal/alerts/adapters"
	"github.com/lexwatch/lexwatch/internal/channels"
	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/correlation"
	"github.com/lexwatch/lexwatch/internal/database"
	"github.com/lexwatch/lexwatch/internal/handlers"
	"github.com/lexwatch/lexwatch/internal/jobs"
	"github.com/lexwatch/lexwatch/internal/logging"
	"github.com/lexwatch/lexwatch/internal/middleware"
	"github.com/lexwatch/lexwatch/internal/services"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert manager and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// A missing .env file is fine when the environment is set directly.
	envErr := godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env file", zap.Error(envErr))
	}
	logger.Info("starting lexwatch", zap.String("version", version))

	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is not set")
	}
	cfg.EnsureJWTSecret(logger)

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/auth/login",
			"/ingest/*",
		},
	}, logger)

	// Archive
	var (
		repo    *database.AlertRepository
		history handlers.AlertHistory
		pruner  jobs.ArchivePruner
	)
	managerOpts := []services.ManagerOption{}
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, gormlogger.Warn)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := database.AutoMigrate(db, logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		repo = database.NewAlertRepository(db)
		history, pruner = repo, repo
		managerOpts = append(managerOpts, services.WithArchive(repo))
		logger.Info("alert archive enabled", zap.String("driver", cfg.DatabaseDriver))
	} else {
		logger.Info("alert archive disabled (DATABASE_URL not set)")
	}

	// Correlation engine and pattern library
	engine := correlation.NewEngine(cfg.CorrelationWindow, logger)
	if cfg.PatternsFile != "" {
		extra, err := correlation.LoadPatternFile(cfg.PatternsFile)
		if err != nil {
			return err
		}
		for _, p := range extra {
			if err := engine.AddPattern(p); err != nil {
				return fmt.Errorf("pattern file %s: %w", cfg.PatternsFile, err)
			}
		}
		logger.Info("loaded patterns", zap.String("file", cfg.PatternsFile), zap.Int("count", len(extra)))
	}

	// Channels
	chs := channels.FromConfig(cfg, logger)
	for _, ch := range chs {
		logger.Info("notification channel", zap.String("channel", ch.Name()), zap.Bool("configured", ch.IsConfigured()))
	}
	managerOpts = append(managerOpts, services.WithEngine(engine), services.WithChannels(chs...))

	manager := services.NewAlertManager(cfg, logger, managerOpts...)

	stream := handlers.NewAlertStreamHandler(cfg.CORSAllowedOrigins, logger)
	manager.RegisterHandlerForAll(stream.HandleAlert)

	// Routes
	mux := http.NewServeMux()
	handlers.NewHTTPHandler().SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuth, logger).SetupRoutes(mux)
	apiHandler := handlers.NewAPIHandler(manager, history, logger)
	apiHandler.SetupRoutes(mux)
	if len(cfg.IngestAPIKeys) > 0 {
		apiHandler.SetupIngestRoutes(mux, middleware.NewAPIKeyAuth(cfg.IngestAPIKeys, logger), adapters.Default())
	} else {
		logger.Info("ingest endpoint disabled (INGEST_API_KEYS not set)")
	}
	stream.SetupRoutes(mux)

	// Request ids first so auth and access logs can report them, then
	// CORS so preflights never need a token.
	cors := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...)
	handler := middleware.RequestIDMiddleware(
		middleware.AccessLog(logger)(
			cors.Wrap(jwtAuth.Wrap(mux))))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Background maintenance
	stopCleanup := make(chan struct{})
	cleanup := jobs.NewCleanupJob(manager, pruner, cfg, logger)
	go cleanup.Start(stopCleanup)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal, cleaning up")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down HTTP server", zap.Error(err))
	}
	close(stopCleanup)
	stream.Close()
	manager.Close()

	logger.Info("shutdown complete")
	return nil
}
