package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bcnelson/activation-key-server/internal/api"
	"github.com/bcnelson/activation-key-server/internal/api/handler"
	"github.com/bcnelson/activation-key-server/internal/config"
	"github.com/bcnelson/activation-key-server/internal/keygen"
	"github.com/bcnelson/activation-key-server/internal/logging"
	"github.com/bcnelson/activation-key-server/internal/metrics"
	"github.com/bcnelson/activation-key-server/internal/service"
	"github.com/bcnelson/activation-key-server/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create data directory if needed (for SQLite)
	if cfg.Database.IsSQLite() {
		if dir := sqliteDir(cfg.Database.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()

	admins := service.NewAdminService(store, logger, cfg.Auth.BcryptCost)
	if err := admins.Bootstrap(context.Background(), service.BootstrapConfig{
		APIKey:   cfg.Auth.BootstrapAPIKey,
		Password: cfg.Auth.BootstrapPassword,
	}); err != nil {
		return err
	}

	auth, err := service.NewAuthService(store, m, logger, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Services{
		Keys:    service.NewKeyService(store, keygen.New(), m, logger, cfg.Keys.MaxBatchSize),
		Auth:    auth,
		Reports: service.NewReportService(store, logger),
		Catalog: service.NewCatalogService(store, logger),
		Admins:  admins,
	}, handler.KeyDefaults{
		Prefix:  cfg.Keys.DefaultPrefix,
		KeyType: cfg.Keys.DefaultKeyType,
	}, m, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
	}

	logger.Info("starting activation key server", "addr", cfg.Server.Addr(), "db_driver", cfg.Database.Driver)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// sqliteDir returns the directory holding a SQLite database file, or "" for
// in-memory and URI DSNs.
func sqliteDir(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}
