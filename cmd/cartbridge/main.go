// cartbridge bridges a storefront's catalog and cart endpoints into a
// session-scoped cart API with checkout permalinks.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartbridge/internal/cart"
	"cartbridge/internal/catalog"
	"cartbridge/internal/config"
	"cartbridge/internal/coordinator"
	"cartbridge/internal/handler"
	"cartbridge/internal/middleware"
	"cartbridge/internal/session"
	"cartbridge/internal/shopify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := initLogger()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("shop_id", cfg.ShopID),
		slog.String("store_mode", cfg.StoreMode),
		slog.String("environment", cfg.Environment),
		slog.String("store_domain", cfg.Merchant.StoreDomain),
	)

	// One session-free client serves the catalog feed.
	catalogClient, err := shopify.New(shopify.Config{StoreURL: cfg.Merchant.StoreURL})
	if err != nil {
		return fmt.Errorf("creating storefront client: %w", err)
	}
	cache := catalog.New(catalogClient, logger)

	factory, offlineFactory, closeStores, err := buildStoreFactories(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating cart store factory: %w", err)
	}
	defer closeStores()

	coordCfg := coordinator.Config{
		PollInterval: cfg.PollInterval(),
		ReadyTimeout: cfg.ReadyTimeout(),
		CartBaseURL:  cfg.Merchant.CartBaseURL,
	}
	manager := coordinator.NewManager(factory, cache, coordCfg, coordinator.Hooks{}, logger)
	if offlineFactory != nil {
		manager.WithOfflineFactory(offlineFactory)
	}

	h := handler.New(manager, cache, cfg.Merchant.OptionSynonyms, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → session → logging → handler.
	// Recovery must be outermost to catch panics from other middleware.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		session.Middleware(cfg.Merchant.MinClientVersion, logger),
		middleware.Logging(logger),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// buildStoreFactories returns the per-session cart store constructor for
// the configured mode, an optional offline-slot constructor, and a
// cleanup func.
func buildStoreFactories(cfg *config.Config, logger *slog.Logger) (coordinator.StoreFactory, coordinator.StoreFactory, func(), error) {
	switch cfg.StoreMode {
	case config.StoreModeLocal:
		db, err := cart.OpenDB(cfg.Merchant.LocalDBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening cart database: %w", err)
		}
		factory := func(ctx context.Context, sessionID string) (cart.Store, error) {
			return cart.NewLocalStore(db, sessionID, logger), nil
		}
		return factory, nil, closeDB(db, logger), nil

	default:
		// Remote mode: each session gets its own storefront client so the
		// cart cookie stays per-shopper. Offline intent lands in a local
		// slot and carries over once the backend is reachable.
		db, err := cart.OpenDB(offlineDBPath(cfg))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening offline cart database: %w", err)
		}
		factory := func(ctx context.Context, sessionID string) (cart.Store, error) {
			client, err := shopify.New(shopify.Config{StoreURL: cfg.Merchant.StoreURL})
			if err != nil {
				return nil, err
			}
			return cart.NewRemoteStore(client, logger), nil
		}
		offlineFactory := func(ctx context.Context, sessionID string) (cart.Store, error) {
			return cart.NewLocalStore(db, sessionID, logger), nil
		}
		return factory, offlineFactory, closeDB(db, logger), nil
	}
}

func offlineDBPath(cfg *config.Config) string {
	if cfg.Merchant.LocalDBPath != "" {
		return cfg.Merchant.LocalDBPath
	}
	return "offline-carts.db"
}

func closeDB(db *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing cart database", slog.String("error", err.Error()))
		}
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
