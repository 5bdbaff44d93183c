// storefrontd holds one storefront session and serves it over REST and MCP.
// Designed for Cloud Run deployment; state lives in Redis when configured.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/api"
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/localstore"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/negotiation"
	"storefront/internal/storefront"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("storefront_id", cfg.StorefrontID),
		slog.String("environment", cfg.Environment),
		slog.String("backend", cfg.Backend.BaseURL),
		slog.String("store", cfg.Store.Kind),
	)

	store, closer, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closer.Close()

	client, err := api.New(api.Config{
		BaseURL:           cfg.Backend.BaseURL,
		Timeout:           cfg.Backend.Timeout,
		ChromeFingerprint: cfg.Backend.ChromeFingerprint,
		TaxBasisPoints:    cfg.Backend.TaxBasisPoints,
		Logger:            logger.With(slog.String("component", "api")),
	})
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	sf, err := storefront.New(storefront.Options{
		Backend:        client,
		Store:          store,
		TaxBasisPoints: cfg.Backend.TaxBasisPoints,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating storefront: %w", err)
	}
	defer sf.Close()

	// Resolve the session in the background; SessionGate answers 503
	// until it settles.
	go startSession(ctx, sf, cfg.Backend, logger)

	h := handler.New(sf, logger.With(slog.String("component", "handler")))

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → negotiation → session gate → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		negotiation.Middleware(negotiation.SupportedAPIVersion, logger),
		middleware.SessionGate(func() bool { return sf.Session().Initializing }),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
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

// startSession restores the persisted session and, when the service has
// its own account configured and nobody is signed in, logs in with it.
func startSession(ctx context.Context, sf *storefront.Storefront, cfg config.BackendConfig, logger *slog.Logger) {
	s := sf.Init(ctx)
	logger.Info("session initialized", slog.Bool("authenticated", s.Authenticated))

	if s.Authenticated || cfg.Email == "" {
		return
	}
	s, err := sf.Login(ctx, model.Credentials{Email: cfg.Email, Password: cfg.Password})
	if err != nil && !s.Authenticated {
		logger.Error("service login failed", slog.String("error", err.Error()))
		return
	}
	if err != nil {
		logger.Warn("service login completed with errors", slog.String("error", err.Error()))
	}
	logger.Info("service account signed in", slog.String("email", cfg.Email))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the configured local state store.
func openStore(ctx context.Context, cfg config.StoreConfig) (localstore.Store, io.Closer, error) {
	switch cfg.Kind {
	case config.StoreRedis:
		r, err := localstore.NewRedis(localstore.RedisConfig{
			URL:       cfg.RedisURL,
			Namespace: cfg.Namespace,
			TTL:       cfg.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return r, r, nil
	case config.StoreFile:
		path := cfg.Path
		if path == "" {
			var err error
			if path, err = localstore.DefaultPath(); err != nil {
				return nil, nil, err
			}
		}
		return localstore.NewFile(path), nopCloser{}, nil
	default:
		return localstore.NewMemory(), nopCloser{}, nil
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
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
