package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/server"
	"github.com/assafrot/api-keys-app/src/services"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				opts.cfg.Port = port
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg

	log.Info().
		Int("port", cfg.Port).
		Str("store", cfg.Store).
		Str("log_level", cfg.LogLevel).
		Msg("starting server")

	store, err := opts.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("store", store.kind).Msg("store ready")

	if err := middleware.SetJWTSecret(cfg.JWTSecret); err != nil {
		return fmt.Errorf("initialize JWT secret: %w", err)
	}
	if cfg.JWTSecretGenerated {
		log.Warn().Msg("JWT_SECRET not set, using a random secret; sessions end on restart")
	}

	// Initialize services
	keyService := services.NewKeyService(store).WithDefaultLimit(cfg.DefaultMonthlyLimit)
	ownerService := services.NewOwnerService(store)
	usageResetService := services.NewUsageResetService(store, cfg.UsageResetEnabled)

	// Auto-seed the owner on first run
	created, err := ownerService.EnsureOwner(ctx, cfg.OwnerUsername, cfg.OwnerPassword)
	if err != nil {
		log.Error().Err(err).Msg("failed to create initial owner")
	} else if created {
		log.Info().Str("username", cfg.OwnerUsername).Msg("initial owner created")
	}

	analyticsService, err := services.NewAnalyticsService(services.AnalyticsConfig{
		PostHogAPIKey: cfg.PostHogAPIKey,
		PostHogHost:   cfg.PostHogHost,
		Enabled:       cfg.PostHogEnabled,
	})
	if err != nil {
		return fmt.Errorf("initialize analytics: %w", err)
	}
	defer analyticsService.Close()

	if analyticsService.Enabled() {
		log.Info().Str("host", cfg.PostHogHost).Msg("PostHog analytics enabled")
	} else {
		log.Info().Msg("PostHog analytics disabled")
	}

	// Start background services
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	usageResetService.Start(bgCtx)

	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	app := server.New(server.Deps{
		Store:          store,
		StoreKind:      store.kind,
		Keys:           keyService,
		Owners:         ownerService,
		Analytics:      analyticsService,
		AllowedOrigins: cfg.Origins(),
		CookieSecure:   cfg.CookieSecure,
		TrackUsage:     cfg.TrackUsage,
		ValidationRate: middleware.RateLimitConfig{
			RequestsPerMinute: cfg.ValidationRatePerMinute,
			Burst:             cfg.ValidationRateBurst,
		},
	})
	defer app.Close()

	// Request contexts end on shutdown so open streams return
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	// No WriteTimeout: /api/keys/stream holds the response open
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	usageResetService.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
	return nil
}
