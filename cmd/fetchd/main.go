package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fetchd/internal/cleanup"
	"fetchd/internal/config"
	"fetchd/internal/cookie"
	"fetchd/internal/extractor"
	"fetchd/internal/extractor/ytdlp"
	"fetchd/internal/http/rest"
	"fetchd/internal/logctx"
	"fetchd/internal/notifier"
	"fetchd/internal/task"
	"fetchd/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("fetchd starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.From(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Download Directory and Cookies
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	cookies := cookie.NewResolver(cfg.CookiePaths)
	cookies.Bootstrap(ctx, cookie.Sources{
		Base64: cfg.CookiesBase64,
		Raw:    cfg.CookiesRaw,
		URL:    cfg.CookiesURL,
	})

	// =========================================================================
	// Start Extractor
	ytClient := ytdlp.NewClient(ytdlp.Config{
		DownloadDir: cfg.DownloadDir,
		Proxy:       cfg.Proxy,
	})

	if err := ytClient.CheckDependencies(ctx); err != nil {
		return fmt.Errorf("extractor dependencies: %w", err)
	}

	ext := extractor.NewInstrumentedClient(ytClient, tel)

	// =========================================================================
	// Start Task Runner
	store := task.NewStore()

	runner := task.NewRunner(ctx, store, ext, tel, cfg.DownloadDir, cfg.MaxParallel)
	defer runner.Close()

	// =========================================================================
	// Start Notification
	setupNotifications(ctx, runner, cfg)

	// =========================================================================
	// Start Cleanup
	startCleanup(ctx, store, tel, cfg)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	server := setupServer(ctx, store, runner, ext, cookies, tel, cfg)

	go func() {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	logger.Info("waiting for download tasks...",
		"download_dir", cfg.DownloadDir,
		"max_parallel", cfg.MaxParallel,
		"retention", cfg.KeepFinishedFor.String(),
	)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return ctx.Err()
	}
}

func setupNotifications(ctx context.Context, runner *task.Runner, cfg *config.Config) {
	logger := logctx.From(ctx)

	if cfg.DiscordWebhookURL == "" {
		logger.Info("no webhook configured, task notifications disabled")

		return
	}

	notif := notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)

	go func() {
		for event := range runner.OnTaskFinished {
			if err := notif.Notify(ctx, "✅ Download finished: "+event.Filename); err != nil {
				logger.Error("failed to send notification", "task_id", event.ID, "err", err)
			}
		}
	}()

	go func() {
		for event := range runner.OnTaskFailed {
			if err := notif.Notify(ctx, "❌ Download failed for "+event.SourceURL+": "+event.Error); err != nil {
				logger.Error("failed to send notification", "task_id", event.ID, "err", err)
			}
		}
	}()
}

func startCleanup(ctx context.Context, store *task.Store, tel *telemetry.Telemetry, cfg *config.Config) {
	logger := logctx.From(ctx)

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down")

				return
			case <-ticker.C:
				cleanup.DeleteExpired(ctx, store, tel, cfg.DownloadDir, cfg.KeepFinishedFor)
			}
		}
	}()
}

// setupServer prepares the handlers and middleware chain for the http
// rest server.
func setupServer(
	ctx context.Context,
	store *task.Store,
	runner *task.Runner,
	ext extractor.Client,
	cookies *cookie.Resolver,
	tel *telemetry.Telemetry,
	cfg *config.Config,
) *http.Server {
	handler := rest.NewMediaHandler(store, runner, ext, cookies, cfg.DownloadDir)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Handle("/metrics", tel.Handler())
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, "fetchd"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
