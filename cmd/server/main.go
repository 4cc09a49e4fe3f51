package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/go-todo/internal/config"
	"github.com/hiroki-koketsu/go-todo/internal/handler"
	"github.com/hiroki-koketsu/go-todo/internal/lifecycle"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"github.com/hiroki-koketsu/go-todo/internal/repository"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 30 * time.Second

// taskStore is what both store drivers provide.
type taskStore interface {
	query.Reader
	lifecycle.Store
	Count() int64
	Close() error
}

func openStore(cfg *config.Config) (taskStore, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return repository.NewTaskRepository(), nil
	}
	repo, err := repository.OpenSQL(cfg.DatabasePath, cfg.DBDebug)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store", cfg.StoreDriver),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry tracer provider
	tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		startupLogger.Error("failed to initialize tracer provider", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize OpenTelemetry meter provider
	mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		startupLogger.Error("failed to initialize meter provider", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize task store
	store, err := openStore(cfg)
	if err != nil {
		startupLogger.Error("failed to open task store", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize OpenTelemetry logger provider (after other providers for log-trace correlation)
	lp, logger, err := telemetry.InitLoggerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		startupLogger.Error("failed to initialize logger provider", slog.Any("error", err))
		os.Exit(1)
	}

	// Create metrics instruments
	meter := otel.Meter(cfg.ServiceName)
	metrics, err := telemetry.NewMetrics(meter, store.Count)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	opts := handler.Options{
		PageSize:       cfg.PageSize,
		CompletedLimit: cfg.CompletedLimit,
	}
	if p, ok := store.(handler.Pinger); ok {
		opts.Pinger = p
	}

	// Initialize handlers
	taskHandler := handler.NewTaskHandler(
		query.NewResolver(store),
		lifecycle.NewEngine(store),
		logger,
		metrics,
		opts,
	)

	// Create router
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (excluded from tracing)
	r.Get("/health", taskHandler.Health)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/tasks", taskHandler.Routes())
	})

	// Wrap router with OpenTelemetry HTTP instrumentation
	otelHandler := otelhttp.NewHandler(r, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Providers are flushed only after the server has drained.
	wait := gfshutdown.GracefulShutdown(
		ctx,
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				logger.Info("shutting down server...")
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server forced to shutdown", slog.Any("error", err))
				}
				if err := store.Close(); err != nil {
					logger.Error("failed to close task store", slog.Any("error", err))
				}
				if err := lp.Shutdown(ctx); err != nil {
					startupLogger.Error("failed to shutdown logger provider", slog.Any("error", err))
				}
				if err := mp.Shutdown(ctx); err != nil {
					startupLogger.Error("failed to shutdown meter provider", slog.Any("error", err))
				}
				return tp.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	startupLogger.Info("server stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}
