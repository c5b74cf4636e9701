// Link-Coach coaching backend and frame relay.
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

	"github.com/ashureev/link-coach/internal/api"
	"github.com/ashureev/link-coach/internal/coach"
	"github.com/ashureev/link-coach/internal/coach/gemini"
	"github.com/ashureev/link-coach/internal/config"
	"github.com/ashureev/link-coach/internal/identity"
	"github.com/ashureev/link-coach/internal/logging"
	"github.com/ashureev/link-coach/internal/metrics"
	"github.com/ashureev/link-coach/internal/middleware"
	"github.com/ashureev/link-coach/internal/relay"
	"github.com/ashureev/link-coach/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Init(cfg.Log)
	defer func() {
		if err := logCloser.Close(); err != nil {
			slog.Error("Failed to close log file", "error", err)
		}
	}()
	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}

	slog.Info("Starting server", "port", cfg.Port, "env", cfg.Env, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	gen, err := gemini.NewGenerator(context.Background(), gemini.Config{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: int32(cfg.Gemini.MaxTokens),
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	slog.Info("Gemini client initialized", "model", cfg.Gemini.Model)

	svc := coach.NewService(gen, logger)
	issuer := identity.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	limiter := api.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	defer limiter.Close()
	m := metrics.New()
	hub := relay.NewHub()

	healthHandler := api.NewHealthHandler(repo, cfg.Env)
	coachingHandler := api.NewCoachingHandler(api.CoachingDeps{
		Coach:   svc,
		Repo:    repo,
		Limiter: limiter,
		Metrics: m,
		Issuer:  issuer,
		IsDev:   cfg.IsDevelopment(),
		Logger:  logger,
	})
	relayHandler := relay.NewHandler(hub, cfg.AllowedOrigins, cfg.IsDevelopment(), m, logger)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(m.Middleware)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)
	coachingHandler.RegisterRoutes(r)
	r.Handle("/metrics", m.Handler())
	r.Get(relay.Path, relayHandler.ServeHTTP)

	// Relay connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retentionDone := store.StartRetentionWorker(ctx, repo, cfg.ReportRetention, 0)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked relay connections are not tracked by Shutdown.
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-retentionDone

	slog.Info("Server stopped successfully")
}
