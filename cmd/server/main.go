// Willow - AI Sales Development Representative Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/willow-sdr/internal/api"
	"github.com/ashureev/willow-sdr/internal/artifact"
	"github.com/ashureev/willow-sdr/internal/config"
	"github.com/ashureev/willow-sdr/internal/dialogue"
	"github.com/ashureev/willow-sdr/internal/handoff"
	"github.com/ashureev/willow-sdr/internal/identity"
	"github.com/ashureev/willow-sdr/internal/llm"
	"github.com/ashureev/willow-sdr/internal/middleware"
	"github.com/ashureev/willow-sdr/internal/probe"
	"github.com/ashureev/willow-sdr/internal/realtime"
	"github.com/ashureev/willow-sdr/internal/speech"
	"github.com/ashureev/willow-sdr/internal/store"
	"github.com/ashureev/willow-sdr/internal/sweeper"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	script, err := dialogue.LoadScript(cfg.ScriptPath)
	if err != nil {
		slog.Error("Failed to load sales script", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	artifacts, err := artifact.NewStore(cfg.ArtifactDir, cfg.PublicBaseURL+"/artifacts")
	if err != nil {
		slog.Error("Failed to initialize artifact store", "error", err)
		os.Exit(1)
	}

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

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	var gen dialogue.Generator
	if g, err := llm.New(ctx, cfg.LLM); err != nil {
		slog.Warn("Language model disabled, open-ended turns will use canned fillers", "error", err)
	} else {
		gen = g
		slog.Info("Language model ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	var tts dialogue.Synthesizer
	if cfg.TTS.Enabled {
		tts = speech.New(speech.Config{
			BaseURL: cfg.TTS.BaseURL,
			APIKey:  cfg.TTS.APIKey,
			Model:   cfg.TTS.Model,
			Voice:   cfg.TTS.Voice,
			Rate:    cfg.TTS.Rate,
			Timeout: cfg.LLM.Timeout,
		}, artifacts)
		slog.Info("Speech synthesis enabled", "voice", cfg.TTS.Voice)
	}

	sinks := []dialogue.LeadSink{dialogue.LeadSinkFunc(repo.SaveLead)}
	pingers := map[string]probe.Pinger{"database": repo}
	if cfg.Redis.Addr != "" {
		publisher, err := handoff.NewRedisPublisher(handoff.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.Stream,
		})
		if err != nil {
			slog.Warn("Lead handoff stream disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
			pingers["redis"] = publisher
			slog.Info("Lead handoff stream connected", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
		}
	}

	engine, err := dialogue.NewEngine(dialogue.Options{
		Script:     script,
		Generator:  gen,
		Speech:     tts,
		Artifacts:  artifacts,
		Sinks:      sinks,
		Picker:     dialogue.RandomPicker{},
		MaxClarify: cfg.Session.MaxClarifyAttempts,
		Logger:     logger,
	})
	if err != nil {
		slog.Error("Failed to initialize dialogue engine", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	handler := api.NewHandler(api.Options{
		Dialogue:    engine,
		Repo:        repo,
		Artifacts:   artifacts,
		Limiter:     api.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		MaxBodySize: cfg.MaxRequestBodyBytes,
		Logger:      logger,
	})
	wsHandler := realtime.NewHandler(engine, cfg.AllowedOrigins(), cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(api.Metrics)

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		handler.RegisterRoutes(r)
		r.Get("/ws/talk", wsHandler.ServeHTTP)
	})

	// WriteTimeout stays 0 so websocket connections are not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sw, err := sweeper.New(engine, cfg.Session.SweepSchedule, cfg.Session.IdleTTL, logger)
	if err != nil {
		slog.Error("Failed to initialize session sweeper", "error", err)
		os.Exit(1)
	}
	sw.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for health probes", "port", cfg.GRPCPort, "error", err)
			os.Exit(1)
		}
		healthSrv := probe.New(pingers, 10*time.Second, logger)
		g.Go(func() error {
			slog.Info("Health probe listening", "addr", lis.Addr().String())
			return healthSrv.Serve(gctx, lis)
		})
	}

	// Wait for shutdown signal or a server failure.
	g.Go(func() error {
		<-gctx.Done()
		stop()

		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sw.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
