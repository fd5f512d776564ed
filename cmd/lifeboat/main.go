package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/flaggdavid-source/lifeboat/internal/api"
	"github.com/flaggdavid-source/lifeboat/internal/config"
	"github.com/flaggdavid-source/lifeboat/internal/events"
	"github.com/flaggdavid-source/lifeboat/internal/extract"
	"github.com/flaggdavid-source/lifeboat/internal/llm"
	"github.com/flaggdavid-source/lifeboat/internal/sample"
	"github.com/flaggdavid-source/lifeboat/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("lifeboat starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// LLM provider
	factory := &llm.Factory{
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		OpenAIModel:     cfg.OpenAIModel,
	}
	client, err := factory.Client(cfg.Provider)
	if err != nil {
		slog.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}
	slog.Info("llm client ready", "provider", cfg.Provider)

	// Profile store
	var st store.Store
	switch strings.ToLower(cfg.StorageEngine) {
	case "postgres":
		if cfg.DatabaseURL == "" {
			slog.Error("DATABASE_URL is required for the postgres storage engine")
			os.Exit(1)
		}
		st, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		st, err = store.OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		slog.Error("failed to open profile store", "engine", cfg.StorageEngine, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("profile store ready", "engine", cfg.StorageEngine)

	// Lifecycle events, optional: lifeboat works without NATS
	var pub *events.Publisher
	if cfg.NatsURL != "" {
		pub, err = events.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, lifecycle events disabled")
	}

	// Extraction pipeline
	budget := sample.Budget{Total: cfg.TotalBudget, Chunk: cfg.ChunkBudget}
	pipeline := extract.New(client, budget, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, pipeline, st, client, pub, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("lifeboat ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	pipeline.Cancel()
	cancel()
	slog.Info("lifeboat stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
