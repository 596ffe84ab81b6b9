package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/prisma-glow/edge-gateway/internal/config"
	"github.com/prisma-glow/edge-gateway/internal/idempotency"
	"github.com/prisma-glow/edge-gateway/internal/proxy"
	"github.com/prisma-glow/edge-gateway/internal/ratelimit"
	"github.com/prisma-glow/edge-gateway/internal/server"
	"github.com/prisma-glow/edge-gateway/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("edge-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backing-store clients are constructed and closed here; components only
	// borrow them.
	var counterStore ratelimit.CounterStore
	counterEnabled := false
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to reach counter store at %s: %v", cfg.Redis.Addr, err)
		}
		defer rdb.Close()
		counterStore = ratelimit.NewRedisStore(rdb)
		counterEnabled = true
	} else {
		logger.Warn("no counter store configured, rate limits are per-process only")
		mem := ratelimit.NewMemoryStore()
		mem.StartJanitor(ctx, 2*time.Minute)
		counterStore = mem
	}

	var recordStore idempotency.RecordStore
	durableEnabled := false
	if cfg.SQLite.Path != "" {
		store, err := idempotency.NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open durable store: %v", err)
		}
		defer store.Close()
		recordStore = store
		durableEnabled = true
	} else {
		logger.Warn("no durable store configured, idempotent replay disabled")
	}

	limiter := ratelimit.New(counterStore, logger)
	coordinator := idempotency.New(recordStore, logger)

	srv := server.New(cfg.Server.Port, server.Deps{
		Logger:              logger,
		AllowedCredentials:  cfg.Auth.Keys(),
		Limiter:             limiter,
		Idempotency:         coordinator,
		Agent:               proxy.NewAgentProxy(cfg.Agent.BaseURL, cfg.Agent.APIKey, cfg.Stream.Heartbeat(), logger),
		Rag:                 proxy.NewRagProxy(cfg.Rag.BaseURL, cfg.Rag.APIKey, logger),
		AgentChatLimit:      ratelimit.Limit{Limit: cfg.RateLimit.AgentChat.Limit, Window: cfg.RateLimit.AgentChat.Window()},
		RagIngestLimit:      ratelimit.Limit{Limit: cfg.RateLimit.RagIngest.Limit, Window: cfg.RateLimit.RagIngest.Window()},
		RagSearchLimit:      ratelimit.Limit{Limit: cfg.RateLimit.RagSearch.Limit, Window: cfg.RateLimit.RagSearch.Window()},
		CounterStoreEnabled: counterEnabled,
		DurableStoreEnabled: durableEnabled,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router,
	}

	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	// Let in-flight idempotency persists land before the stores close.
	coordinator.Wait()

	logger.Info("gateway shutdown complete")
}
