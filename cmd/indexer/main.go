/**
 * @description
 * Main entry point for the Polyndex indexer.
 * Wires config, Postgres, Redis, the Polymarket clients and the sync
 * orchestrator, then serves the health/status API until SIGINT/SIGTERM.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: health/status server
 * - internal/services: orchestrator and sync managers
 *
 * @notes
 * - Refuses to start against an unmigrated database (schema check).
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/polyndex/indexer/internal/api"
	"github.com/polyndex/indexer/internal/cache"
	"github.com/polyndex/indexer/internal/config"
	"github.com/polyndex/indexer/internal/db"
	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
	"github.com/polyndex/indexer/internal/polymarket/clob"
	"github.com/polyndex/indexer/internal/polymarket/data_api"
	"github.com/polyndex/indexer/internal/polymarket/gamma"
	"github.com/polyndex/indexer/internal/services"
	"github.com/polyndex/indexer/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres: %v", err)
	}
	if err := db.VerifySchema(pgDB); err != nil {
		logger.Fatal("Schema check failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: %v", err)
	}

	st := store.New(pgDB, cfg.DB.QueryTimeout)
	invalidator := cache.NewInvalidator(redisClient)
	gammaClient := gamma.NewClient(cfg)
	clobClient := clob.NewClient(cfg)
	dataClient := data_api.NewClient(cfg)

	batch := services.NewBatchSync(gammaClient, dataClient, st, invalidator, services.BatchSyncOptions{
		PageSize:          cfg.Sync.MarketsBatchSize,
		TradesBatchSize:   cfg.Sync.TradesBatchSize,
		TradesMarketLimit: cfg.Sync.TradesMarketLimit,
	})
	audit := services.NewClobAudit(clobClient, st, invalidator, services.ClobAuditOptions{
		BatchSize: cfg.Sync.ClobAuditBatchSize,
		Workers:   cfg.Sync.ClobAuditWorkers,
	})
	realtime := services.NewRealtime(st, redisClient, services.RealtimeOptions{
		WSURL:         cfg.Polymarket.WSURL,
		Connections:   cfg.Realtime.Connections,
		FlushInterval: cfg.Realtime.PriceFlushInterval,
		ReconnectBase: cfg.Realtime.ReconnectInterval,
		MaxReconnects: cfg.Realtime.MaxReconnectAttempts,
	})
	orchestrator := services.NewOrchestrator(batch, audit, realtime, st, services.OrchestratorOptions{
		MarketsInterval:           cfg.Sync.MarketsInterval,
		TradesInterval:            cfg.Sync.TradesInterval,
		EnableTradesSync:          cfg.Sync.EnableTradesSync,
		ClobAuditInterval:         cfg.Sync.ClobAuditInterval,
		StaleThreshold:            cfg.Sync.StaleThreshold,
		PriceHistoryRetentionDays: cfg.Retention.PriceHistoryDays,
		TradesRetentionDays:       cfg.Retention.TradesDays,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orchestrator.Start(ctx); err != nil {
		logger.Fatal("Failed to start orchestrator: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:       "Polyndex Indexer",
		StrictRouting: true,
		CaseSensitive: true,
	})
	app.Use(recover.New())
	app.Use(fiberLogger.New())

	api.SetupRoutes(app, api.Deps{
		DB:    pgDB,
		Redis: redisClient,
		States: func(ctx context.Context) (map[string]models.SyncState, error) {
			return st.GetSyncStates(ctx)
		},
		StaleThreshold: cfg.Sync.StaleThreshold,
	})

	go func() {
		logger.Info("🚀 Indexer status API listening on port %s", cfg.Server.Port)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.Error("Status server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()
	orchestrator.Stop()
	if err := app.Shutdown(); err != nil {
		logger.Error("Status server shutdown failed: %v", err)
	}
	logger.Info("Indexer stopped")
}
