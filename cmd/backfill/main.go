/**
 * @description
 * One-shot price-history backfill tool.
 * With -market it backfills a single market; otherwise it seeds history for
 * the top live markets that have no samples yet.
 *
 * @dependencies
 * - internal/services: backfill manager
 * - internal/polymarket/clob
 */

package main

import (
	"context"
	"flag"

	"github.com/polyndex/indexer/internal/config"
	"github.com/polyndex/indexer/internal/db"
	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/polymarket/clob"
	"github.com/polyndex/indexer/internal/services"
	"github.com/polyndex/indexer/internal/store"
)

func main() {
	marketID := flag.String("market", "", "backfill a single market id")
	interval := flag.String("interval", clob.IntervalMax, "history interval: max, 1w, 1d, 6h, 1h")
	flag.Parse()

	if !clob.ValidInterval(*interval) {
		logger.Fatal("invalid interval %q (want max, 1w, 1d, 6h or 1h)", *interval)
	}

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

	backfill := services.NewBackfill(clob.NewClient(cfg), store.New(pgDB, cfg.DB.QueryTimeout))
	ctx := context.Background()

	if *marketID != "" {
		n, err := backfill.BackfillMarket(ctx, *marketID, *interval)
		if err != nil {
			logger.Fatal("Backfill failed: %v", err)
		}
		logger.Info("Backfilled market %s: %d samples", *marketID, n)
		return
	}

	if err := backfill.BackfillMissing(ctx, *interval); err != nil {
		logger.Fatal("Backfill failed: %v", err)
	}
}
