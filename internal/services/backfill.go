/**
 * @description
 * Historical price backfill from the CLOB /prices-history endpoint.
 * The feed returns one series per condition (the primary token's price), so
 * binary markets are expanded to two samples per point as (token0, p) and
 * (token1, 1-p). Markets with more than two outcomes get the primary token
 * only; the complement rule doesn't hold there.
 *
 * All inserts are idempotent, so rerunning a backfill is harmless.
 *
 * @dependencies
 * - internal/polymarket/clob
 * - internal/store, internal/models
 */

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
	"github.com/polyndex/indexer/internal/polymarket/clob"
)

const (
	backfillMissingLimit = 100
	backfillSpacing      = 100 * time.Millisecond
)

// HistoryClient is the slice of the CLOB client used by the backfill
type HistoryClient interface {
	GetPricesHistory(ctx context.Context, conditionID, interval string) ([]clob.PricePoint, error)
}

// BackfillStore is the store surface the backfill writes through
type BackfillStore interface {
	GetMarket(ctx context.Context, id string) (*models.Market, error)
	ActiveMarketsWithoutSamples(ctx context.Context, limit int) ([]models.Market, error)
	InsertPriceSamples(ctx context.Context, samples []models.PriceSample) error
}

// Backfill seeds price history for markets that have no samples yet
type Backfill struct {
	clob  HistoryClient
	store BackfillStore
}

// NewBackfill creates the backfill service
func NewBackfill(clobClient HistoryClient, st BackfillStore) *Backfill {
	return &Backfill{clob: clobClient, store: st}
}

// BackfillMarket fetches the price history of one market over the given
// interval (max, 1w, 1d, 6h, 1h) and writes the expanded samples. Returns
// the number of samples written.
func (b *Backfill) BackfillMarket(ctx context.Context, marketID, interval string) (int, error) {
	market, err := b.store.GetMarket(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("failed to load market %s: %w", marketID, err)
	}
	if market.ConditionID == "" {
		return 0, fmt.Errorf("market %s has no condition id", marketID)
	}
	if len(market.OutcomeTokenIDs) == 0 {
		return 0, fmt.Errorf("market %s has no outcome tokens", marketID)
	}

	points, err := b.clob.GetPricesHistory(ctx, market.ConditionID, interval)
	if err != nil {
		return 0, fmt.Errorf("history fetch for market %s failed: %w", marketID, err)
	}
	if len(points) == 0 {
		return 0, nil
	}

	samples := b.expand(market, points)
	if err := b.store.InsertPriceSamples(ctx, samples); err != nil {
		return 0, fmt.Errorf("sample insert for market %s failed: %w", marketID, err)
	}
	return len(samples), nil
}

// expand turns the single per-condition series into per-token samples
func (b *Backfill) expand(market *models.Market, points []clob.PricePoint) []models.PriceSample {
	tokens := market.OutcomeTokenIDs
	binary := len(tokens) == 2
	if len(tokens) > 2 {
		logger.Warn("market %s has %d outcomes; backfilling primary token only", market.ID, len(tokens))
	}

	samples := make([]models.PriceSample, 0, len(points)*2)
	for _, p := range points {
		at := time.Unix(p.Timestamp, 0).UTC()
		samples = append(samples, models.PriceSample{
			MarketID:  market.ID,
			TokenID:   tokens[0],
			Timestamp: at,
			Price:     p.Price,
			Source:    models.PriceSourceClob,
		})
		if binary {
			samples = append(samples, models.PriceSample{
				MarketID:  market.ID,
				TokenID:   tokens[1],
				Timestamp: at,
				Price:     1 - p.Price,
				Source:    models.PriceSourceClob,
			})
		}
	}
	return samples
}

// BackfillMissing seeds history for up to 100 live markets that have no
// samples yet, highest 24h volume first, pausing briefly between markets so
// the CLOB never sees a request burst.
func (b *Backfill) BackfillMissing(ctx context.Context, interval string) error {
	markets, err := b.store.ActiveMarketsWithoutSamples(ctx, backfillMissingLimit)
	if err != nil {
		return fmt.Errorf("failed to load markets without samples: %w", err)
	}
	if len(markets) == 0 {
		logger.Info("backfill: nothing to do")
		return nil
	}

	done := 0
	for i := range markets {
		n, err := b.BackfillMarket(ctx, markets[i].ID, interval)
		if err != nil {
			logger.Warn("backfill skipped market %s: %v", markets[i].ID, err)
		} else {
			done++
			logger.Info("backfilled market %s: %d samples", markets[i].ID, n)
		}

		if i < len(markets)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backfillSpacing):
			}
		}
	}

	logger.Info("backfill complete: %d/%d markets", done, len(markets))
	return nil
}
