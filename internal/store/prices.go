/**
 * @description
 * Price-sample write paths: idempotent sample inserts (backfill) and the
 * realtime flush that merges buffered token prices into markets.
 *
 * The flush path writes outcome_prices and price_updated_at only; the
 * catalog-owned fields, including last_trade_price, are never touched here.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/polyndex/indexer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertPriceSamples appends samples, dropping duplicates on the
// (market_id, token_id, timestamp, source) unique index.
func (s *Store) InsertPriceSamples(ctx context.Context, samples []models.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(samples, upsertChunkSize).Error
}

// PriceUpdate is one buffered realtime price observation
type PriceUpdate struct {
	MarketID  string
	TokenID   string
	Price     float64
	Timestamp time.Time
}

// ApplyPriceUpdates merges buffered updates into their markets in one
// transaction: for each market, the price at the token's outcome index is
// replaced, a websocket-source sample is appended, and price_updated_at is
// set. Updates for tokens the market no longer lists are skipped.
func (s *Store) ApplyPriceUpdates(ctx context.Context, updates map[string][]PriceUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	applied := 0
	err := s.withDeadlockRetry(func() error {
		applied = 0
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var samples []models.PriceSample

			for marketID, marketUpdates := range updates {
				var market models.Market
				if err := tx.First(&market, "id = ?", marketID).Error; err != nil {
					if err == gorm.ErrRecordNotFound {
						continue
					}
					return fmt.Errorf("failed to load market %s: %w", marketID, err)
				}

				prices := append(models.Float64Array(nil), market.OutcomePrices...)
				touched := false
				for _, u := range marketUpdates {
					idx := market.TokenIndex(u.TokenID)
					if idx < 0 || idx >= len(prices) {
						continue
					}
					prices[idx] = u.Price
					touched = true
					samples = append(samples, models.PriceSample{
						MarketID:  u.MarketID,
						TokenID:   u.TokenID,
						Timestamp: u.Timestamp,
						Price:     u.Price,
						Source:    models.PriceSourceWebsocket,
					})
				}
				if !touched {
					continue
				}

				err := tx.Model(&models.Market{}).
					Where("id = ?", marketID).
					Updates(map[string]interface{}{
						"outcome_prices":   prices,
						"price_updated_at": gorm.Expr("NOW()"),
					}).Error
				if err != nil {
					return fmt.Errorf("failed to update prices for market %s: %w", marketID, err)
				}
				applied++
			}

			if len(samples) > 0 {
				err := tx.Clauses(clause.OnConflict{DoNothing: true}).
					CreateInBatches(samples, upsertChunkSize).Error
				if err != nil {
					return fmt.Errorf("failed to insert price samples: %w", err)
				}
			}

			return nil
		})
	})

	return applied, err
}
