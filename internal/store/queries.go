/**
 * @description
 * Read-side queries used by the sync managers: freshness probe, live-market
 * scans, audit candidate selection, and token lookup maps.
 */

package store

import (
	"context"

	"github.com/polyndex/indexer/internal/models"
)

// CountClosedMarkets returns the number of closed market rows. Zero means a
// fresh database: the initial sync then pulls closed history too.
func (s *Store) CountClosedMarkets(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Market{}).Where("closed = ?", true).Count(&count).Error
	return count, err
}

// LiveMarkets returns markets with active AND NOT closed AND NOT archived,
// ordered by descending 24h volume. limit <= 0 means unlimited.
func (s *Store) LiveMarkets(ctx context.Context, limit int) ([]models.Market, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := s.DB.WithContext(ctx).
		Where("active = ? AND closed = ? AND archived = ?", true, false, false).
		Order("volume_24h DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var markets []models.Market
	if err := query.Find(&markets).Error; err != nil {
		return nil, err
	}
	return markets, nil
}

// AuditCandidates returns the top-N live markets by 24h volume for the CLOB
// tradability audit.
func (s *Store) AuditCandidates(ctx context.Context, limit int) ([]models.Market, error) {
	return s.LiveMarkets(ctx, limit)
}

// OpenMarketsOfMixedEvents returns live markets that belong to events which
// already contain both open and closed markets locally. These are the tail
// markets most likely to have been closed upstream without the catalog
// noticing.
func (s *Store) OpenMarketsOfMixedEvents(ctx context.Context) ([]models.Market, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var markets []models.Market
	err := s.DB.WithContext(ctx).
		Where("active = ? AND closed = ? AND archived = ?", true, false, false).
		Where(`event_id IN (
			SELECT event_id FROM markets
			WHERE event_id IS NOT NULL
			GROUP BY event_id
			HAVING bool_or(closed) AND bool_or(NOT closed)
		)`).
		Find(&markets).Error
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// OpenMarketsByEventIDs returns the still-open markets of the given events
func (s *Store) OpenMarketsByEventIDs(ctx context.Context, eventIDs []string) ([]models.Market, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var markets []models.Market
	err := s.DB.WithContext(ctx).
		Where("active = ? AND closed = ? AND archived = ?", true, false, false).
		Where("event_id IN ?", eventIDs).
		Find(&markets).Error
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// ActiveMarketsWithoutSamples returns up to limit live markets that have no
// price samples yet, ordered by descending 24h volume. Used by the backfill.
func (s *Store) ActiveMarketsWithoutSamples(ctx context.Context, limit int) ([]models.Market, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var markets []models.Market
	err := s.DB.WithContext(ctx).
		Where("active = ? AND closed = ? AND archived = ?", true, false, false).
		Where("NOT EXISTS (SELECT 1 FROM price_samples ps WHERE ps.market_id = markets.id)").
		Order("volume_24h DESC").
		Limit(limit).
		Find(&markets).Error
	if err != nil {
		return nil, err
	}
	return markets, nil
}

// TokenToMarket returns the outcome-token to market-id map over live
// markets. limit <= 0 means every live market.
func (s *Store) TokenToMarket(ctx context.Context, limit int) (map[string]string, error) {
	markets, err := s.LiveMarkets(ctx, limit)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]string)
	for i := range markets {
		for _, tokenID := range markets[i].OutcomeTokenIDs {
			if tokenID != "" {
				tokens[tokenID] = markets[i].ID
			}
		}
	}
	return tokens, nil
}

// GetMarket fetches a single market row by id
func (s *Store) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var market models.Market
	if err := s.DB.WithContext(ctx).First(&market, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &market, nil
}
