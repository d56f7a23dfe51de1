/**
 * @description
 * Batch synchronization service for the Polymarket catalog and the global
 * trades feed.
 *
 * Catalog sync is two independent paginated walks: /markets writes market
 * rows (never event_id), /events writes event rows and collects the
 * (market, event) pairs from nested children for the linkage pass. On a fresh
 * database both walks also pull closed history so resolved markets are
 * queryable from the start.
 *
 * Each entity is guarded by a non-blocking lock: an interval tick that lands
 * while the previous run is still in flight is skipped, never queued.
 *
 * @dependencies
 * - internal/polymarket/gamma, internal/polymarket/data_api
 * - internal/store, internal/cache
 * - github.com/google/uuid: per-run ids recorded in sync_state metadata
 */

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
	"github.com/polyndex/indexer/internal/polymarket/data_api"
	"github.com/polyndex/indexer/internal/polymarket/gamma"
	"github.com/polyndex/indexer/internal/store"
)

// CatalogClient is the slice of the Gamma client used by the batch sync
type CatalogClient interface {
	ListEvents(ctx context.Context, params gamma.ListParams) ([]gamma.Event, error)
	ListMarkets(ctx context.Context, params gamma.ListParams) ([]gamma.Market, error)
}

// TradeFeedClient is the slice of the Data API client used by the trades sync
type TradeFeedClient interface {
	GetTrades(ctx context.Context, limit int) ([]data_api.Trade, error)
}

// BatchStore is the store surface the batch sync writes through
type BatchStore interface {
	UpsertEvents(ctx context.Context, events []models.Event) error
	UpsertMarkets(ctx context.Context, markets []models.Market) error
	LinkMarketsToEvents(ctx context.Context, links []store.MarketEventLink) error
	CountClosedMarkets(ctx context.Context) (int64, error)
	LiveMarkets(ctx context.Context, limit int) ([]models.Market, error)
	InsertTrades(ctx context.Context, trades []models.Trade) (int64, error)
	SetSyncState(ctx context.Context, entity, status string, lastSyncAt *time.Time, metadata models.JSONMap, syncErr string) error
}

// CacheInvalidator clears the response caches after catalog state changes
type CacheInvalidator interface {
	InvalidateMarketData(ctx context.Context)
}

// BatchSyncOptions holds the cadence-independent knobs of the batch sync
type BatchSyncOptions struct {
	PageSize          int
	TradesBatchSize   int
	TradesMarketLimit int // 0 = every live market
}

// BatchSync runs the periodic catalog and trades synchronization
type BatchSync struct {
	catalog CatalogClient
	feed    TradeFeedClient
	store   BatchStore
	cache   CacheInvalidator
	opts    BatchSyncOptions

	eventsLock  sync.Mutex
	marketsLock sync.Mutex
	tradesLock  sync.Mutex

	// marketsRefreshed carries at most one pending signal; the realtime
	// service drains it to resubscribe after the tracked set changed.
	marketsRefreshed chan struct{}
}

// NewBatchSync creates the batch sync service
func NewBatchSync(catalog CatalogClient, feed TradeFeedClient, st BatchStore, cache CacheInvalidator, opts BatchSyncOptions) *BatchSync {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if opts.TradesBatchSize <= 0 {
		opts.TradesBatchSize = 500
	}
	return &BatchSync{
		catalog:          catalog,
		feed:             feed,
		store:            st,
		cache:            cache,
		opts:             opts,
		marketsRefreshed: make(chan struct{}, 1),
	}
}

// MarketsRefreshed returns the channel signalled after every markets sync
// that committed changes. The channel holds at most one pending signal.
func (s *BatchSync) MarketsRefreshed() <-chan struct{} {
	return s.marketsRefreshed
}

func (s *BatchSync) signalMarketsRefreshed() {
	select {
	case s.marketsRefreshed <- struct{}{}:
	default:
	}
}

// SyncMarkets walks the /markets catalog and upserts every page. On a fresh
// database a second walk pulls closed history.
func (s *BatchSync) SyncMarkets(ctx context.Context) error {
	if !s.marketsLock.TryLock() {
		logger.Info("markets sync already running, skipping tick")
		return nil
	}
	defer s.marketsLock.Unlock()

	runID := uuid.NewString()
	if err := s.store.SetSyncState(ctx, models.SyncEntityMarkets, models.SyncStatusSyncing, nil, models.JSONMap{"run_id": runID}, ""); err != nil {
		logger.Error("failed to mark markets sync running: %v", err)
	}

	passes := []bool{false}
	if fresh, err := s.isFreshDatabase(ctx); err != nil {
		return s.failSync(ctx, models.SyncEntityMarkets, fmt.Errorf("freshness probe failed: %w", err))
	} else if fresh {
		logger.Info("fresh database detected, markets sync will include closed history")
		passes = append(passes, true)
	}

	total := 0
	for _, closed := range passes {
		n, err := s.syncMarketsPass(ctx, closed)
		total += n
		if err != nil {
			return s.failSync(ctx, models.SyncEntityMarkets, err)
		}
	}

	now := time.Now().UTC()
	meta := models.JSONMap{"run_id": runID, "markets_synced": total}
	if err := s.store.SetSyncState(ctx, models.SyncEntityMarkets, models.SyncStatusIdle, &now, meta, ""); err != nil {
		logger.Error("failed to record markets sync state: %v", err)
	}

	s.cache.InvalidateMarketData(ctx)
	s.signalMarketsRefreshed()
	logger.Info("markets sync complete: %d markets", total)
	return nil
}

func (s *BatchSync) syncMarketsPass(ctx context.Context, closed bool) (int, error) {
	total := 0
	for offset := 0; ; offset += s.opts.PageSize {
		page, err := s.catalog.ListMarkets(ctx, gamma.ListParams{
			Limit:  s.opts.PageSize,
			Offset: offset,
			Closed: closed,
		})
		if err != nil {
			return total, fmt.Errorf("markets page at offset %d failed: %w", offset, err)
		}
		if len(page) == 0 {
			return total, nil
		}

		rows := make([]models.Market, 0, len(page))
		for i := range page {
			m := page[i].ToModel()
			if m.ID == "" {
				logger.Warn("skipping market with empty id (slug %q)", page[i].Slug)
				continue
			}
			if !hasTokenIDs(m.OutcomeTokenIDs) {
				logger.Warn("market %s has no outcome token ids", m.ID)
			}
			rows = append(rows, m)
		}

		if err := s.store.UpsertMarkets(ctx, rows); err != nil {
			return total, fmt.Errorf("markets upsert at offset %d failed: %w", offset, err)
		}
		total += len(rows)

		// A short page is the end of the feed
		if len(page) < s.opts.PageSize {
			return total, nil
		}
	}
}

// SyncEvents walks the /events catalog, upserts every page and then assigns
// event_id for all (market, event) pairs seen in nested children.
func (s *BatchSync) SyncEvents(ctx context.Context) error {
	if !s.eventsLock.TryLock() {
		logger.Info("events sync already running, skipping tick")
		return nil
	}
	defer s.eventsLock.Unlock()

	runID := uuid.NewString()
	if err := s.store.SetSyncState(ctx, models.SyncEntityEvents, models.SyncStatusSyncing, nil, models.JSONMap{"run_id": runID}, ""); err != nil {
		logger.Error("failed to mark events sync running: %v", err)
	}

	passes := []bool{false}
	if fresh, err := s.isFreshDatabase(ctx); err != nil {
		return s.failSync(ctx, models.SyncEntityEvents, fmt.Errorf("freshness probe failed: %w", err))
	} else if fresh {
		passes = append(passes, true)
	}

	total := 0
	var links []store.MarketEventLink
	for _, closed := range passes {
		n, passLinks, err := s.syncEventsPass(ctx, closed)
		total += n
		links = append(links, passLinks...)
		if err != nil {
			return s.failSync(ctx, models.SyncEntityEvents, err)
		}
	}

	if err := s.store.LinkMarketsToEvents(ctx, links); err != nil {
		return s.failSync(ctx, models.SyncEntityEvents, fmt.Errorf("market linkage failed: %w", err))
	}

	now := time.Now().UTC()
	meta := models.JSONMap{"run_id": runID, "events_synced": total, "markets_linked": len(links)}
	if err := s.store.SetSyncState(ctx, models.SyncEntityEvents, models.SyncStatusIdle, &now, meta, ""); err != nil {
		logger.Error("failed to record events sync state: %v", err)
	}

	s.cache.InvalidateMarketData(ctx)
	logger.Info("events sync complete: %d events, %d market links", total, len(links))
	return nil
}

func (s *BatchSync) syncEventsPass(ctx context.Context, closed bool) (int, []store.MarketEventLink, error) {
	total := 0
	var links []store.MarketEventLink

	for offset := 0; ; offset += s.opts.PageSize {
		page, err := s.catalog.ListEvents(ctx, gamma.ListParams{
			Limit:  s.opts.PageSize,
			Offset: offset,
			Closed: closed,
		})
		if err != nil {
			return total, links, fmt.Errorf("events page at offset %d failed: %w", offset, err)
		}
		if len(page) == 0 {
			return total, links, nil
		}

		rows := make([]models.Event, 0, len(page))
		for i := range page {
			e := &page[i]
			if e.ID == "" {
				logger.Warn("skipping event with empty id (slug %q)", e.Slug)
				continue
			}
			rows = append(rows, e.ToModel())

			for j := range e.Markets {
				if e.Markets[j].ID == "" {
					continue
				}
				links = append(links, store.MarketEventLink{MarketID: e.Markets[j].ID, EventID: e.ID})
			}
		}

		if err := s.store.UpsertEvents(ctx, rows); err != nil {
			return total, links, fmt.Errorf("events upsert at offset %d failed: %w", offset, err)
		}
		total += len(rows)

		if len(page) < s.opts.PageSize {
			return total, links, nil
		}
	}
}

// SyncRecentTrades pulls one batch of the global trades feed and keeps the
// executions that belong to tracked outcome tokens.
func (s *BatchSync) SyncRecentTrades(ctx context.Context) error {
	if !s.tradesLock.TryLock() {
		logger.Info("trades sync already running, skipping tick")
		return nil
	}
	defer s.tradesLock.Unlock()

	runID := uuid.NewString()
	if err := s.store.SetSyncState(ctx, models.SyncEntityTrades, models.SyncStatusSyncing, nil, models.JSONMap{"run_id": runID}, ""); err != nil {
		logger.Error("failed to mark trades sync running: %v", err)
	}

	markets, err := s.store.LiveMarkets(ctx, s.opts.TradesMarketLimit)
	if err != nil {
		return s.failSync(ctx, models.SyncEntityTrades, fmt.Errorf("failed to load tracked markets: %w", err))
	}

	tokenToMarket := make(map[string]string)
	for i := range markets {
		for _, tokenID := range markets[i].OutcomeTokenIDs {
			if tokenID != "" {
				tokenToMarket[tokenID] = markets[i].ID
			}
		}
	}

	feed, err := s.feed.GetTrades(ctx, s.opts.TradesBatchSize)
	if err != nil {
		return s.failSync(ctx, models.SyncEntityTrades, fmt.Errorf("trades feed fetch failed: %w", err))
	}

	rows := make([]models.Trade, 0, len(feed))
	for _, t := range feed {
		marketID, tracked := tokenToMarket[t.Asset]
		if !tracked {
			continue
		}
		rows = append(rows, models.Trade{
			ID:              models.TradeID(t.Asset, t.Side, t.Price, t.Size, t.Timestamp, t.TransactionHash, t.ProxyWallet),
			MarketID:        marketID,
			TokenID:         t.Asset,
			Side:            t.Side,
			Price:           t.Price,
			Size:            t.Size,
			Timestamp:       time.Unix(t.Timestamp, 0).UTC(),
			TransactionHash: t.TransactionHash,
			ProxyWallet:     t.ProxyWallet,
		})
	}

	inserted, err := s.store.InsertTrades(ctx, rows)
	if err != nil {
		return s.failSync(ctx, models.SyncEntityTrades, fmt.Errorf("trades insert failed: %w", err))
	}

	now := time.Now().UTC()
	meta := models.JSONMap{
		"run_id":   runID,
		"fetched":  len(feed),
		"matched":  len(rows),
		"inserted": inserted,
	}
	if err := s.store.SetSyncState(ctx, models.SyncEntityTrades, models.SyncStatusIdle, &now, meta, ""); err != nil {
		logger.Error("failed to record trades sync state: %v", err)
	}

	logger.Info("trades sync complete: %d fetched, %d matched, %d inserted", len(feed), len(rows), inserted)
	return nil
}

// MarkTradesSyncDisabled records the disabled status once at startup so the
// status surface can tell "off" apart from "broken".
func (s *BatchSync) MarkTradesSyncDisabled(ctx context.Context) {
	if err := s.store.SetSyncState(ctx, models.SyncEntityTrades, models.SyncStatusDisabled, nil, nil, ""); err != nil {
		logger.Error("failed to record disabled trades sync: %v", err)
	}
}

// hasTokenIDs reports whether any token slot is populated; tokenless markets
// keep empty-string slots to stay parallel with outcomes.
func hasTokenIDs(tokens []string) bool {
	for _, t := range tokens {
		if t != "" {
			return true
		}
	}
	return false
}

func (s *BatchSync) isFreshDatabase(ctx context.Context) (bool, error) {
	count, err := s.store.CountClosedMarkets(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *BatchSync) failSync(ctx context.Context, entity string, err error) error {
	logger.Error("%s sync failed: %v", entity, err)
	if stateErr := s.store.SetSyncState(ctx, entity, models.SyncStatusError, nil, nil, err.Error()); stateErr != nil {
		logger.Error("failed to record %s sync error: %v", entity, stateErr)
	}
	return err
}
