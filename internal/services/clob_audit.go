/**
 * @description
 * CLOB tradability audit. The catalog can keep reporting a market open long
 * after its order book is gone, so this service asks the CLOB directly for a
 * bounded set of live markets and closes the ones the book no longer takes.
 *
 * Three passes per run:
 *   1. the top live markets by 24h volume,
 *   2. the still-open tail of events that already mix open and closed
 *      markets locally,
 *   3. after closures land, the remaining open siblings of every touched
 *      event, so a dead event collapses in one run instead of dribbling
 *      across several.
 *
 * Per-market CLOB errors are logged and skipped; an unreachable CLOB must
 * never close anything.
 *
 * @dependencies
 * - internal/polymarket/clob
 * - golang.org/x/sync/errgroup: bounded concurrency for status checks
 */

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
	"github.com/polyndex/indexer/internal/polymarket/clob"
	"github.com/polyndex/indexer/internal/store"
	"golang.org/x/sync/errgroup"
)

// ClobStatusClient is the slice of the CLOB client used by the audit
type ClobStatusClient interface {
	GetMarket(ctx context.Context, conditionID string) (*clob.MarketStatus, error)
}

// AuditStore is the store surface the audit reads and writes through
type AuditStore interface {
	AuditCandidates(ctx context.Context, limit int) ([]models.Market, error)
	OpenMarketsOfMixedEvents(ctx context.Context) ([]models.Market, error)
	OpenMarketsByEventIDs(ctx context.Context, eventIDs []string) ([]models.Market, error)
	ApplyClosures(ctx context.Context, marketIDs, eventIDs []string) (int64, int64, error)
	RunExpirationAudit(ctx context.Context) (store.ExpirationResult, error)
	SetSyncState(ctx context.Context, entity, status string, lastSyncAt *time.Time, metadata models.JSONMap, syncErr string) error
}

// ClobAuditOptions holds the audit batch and concurrency knobs
type ClobAuditOptions struct {
	BatchSize int
	Workers   int
}

// ClobAudit closes markets the CLOB reports as no longer tradable
type ClobAudit struct {
	clob  ClobStatusClient
	store AuditStore
	cache CacheInvalidator
	opts  ClobAuditOptions

	lock sync.Mutex
}

// NewClobAudit creates the audit service
func NewClobAudit(clobClient ClobStatusClient, st AuditStore, cache CacheInvalidator, opts ClobAuditOptions) *ClobAudit {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &ClobAudit{clob: clobClient, store: st, cache: cache, opts: opts}
}

// Run performs one full audit pass
func (a *ClobAudit) Run(ctx context.Context) error {
	if !a.lock.TryLock() {
		logger.Info("clob audit already running, skipping tick")
		return nil
	}
	defer a.lock.Unlock()

	if err := a.store.SetSyncState(ctx, models.SyncEntityClobAudit, models.SyncStatusSyncing, nil, nil, ""); err != nil {
		logger.Error("failed to mark clob audit running: %v", err)
	}

	candidates, err := a.collectCandidates(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	deadMarkets, touchedEvents := a.checkTradability(ctx, candidates)

	// Pass 3: once an event lost markets, vet its remaining open siblings in
	// the same run.
	if len(touchedEvents) > 0 {
		siblings, err := a.store.OpenMarketsByEventIDs(ctx, touchedEvents)
		if err != nil {
			return a.fail(ctx, fmt.Errorf("failed to load event siblings: %w", err))
		}
		siblings = excludeMarkets(siblings, deadMarkets)
		moreDead, moreEvents := a.checkTradability(ctx, siblings)
		deadMarkets = append(deadMarkets, moreDead...)
		touchedEvents = mergeIDs(touchedEvents, moreEvents)
	}

	closedMarkets, closedEvents, err := a.store.ApplyClosures(ctx, deadMarkets, touchedEvents)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("failed to apply closures: %w", err))
	}

	now := time.Now().UTC()
	meta := models.JSONMap{
		"checked":        len(candidates),
		"closed_markets": closedMarkets,
		"closed_events":  closedEvents,
	}
	if err := a.store.SetSyncState(ctx, models.SyncEntityClobAudit, models.SyncStatusIdle, &now, meta, ""); err != nil {
		logger.Error("failed to record clob audit state: %v", err)
	}

	if closedMarkets > 0 || closedEvents > 0 {
		a.cache.InvalidateMarketData(ctx)
		logger.Info("clob audit closed %d markets, %d events", closedMarkets, closedEvents)
	}
	return nil
}

// RunExpiration deactivates open rows whose end date passed. Pure SQL, no
// CLOB round-trips; scheduled far more often than the tradability audit.
func (a *ClobAudit) RunExpiration(ctx context.Context) error {
	result, err := a.store.RunExpirationAudit(ctx)
	if err != nil {
		logger.Error("expiration audit failed: %v", err)
		return err
	}
	if result.Changed() {
		a.cache.InvalidateMarketData(ctx)
		logger.Info("expiration audit: %d markets, %d events, %d orphan events deactivated",
			result.ExpiredMarkets, result.ExpiredEvents, result.OrphanEvents)
	}
	return nil
}

// collectCandidates merges the volume-ranked batch with the open tail of
// mixed events, deduplicated by market id.
func (a *ClobAudit) collectCandidates(ctx context.Context) ([]models.Market, error) {
	top, err := a.store.AuditCandidates(ctx, a.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit candidates: %w", err)
	}

	mixed, err := a.store.OpenMarketsOfMixedEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mixed-event markets: %w", err)
	}

	seen := make(map[string]bool, len(top))
	out := make([]models.Market, 0, len(top)+len(mixed))
	for _, m := range append(top, mixed...) {
		if m.ConditionID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

// checkTradability asks the CLOB about each market with bounded concurrency
// and returns the ids of dead markets plus their event ids.
func (a *ClobAudit) checkTradability(ctx context.Context, markets []models.Market) (deadMarkets, touchedEvents []string) {
	var mu sync.Mutex
	eventSet := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	for i := range markets {
		m := markets[i]
		g.Go(func() error {
			status, err := a.clob.GetMarket(gctx, m.ConditionID)
			if err != nil {
				logger.Warn("clob status check failed for market %s (%s): %v", m.ID, m.ConditionID, err)
				return nil
			}
			if status.Tradable() {
				return nil
			}

			mu.Lock()
			deadMarkets = append(deadMarkets, m.ID)
			if m.EventID != nil && *m.EventID != "" {
				eventSet[*m.EventID] = true
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	for id := range eventSet {
		touchedEvents = append(touchedEvents, id)
	}
	return deadMarkets, touchedEvents
}

func (a *ClobAudit) fail(ctx context.Context, err error) error {
	logger.Error("clob audit failed: %v", err)
	if stateErr := a.store.SetSyncState(ctx, models.SyncEntityClobAudit, models.SyncStatusError, nil, nil, err.Error()); stateErr != nil {
		logger.Error("failed to record clob audit error: %v", stateErr)
	}
	return err
}

func excludeMarkets(markets []models.Market, excludeIDs []string) []models.Market {
	if len(excludeIDs) == 0 {
		return markets
	}
	drop := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		drop[id] = true
	}
	out := markets[:0]
	for _, m := range markets {
		if !drop[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

func mergeIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(a, b...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
