/**
 * @description
 * Orchestrator for the indexer's long-running tasks.
 * Owns the scheduling model: batch sync timers (events phase-shifted by half
 * a period against markets so the two catalog walks never start together),
 * trade ingestion, expiration and CLOB audits, the realtime manager, and the
 * retention sweep. Stop() cancels everything, then drains one final price
 * flush.
 *
 * @dependencies
 * - internal/services: batch sync, audit, realtime, backfill
 * - internal/store
 */

package services

import (
	"context"
	"sync"
	"time"

	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
)

const (
	expirationInterval  = 60 * time.Second
	clobAuditWarmup     = 2 * time.Minute
	retentionFirstDelay = 5 * time.Minute
	retentionInterval   = 24 * time.Hour
)

// OrchestratorStore is the store surface used directly by the orchestrator
type OrchestratorStore interface {
	PruneSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PruneTradesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetSyncStates(ctx context.Context) (map[string]models.SyncState, error)
}

// OrchestratorOptions holds the cadences the orchestrator schedules with
type OrchestratorOptions struct {
	MarketsInterval   time.Duration
	TradesInterval    time.Duration
	EnableTradesSync  bool
	ClobAuditInterval time.Duration
	StaleThreshold    time.Duration

	PriceHistoryRetentionDays int
	TradesRetentionDays       int
}

// Orchestrator starts, schedules and stops every indexer task
type Orchestrator struct {
	batch    *BatchSync
	audit    *ClobAudit
	realtime *Realtime
	store    OrchestratorStore
	opts     OrchestratorOptions

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the services together
func NewOrchestrator(batch *BatchSync, audit *ClobAudit, realtime *Realtime, st OrchestratorStore, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		batch:    batch,
		audit:    audit,
		realtime: realtime,
		store:    st,
		opts:     opts,
	}
}

// Start runs the initial sync, then launches every periodic task and the
// realtime manager.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, o.cancel = context.WithCancel(ctx)

	o.initialSync(ctx)

	if err := o.realtime.Start(ctx); err != nil {
		return err
	}

	// Markets refresh -> reshard/resubscribe
	o.spawn(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-o.batch.MarketsRefreshed():
				o.realtime.Resubscribe(ctx)
			}
		}
	})

	o.schedule(ctx, o.opts.MarketsInterval, o.opts.MarketsInterval, func() {
		_ = o.batch.SyncMarkets(ctx)
	})
	o.schedule(ctx, o.opts.MarketsInterval, o.opts.MarketsInterval/2, func() {
		_ = o.batch.SyncEvents(ctx)
	})

	if o.opts.EnableTradesSync {
		o.schedule(ctx, o.opts.TradesInterval, o.opts.TradesInterval, func() {
			_ = o.batch.SyncRecentTrades(ctx)
		})
	} else {
		o.batch.MarkTradesSyncDisabled(ctx)
	}

	o.schedule(ctx, expirationInterval, expirationInterval, func() {
		_ = o.audit.RunExpiration(ctx)
	})
	o.schedule(ctx, o.opts.ClobAuditInterval, clobAuditWarmup, func() {
		_ = o.audit.Run(ctx)
	})
	o.schedule(ctx, retentionInterval, retentionFirstDelay, func() {
		o.runRetention(ctx)
	})

	logger.Info("orchestrator started")
	return nil
}

// Stop cancels every task and waits for in-flight work. The realtime manager
// drains one final flush on its way down.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.realtime.Stop()
	logger.Info("orchestrator stopped")
}

// initialSync runs the catalog walks once before any timer fires. Failures
// are recorded in sync_state and retried on the normal cadence.
func (o *Orchestrator) initialSync(ctx context.Context) {
	if err := o.batch.SyncMarkets(ctx); err != nil {
		logger.Error("initial markets sync failed: %v", err)
	}
	if err := o.batch.SyncEvents(ctx); err != nil {
		logger.Error("initial events sync failed: %v", err)
	}
	if o.opts.EnableTradesSync {
		if err := o.batch.SyncRecentTrades(ctx); err != nil {
			logger.Error("initial trades sync failed: %v", err)
		}
	}
}

func (o *Orchestrator) runRetention(ctx context.Context) {
	if o.opts.PriceHistoryRetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -o.opts.PriceHistoryRetentionDays)
		if n, err := o.store.PruneSamplesBefore(ctx, cutoff); err != nil {
			logger.Error("price sample retention sweep failed: %v", err)
		} else if n > 0 {
			logger.Info("retention: pruned %d price samples", n)
		}
	}

	if o.opts.EnableTradesSync && o.opts.TradesRetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -o.opts.TradesRetentionDays)
		if n, err := o.store.PruneTradesBefore(ctx, cutoff); err != nil {
			logger.Error("trade retention sweep failed: %v", err)
		} else if n > 0 {
			logger.Info("retention: pruned %d trades", n)
		}
	}
}

// StatusReport is the merged view over all sync_state rows
type StatusReport struct {
	Overall  string                      `json:"overall"`
	Entities map[string]models.SyncState `json:"entities"`
}

// Status merges the per-entity sync states into one report. Overall is
// "degraded" when any entity is in error or stale, "ok" otherwise.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	states, err := o.store.GetSyncStates(ctx)
	if err != nil {
		return nil, err
	}

	overall := "ok"
	now := time.Now().UTC()
	for _, state := range states {
		if state.Status == models.SyncStatusError {
			overall = "degraded"
			break
		}
		switch state.Entity {
		case models.SyncEntityEvents, models.SyncEntityMarkets, models.SyncEntityPrices:
			if state.Stale(o.opts.StaleThreshold, now) {
				overall = "degraded"
			}
		}
	}

	return &StatusReport{Overall: overall, Entities: states}, nil
}

func (o *Orchestrator) spawn(fn func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn()
	}()
}

// schedule runs fn every interval, with a distinct first delay so staggered
// tasks don't all fire on the same tick.
func (o *Orchestrator) schedule(ctx context.Context, interval, firstDelay time.Duration, fn func()) {
	o.spawn(func() {
		first := time.NewTimer(firstDelay)
		defer first.Stop()

		select {
		case <-ctx.Done():
			return
		case <-first.C:
			fn()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	})
}
