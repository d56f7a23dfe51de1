package services

import (
	"context"
	"testing"
	"time"

	"github.com/polyndex/indexer/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeOrchStore struct {
	states       map[string]models.SyncState
	prunedBefore []time.Time
	tradesPruned bool
}

func (f *fakeOrchStore) PruneSamplesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.prunedBefore = append(f.prunedBefore, cutoff)
	return 10, nil
}

func (f *fakeOrchStore) PruneTradesBefore(context.Context, time.Time) (int64, error) {
	f.tradesPruned = true
	return 3, nil
}

func (f *fakeOrchStore) GetSyncStates(context.Context) (map[string]models.SyncState, error) {
	return f.states, nil
}

func testOrchestrator(st *fakeOrchStore, opts OrchestratorOptions) *Orchestrator {
	return NewOrchestrator(nil, nil, nil, st, opts)
}

func TestStatusMergesEntities(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeOrchStore{states: map[string]models.SyncState{
		models.SyncEntityMarkets: {Entity: models.SyncEntityMarkets, Status: models.SyncStatusIdle, LastSyncAt: &now},
		models.SyncEntityEvents:  {Entity: models.SyncEntityEvents, Status: models.SyncStatusIdle, LastSyncAt: &now},
	}}
	o := testOrchestrator(st, OrchestratorOptions{StaleThreshold: 15 * time.Minute})

	report, err := o.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", report.Overall)
	require.Len(t, report.Entities, 2)
}

func TestStatusDegradedOnStaleCatalog(t *testing.T) {
	stale := time.Now().UTC().Add(-time.Hour)
	st := &fakeOrchStore{states: map[string]models.SyncState{
		models.SyncEntityMarkets: {Entity: models.SyncEntityMarkets, Status: models.SyncStatusIdle, LastSyncAt: &stale},
	}}
	o := testOrchestrator(st, OrchestratorOptions{StaleThreshold: 15 * time.Minute})

	report, err := o.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "degraded", report.Overall)
}

func TestStatusDegradedOnStalePrices(t *testing.T) {
	now := time.Now().UTC()
	stale := now.Add(-time.Hour)
	st := &fakeOrchStore{states: map[string]models.SyncState{
		models.SyncEntityMarkets: {Entity: models.SyncEntityMarkets, Status: models.SyncStatusIdle, LastSyncAt: &now},
		models.SyncEntityPrices:  {Entity: models.SyncEntityPrices, Status: models.SyncStatusConnected, LastSyncAt: &stale},
	}}
	o := testOrchestrator(st, OrchestratorOptions{StaleThreshold: 15 * time.Minute})

	report, err := o.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "degraded", report.Overall)
}

func TestStatusDegradedOnError(t *testing.T) {
	st := &fakeOrchStore{states: map[string]models.SyncState{
		models.SyncEntityClobAudit: {Entity: models.SyncEntityClobAudit, Status: models.SyncStatusError, Error: "boom"},
	}}
	o := testOrchestrator(st, OrchestratorOptions{StaleThreshold: 15 * time.Minute})

	report, err := o.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "degraded", report.Overall)
}

func TestRetentionWindows(t *testing.T) {
	st := &fakeOrchStore{}
	o := testOrchestrator(st, OrchestratorOptions{
		EnableTradesSync:          true,
		PriceHistoryRetentionDays: 30,
		TradesRetentionDays:       7,
	})

	o.runRetention(context.Background())
	require.Len(t, st.prunedBefore, 1)
	require.True(t, st.tradesPruned)

	// Cutoff sits ~30 days in the past
	want := time.Now().UTC().AddDate(0, 0, -30)
	require.WithinDuration(t, want, st.prunedBefore[0], time.Minute)
}

func TestRetentionSkipsTradesWhenDisabled(t *testing.T) {
	st := &fakeOrchStore{}
	o := testOrchestrator(st, OrchestratorOptions{
		EnableTradesSync:          false,
		PriceHistoryRetentionDays: 30,
		TradesRetentionDays:       7,
	})

	o.runRetention(context.Background())
	require.False(t, st.tradesPruned, "trade retention must not run when trades sync is disabled")
}
