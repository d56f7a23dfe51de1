/**
 * @description
 * Realtime price ingestion manager.
 * Derives the token universe from live markets, spreads it across N
 * WebSocket shards by a stable FNV-1a hash, funnels parsed price changes
 * into the latest-wins buffer, and flushes the buffer to the database on a
 * fixed timer. Successful flushes are also published to the Redis
 * market:price_updates channel for downstream consumers.
 *
 * The aggregate connection state is mirrored into the `prices` sync_state
 * row (connected when any shard is connected), written only on change.
 *
 * @dependencies
 * - internal/store, internal/models
 * - github.com/gorilla/websocket (via ws_shard)
 * - github.com/redis/go-redis/v9: price update fan-out
 */

package services

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
	"github.com/polyndex/indexer/internal/store"
	"github.com/redis/go-redis/v9"
)

// PriceUpdatesChannel is the Redis pub/sub channel carrying flushed updates
const PriceUpdatesChannel = "market:price_updates"

// RealtimeStore is the store surface the realtime manager uses
type RealtimeStore interface {
	TokenToMarket(ctx context.Context, limit int) (map[string]string, error)
	ApplyPriceUpdates(ctx context.Context, updates map[string][]store.PriceUpdate) (int, error)
	SetSyncState(ctx context.Context, entity, status string, lastSyncAt *time.Time, metadata models.JSONMap, syncErr string) error
}

// RealtimeOptions holds the realtime manager knobs
type RealtimeOptions struct {
	WSURL         string
	Connections   int
	FlushInterval time.Duration
	ReconnectBase time.Duration
	MaxReconnects int
}

// Realtime ingests websocket price updates for every live market
type Realtime struct {
	store RealtimeStore
	redis *redis.Client
	opts  RealtimeOptions

	buffer *PriceBuffer
	shards []*wsShard

	// tokenToMarket is replaced wholesale on every universe reload
	tokenMu       sync.RWMutex
	tokenToMarket map[string]string

	flushLock  sync.Mutex
	statusMu   sync.Mutex
	lastStatus string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRealtime creates the realtime manager
func NewRealtime(st RealtimeStore, redisClient *redis.Client, opts RealtimeOptions) *Realtime {
	if opts.Connections < 1 {
		opts.Connections = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = 3 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 10
	}

	r := &Realtime{
		store:         st,
		redis:         redisClient,
		opts:          opts,
		buffer:        NewPriceBuffer(),
		tokenToMarket: make(map[string]string),
	}
	for i := 0; i < opts.Connections; i++ {
		r.shards = append(r.shards, newWSShard(i, opts.WSURL, opts.ReconnectBase, opts.MaxReconnects, r.onPrice, r.onShardState))
	}
	return r
}

// shardIndex assigns a token to a shard by FNV-1a 32-bit hash, stable across
// restarts.
func shardIndex(tokenID string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(tokenID))
	return int(h.Sum32() % uint32(shards))
}

// Start loads the token universe, assigns shards and launches the receive
// loops and the flush timer.
func (r *Realtime) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	if err := r.reloadUniverse(ctx); err != nil {
		return err
	}

	for _, shard := range r.shards {
		shard := shard
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			shard.run(ctx)
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.flushLoop(ctx)
	}()

	logger.Info("realtime manager started: %d shards, %d tracked tokens", len(r.shards), r.tokenCount())
	return nil
}

// Stop cancels the receive loops, waits for them and drains one final flush
func (r *Realtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	for _, shard := range r.shards {
		shard.closeConn()
	}
	r.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.flush(ctx)
}

// Resubscribe recomputes the token universe, reshards, and subscribes the
// delta on every connected shard. No initial frame, no unsubscribe; stale
// subscriptions decay with the connection.
func (r *Realtime) Resubscribe(ctx context.Context) {
	if err := r.reloadUniverse(ctx); err != nil {
		logger.Error("resubscribe: failed to reload token universe: %v", err)
		return
	}
	for _, shard := range r.shards {
		if err := shard.subscribeDelta(ctx); err != nil {
			logger.Warn("resubscribe: shard %d delta failed: %v", shard.index, err)
		}
	}
}

// reloadUniverse rebuilds token_to_market and the per-shard assignments
func (r *Realtime) reloadUniverse(ctx context.Context) error {
	tokens, err := r.store.TokenToMarket(ctx, 0)
	if err != nil {
		return err
	}

	assignments := make([][]string, len(r.shards))
	for tokenID := range tokens {
		i := shardIndex(tokenID, len(r.shards))
		assignments[i] = append(assignments[i], tokenID)
	}

	r.tokenMu.Lock()
	r.tokenToMarket = tokens
	r.tokenMu.Unlock()

	for i, shard := range r.shards {
		shard.setAssigned(assignments[i])
	}
	return nil
}

func (r *Realtime) tokenCount() int {
	r.tokenMu.RLock()
	defer r.tokenMu.RUnlock()
	return len(r.tokenToMarket)
}

// onPrice is the shard callback; unknown tokens are dropped here
func (r *Realtime) onPrice(tokenID string, price float64, at time.Time) {
	r.tokenMu.RLock()
	marketID, tracked := r.tokenToMarket[tokenID]
	r.tokenMu.RUnlock()
	if !tracked {
		return
	}

	r.buffer.Put(store.PriceUpdate{
		MarketID:  marketID,
		TokenID:   tokenID,
		Price:     price,
		Timestamp: at,
	})
}

// onShardState recomputes the aggregate status and writes the prices
// sync_state row when it changed.
func (r *Realtime) onShardState() {
	status := models.SyncStatusDisconnected
	for _, shard := range r.shards {
		if shard.isConnected() {
			status = models.SyncStatusConnected
			break
		}
	}

	r.statusMu.Lock()
	changed := status != r.lastStatus
	r.lastStatus = status
	r.statusMu.Unlock()
	if !changed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lastSyncAt *time.Time
	if status == models.SyncStatusConnected {
		now := time.Now().UTC()
		lastSyncAt = &now
	}
	if err := r.store.SetSyncState(ctx, models.SyncEntityPrices, status, lastSyncAt, nil, ""); err != nil {
		logger.Error("failed to record realtime status %s: %v", status, err)
	}
}

func (r *Realtime) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// flush drains the buffer snapshot into the database. Serialized: a tick
// landing while the previous flush is in flight is skipped. On error the
// snapshot is restored without clobbering newer entries.
func (r *Realtime) flush(ctx context.Context) {
	if !r.flushLock.TryLock() {
		return
	}
	defer r.flushLock.Unlock()

	groups := r.buffer.Drain()
	if len(groups) == 0 {
		return
	}

	applied, err := r.store.ApplyPriceUpdates(ctx, groups)
	if err != nil {
		logger.Error("price flush failed, retrying next tick: %v", err)
		r.buffer.Restore(groups)
		return
	}

	r.publishUpdates(ctx, groups)

	// Refresh last_sync_at so prices staleness tracks actual flushes, not
	// just connection transitions.
	now := time.Now().UTC()
	if err := r.store.SetSyncState(ctx, models.SyncEntityPrices, r.currentStatus(), &now, nil, ""); err != nil {
		logger.Error("failed to record price flush state: %v", err)
	}
	logger.Info("price flush: %d markets updated", applied)
}

func (r *Realtime) currentStatus() string {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	if r.lastStatus == "" {
		return models.SyncStatusConnected
	}
	return r.lastStatus
}

// priceUpdatePayload is the wire shape published to Redis subscribers
type priceUpdatePayload struct {
	MarketID  string  `json:"market_id"`
	TokenID   string  `json:"token_id"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

func (r *Realtime) publishUpdates(ctx context.Context, groups map[string][]store.PriceUpdate) {
	if r.redis == nil {
		return
	}

	var payload []priceUpdatePayload
	for _, updates := range groups {
		for _, u := range updates {
			payload = append(payload, priceUpdatePayload{
				MarketID:  u.MarketID,
				TokenID:   u.TokenID,
				Price:     u.Price,
				Timestamp: u.Timestamp.UnixMilli(),
			})
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := r.redis.Publish(ctx, PriceUpdatesChannel, data).Err(); err != nil {
		logger.Warn("failed to publish price updates: %v", err)
	}
}
