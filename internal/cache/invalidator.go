/**
 * @description
 * Pattern-based cache invalidation over Redis.
 * The API layer caches responses under keys shaped like "GET:/markets?...";
 * the sync tasks delete those keys by glob pattern after state changes so
 * readers never serve a market the CLOB already closed.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package cache

import (
	"context"

	"github.com/polyndex/indexer/internal/logger"
	"github.com/redis/go-redis/v9"
)

// Patterns invalidated after catalog syncs and audit state changes
const (
	PatternMarkets = "*GET:/markets*"
	PatternEvents  = "*GET:/events*"
	PatternStats   = "*GET:/stats*"
)

const scanBatchSize = 500

// Invalidator deletes cached API responses by key pattern
type Invalidator struct {
	Redis *redis.Client
}

// NewInvalidator creates a new cache invalidator
func NewInvalidator(client *redis.Client) *Invalidator {
	return &Invalidator{Redis: client}
}

// DeletePattern removes every key matching the glob pattern and returns the
// number of keys deleted. Uses SCAN instead of KEYS so a large keyspace does
// not block Redis.
func (i *Invalidator) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	var cursor uint64

	for {
		keys, next, err := i.Redis.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, err
		}

		if len(keys) > 0 {
			n, err := i.Redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// InvalidateMarketData clears every response cache that could reference
// market or event state. Errors are logged, not propagated; a stale cache
// entry expires on its own TTL anyway.
func (i *Invalidator) InvalidateMarketData(ctx context.Context) {
	for _, pattern := range []string{PatternMarkets, PatternEvents, PatternStats} {
		if _, err := i.DeletePattern(ctx, pattern); err != nil {
			logger.Error("cache invalidation failed for %s: %v", pattern, err)
		}
	}
}
