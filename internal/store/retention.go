/**
 * @description
 * Retention sweeps over the two append-only tables. Deletes run in chunks of
 * 5000 rows with a short yield between statements so a large backlog never
 * holds long row locks against the realtime flush.
 */

package store

import (
	"context"
	"time"
)

const (
	pruneChunkSize = 5000
	pruneYield     = 100 * time.Millisecond
)

// PruneSamplesBefore deletes price samples older than cutoff, returning the
// total rows removed.
func (s *Store) PruneSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.pruneChunked(ctx, `
		DELETE FROM price_samples
		WHERE ctid IN (
			SELECT ctid FROM price_samples
			WHERE timestamp < ? LIMIT ?
		)`, cutoff)
}

// PruneTradesBefore deletes trades older than cutoff, returning the total
// rows removed.
func (s *Store) PruneTradesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.pruneChunked(ctx, `
		DELETE FROM trades
		WHERE ctid IN (
			SELECT ctid FROM trades
			WHERE timestamp < ? LIMIT ?
		)`, cutoff)
}

func (s *Store) pruneChunked(ctx context.Context, stmt string, cutoff time.Time) (int64, error) {
	var total int64
	for {
		chunkCtx, cancel := s.opCtx(ctx)
		res := s.DB.WithContext(chunkCtx).Exec(stmt, cutoff, pruneChunkSize)
		cancel()
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < pruneChunkSize {
			return total, nil
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(pruneYield):
		}
	}
}
