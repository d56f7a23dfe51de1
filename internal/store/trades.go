/**
 * @description
 * Trade write path. Trade rows carry a content-derived primary key, so the
 * insert is a plain ON CONFLICT DO NOTHING: replaying an overlapping feed
 * window is harmless.
 */

package store

import (
	"context"

	"github.com/polyndex/indexer/internal/models"
	"gorm.io/gorm/clause"
)

// InsertTrades appends trades, dropping rows whose content hash already
// exists. Returns the number of newly inserted rows.
func (s *Store) InsertTrades(ctx context.Context, trades []models.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(trades, upsertChunkSize)
	return res.RowsAffected, res.Error
}
