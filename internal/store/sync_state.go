/**
 * @description
 * Sync-state surface: one row per tracked entity (events, markets, trades,
 * prices, clob_audit) recording status, last success time, last error and
 * free-form metadata. Written by the sync managers, read by the status API.
 */

package store

import (
	"context"
	"time"

	"github.com/polyndex/indexer/internal/models"
	"gorm.io/gorm/clause"
)

// SetSyncState upserts the row for one entity. A nil metadata map leaves the
// stored metadata untouched; an empty error string clears the last error.
func (s *Store) SetSyncState(ctx context.Context, entity, status string, lastSyncAt *time.Time, metadata models.JSONMap, syncErr string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	row := models.SyncState{
		Entity:    entity,
		Status:    status,
		Metadata:  metadata,
		Error:     syncErr,
		UpdatedAt: time.Now().UTC(),
	}
	if lastSyncAt != nil {
		row.LastSyncAt = lastSyncAt
	}

	assignments := map[string]interface{}{
		"status":     status,
		"error":      syncErr,
		"updated_at": row.UpdatedAt,
	}
	if lastSyncAt != nil {
		assignments["last_sync_at"] = *lastSyncAt
	}
	if metadata != nil {
		assignments["metadata"] = metadata
	}

	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
}

// GetSyncStates returns all sync-state rows keyed by entity
func (s *Store) GetSyncStates(ctx context.Context) (map[string]models.SyncState, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.SyncState
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	states := make(map[string]models.SyncState, len(rows))
	for _, row := range rows {
		states[row.Entity] = row
	}
	return states, nil
}
