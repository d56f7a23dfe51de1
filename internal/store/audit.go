/**
 * @description
 * Audit write paths: CLOB-driven closure propagation and the pure-SQL
 * expiration audit. Both touch only open rows; closed and resolved history
 * is never reshuffled.
 */

package store

import (
	"context"

	"gorm.io/gorm"
)

// ApplyClosures marks the given markets closed and then closes every listed
// event whose remaining linked markets are all non-live, in one transaction.
func (s *Store) ApplyClosures(ctx context.Context, marketIDs, eventIDs []string) (closedMarkets, closedEvents int64, err error) {
	if len(marketIDs) == 0 && len(eventIDs) == 0 {
		return 0, 0, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.withDeadlockRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if len(marketIDs) > 0 {
				res := tx.Exec(`
					UPDATE markets
					SET closed = TRUE, active = FALSE, updated_at = NOW()
					WHERE id IN ? AND NOT closed`, marketIDs)
				if res.Error != nil {
					return res.Error
				}
				closedMarkets = res.RowsAffected
			}

			if len(eventIDs) > 0 {
				res := tx.Exec(`
					UPDATE events e
					SET closed = TRUE, active = FALSE, updated_at = NOW()
					WHERE e.id IN ? AND NOT e.closed
					AND NOT EXISTS (
						SELECT 1 FROM markets m
						WHERE m.event_id = e.id
						AND m.active AND NOT m.closed AND NOT m.archived
					)`, eventIDs)
				if res.Error != nil {
					return res.Error
				}
				closedEvents = res.RowsAffected
			}

			return nil
		})
	})
	return closedMarkets, closedEvents, err
}

// ExpirationResult reports rows deactivated by one expiration audit pass
type ExpirationResult struct {
	ExpiredMarkets int64
	ExpiredEvents  int64
	OrphanEvents   int64
}

// Changed reports whether the pass deactivated anything
func (r ExpirationResult) Changed() bool {
	return r.ExpiredMarkets > 0 || r.ExpiredEvents > 0 || r.OrphanEvents > 0
}

// RunExpirationAudit deactivates open markets and events whose end date has
// passed, plus open events with no live market left. Idempotent: a second
// run right after the first touches nothing.
func (s *Store) RunExpirationAudit(ctx context.Context) (ExpirationResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var result ExpirationResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE markets
			SET active = FALSE, updated_at = NOW()
			WHERE active AND NOT closed AND end_date IS NOT NULL AND end_date < NOW()`)
		if res.Error != nil {
			return res.Error
		}
		result.ExpiredMarkets = res.RowsAffected

		res = tx.Exec(`
			UPDATE events
			SET active = FALSE, updated_at = NOW()
			WHERE active AND NOT closed AND end_date IS NOT NULL AND end_date < NOW()`)
		if res.Error != nil {
			return res.Error
		}
		result.ExpiredEvents = res.RowsAffected

		res = tx.Exec(`
			UPDATE events e
			SET active = FALSE, updated_at = NOW()
			WHERE e.active AND NOT e.closed
			AND NOT EXISTS (
				SELECT 1 FROM markets m
				WHERE m.event_id = e.id
				AND m.active AND NOT m.closed AND NOT m.archived
			)`)
		if res.Error != nil {
			return res.Error
		}
		result.OrphanEvents = res.RowsAffected

		return nil
	})

	return result, err
}
