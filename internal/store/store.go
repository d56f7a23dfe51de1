/**
 * @description
 * Transactional store over PostgreSQL (GORM) for the indexer's write path.
 * Owns the catalog merge rule: scalar fields take the incoming value,
 * closed/archived are monotonic (OR-merged), active is recomputed from the
 * merged flags, and the market path never touches event_id. The derived
 * search vectors are rebuilt inside the same transaction so a page upsert is
 * atomic.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgconn: deadlock/serialization error codes
 */

package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/polyndex/indexer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	upsertChunkSize  = 500
	linkChunkSize    = 5000
	upsertMaxRetries = 5
)

// Store wraps the shared *gorm.DB with the indexer's write operations
type Store struct {
	DB *gorm.DB

	queryTimeout time.Duration
}

// New creates a store around an initialized GORM handle. queryTimeout bounds
// every store operation; <= 0 disables the bound.
func New(db *gorm.DB, queryTimeout time.Duration) *Store {
	return &Store{DB: db, queryTimeout: queryTimeout}
}

// opCtx derives the per-operation context from the configured query timeout
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// eventUpsertAssignments is the events merge rule: scalar fields take the
// incoming value, closed/archived only ever flip to true, active is
// recomputed from the merged flags.
func eventUpsertAssignments() map[string]interface{} {
	return map[string]interface{}{
		"title":       gorm.Expr("EXCLUDED.title"),
		"slug":        gorm.Expr("EXCLUDED.slug"),
		"description": gorm.Expr("EXCLUDED.description"),
		"image_url":   gorm.Expr("EXCLUDED.image_url"),
		"icon_url":    gorm.Expr("EXCLUDED.icon_url"),
		"start_date":  gorm.Expr("EXCLUDED.start_date"),
		"end_date":    gorm.Expr("EXCLUDED.end_date"),
		"volume":      gorm.Expr("EXCLUDED.volume"),
		"volume_24h":  gorm.Expr("EXCLUDED.volume_24h"),
		"liquidity":   gorm.Expr("EXCLUDED.liquidity"),
		"tags":        gorm.Expr("EXCLUDED.tags"),
		"closed":      gorm.Expr("events.closed OR EXCLUDED.closed"),
		"archived":    gorm.Expr("events.archived OR EXCLUDED.archived"),
		"active": gorm.Expr(
			"CASE WHEN events.closed OR EXCLUDED.closed OR events.archived OR EXCLUDED.archived THEN FALSE ELSE EXCLUDED.active END"),
		"updated_at": gorm.Expr("NOW()"),
	}
}

// UpsertEvents writes one catalog page of events in a single transaction,
// applying the merge rule and rebuilding the search vectors of touched rows.
func (s *Store) UpsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withDeadlockRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.Assignments(eventUpsertAssignments()),
			}).CreateInBatches(events, upsertChunkSize).Error
			if err != nil {
				return fmt.Errorf("failed to upsert events: %w", err)
			}

			return tx.Exec(`
				UPDATE events SET search_vector =
					setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
					setweight(to_tsvector('english', coalesce(description, '')), 'B')
				WHERE id IN ?`, ids).Error
		})
	})
}

// marketUpsertAssignments is the markets merge rule. event_id and
// price_updated_at are deliberately absent: only the event-path linkage may
// assign event_id, and only the realtime flush touches price_updated_at.
func marketUpsertAssignments() map[string]interface{} {
	return map[string]interface{}{
		"condition_id":      gorm.Expr("EXCLUDED.condition_id"),
		"question":          gorm.Expr("EXCLUDED.question"),
		"description":       gorm.Expr("EXCLUDED.description"),
		"slug":              gorm.Expr("EXCLUDED.slug"),
		"outcomes":          gorm.Expr("EXCLUDED.outcomes"),
		"outcome_token_ids": gorm.Expr("EXCLUDED.outcome_token_ids"),
		"outcome_prices":    gorm.Expr("EXCLUDED.outcome_prices"),
		"best_bid":          gorm.Expr("EXCLUDED.best_bid"),
		"best_ask":          gorm.Expr("EXCLUDED.best_ask"),
		"spread":            gorm.Expr("EXCLUDED.spread"),
		"last_trade_price":  gorm.Expr("EXCLUDED.last_trade_price"),
		"volume":            gorm.Expr("EXCLUDED.volume"),
		"volume_24h":        gorm.Expr("EXCLUDED.volume_24h"),
		"liquidity":         gorm.Expr("EXCLUDED.liquidity"),
		"category":          gorm.Expr("EXCLUDED.category"),
		"end_date":          gorm.Expr("EXCLUDED.end_date"),
		"closed":            gorm.Expr("markets.closed OR EXCLUDED.closed"),
		"archived":          gorm.Expr("markets.archived OR EXCLUDED.archived"),
		"resolved":          gorm.Expr("markets.resolved OR EXCLUDED.resolved"),
		"winning_outcome":   gorm.Expr("CASE WHEN EXCLUDED.resolved THEN EXCLUDED.winning_outcome ELSE markets.winning_outcome END"),
		"active": gorm.Expr(
			"CASE WHEN markets.closed OR EXCLUDED.closed OR markets.archived OR EXCLUDED.archived THEN FALSE ELSE EXCLUDED.active END"),
		"updated_at": gorm.Expr("NOW()"),
	}
}

// UpsertMarkets writes one catalog page of markets in a single transaction
func (s *Store) UpsertMarkets(ctx context.Context, markets []models.Market) error {
	if len(markets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withDeadlockRetry(func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.Assignments(marketUpsertAssignments()),
			}).CreateInBatches(markets, upsertChunkSize).Error
			if err != nil {
				return fmt.Errorf("failed to upsert markets: %w", err)
			}

			return tx.Exec(`
				UPDATE markets SET search_vector =
					setweight(to_tsvector('english', coalesce(question, '')), 'A') ||
					setweight(to_tsvector('english', coalesce(description, '')), 'B')
				WHERE id IN ?`, ids).Error
		})
	})
}

// MarketEventLink is one (market, event) pair collected from nested catalog
// responses.
type MarketEventLink struct {
	MarketID string
	EventID  string
}

// linkStatement builds the linkage UPDATE for n pairs. The VALUES row list
// is generated here because a slice placeholder expands into a single row
// constructor, not n two-column rows.
func linkStatement(n int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = "(?, ?)"
	}
	return fmt.Sprintf(`
		UPDATE markets AS m SET event_id = v.event_id
		FROM (VALUES %s) AS v(market_id, event_id)
		WHERE m.id = v.market_id`, strings.Join(rows, ", "))
}

// linkArgs flattens the pairs in statement order
func linkArgs(chunk []MarketEventLink) []interface{} {
	args := make([]interface{}, 0, len(chunk)*2)
	for _, l := range chunk {
		args = append(args, l.MarketID, l.EventID)
	}
	return args
}

// LinkMarketsToEvents assigns event_id for all collected pairs in chunks of
// at most 5000 rows per statement.
func (s *Store) LinkMarketsToEvents(ctx context.Context, links []MarketEventLink) error {
	for start := 0; start < len(links); start += linkChunkSize {
		end := start + linkChunkSize
		if end > len(links) {
			end = len(links)
		}
		chunk := links[start:end]

		err := s.withDeadlockRetry(func() error {
			chunkCtx, cancel := s.opCtx(ctx)
			defer cancel()
			return s.DB.WithContext(chunkCtx).Exec(linkStatement(len(chunk)), linkArgs(chunk)...).Error
		})
		if err != nil {
			return fmt.Errorf("failed to link markets to events: %w", err)
		}
	}
	return nil
}

// withDeadlockRetry retries on Postgres deadlock (40P01) and serialization
// failure (40001) with jittered backoff, mirroring how concurrent upserts and
// the audit writer occasionally collide.
func (s *Store) withDeadlockRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= upsertMaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if pgErr, ok := err.(*pgconn.PgError); ok && (pgErr.Code == "40P01" || pgErr.Code == "40001") {
			backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
			time.Sleep(backoff)
			continue
		}
		return err
	}
	return err
}
