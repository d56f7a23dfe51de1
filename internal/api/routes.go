/**
 * @description
 * Read-only health/status surface for the indexer.
 * GET /health checks the database and Redis connections; GET /api/v1/status
 * reports every sync_state row plus a staleness verdict so operators can see
 * at a glance which sync task is behind.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - gorm.io/gorm, github.com/redis/go-redis/v9: connection probes
 */

package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/polyndex/indexer/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// entityStatus is one sync_state row plus the computed staleness
type entityStatus struct {
	Status     string                 `json:"status"`
	LastSyncAt *time.Time             `json:"last_sync_at"`
	Stale      bool                   `json:"stale"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Deps carries everything the route handlers need
type Deps struct {
	DB             *gorm.DB
	Redis          *redis.Client
	States         func(ctx context.Context) (map[string]models.SyncState, error)
	StaleThreshold time.Duration
}

// SetupRoutes registers the health and status endpoints
func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		dbOK := pingDB(c.UserContext(), deps.DB)
		redisOK := pingRedis(c.UserContext(), deps.Redis)

		status := fiber.StatusOK
		verdict := "ok"
		if !dbOK || !redisOK {
			status = fiber.StatusServiceUnavailable
			verdict = "unavailable"
		}

		return c.Status(status).JSON(fiber.Map{
			"status":  verdict,
			"service": "polyndex-indexer",
			"db":      boolStatus(dbOK),
			"redis":   boolStatus(redisOK),
		})
	})

	v1 := app.Group("/api").Group("/v1")
	v1.Get("/status", func(c *fiber.Ctx) error {
		states, err := deps.States(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to read sync state",
			})
		}

		now := time.Now().UTC()
		overall := "ok"
		entities := make(map[string]entityStatus, len(states))
		for entity, state := range states {
			stale := false
			switch entity {
			case models.SyncEntityEvents, models.SyncEntityMarkets, models.SyncEntityPrices:
				stale = state.Stale(deps.StaleThreshold, now)
			}
			if state.Status == models.SyncStatusError || stale {
				overall = "degraded"
			}
			entities[entity] = entityStatus{
				Status:     state.Status,
				LastSyncAt: state.LastSyncAt,
				Stale:      stale,
				Error:      state.Error,
				Metadata:   state.Metadata,
			}
		}

		return c.JSON(fiber.Map{
			"overall":  overall,
			"entities": entities,
		})
	})
}

func pingDB(ctx context.Context, db *gorm.DB) bool {
	if db == nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func pingRedis(ctx context.Context, client *redis.Client) bool {
	if client == nil {
		return false
	}
	return client.Ping(ctx).Err() == nil
}

func boolStatus(ok bool) string {
	if ok {
		return "connected"
	}
	return "unreachable"
}
