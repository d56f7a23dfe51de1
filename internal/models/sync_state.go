/**
 * @description
 * Sync state database model.
 * Maps to the 'sync_state' table in PostgreSQL, keyed by entity name
 * (events, markets, trades, prices, clob_audit). Consumers read this table
 * to decide whether the local mirror is fresh.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Sync statuses
const (
	SyncStatusIdle         = "idle"
	SyncStatusSyncing      = "syncing"
	SyncStatusError        = "error"
	SyncStatusConnected    = "connected"
	SyncStatusDisconnected = "disconnected"
	SyncStatusDisabled     = "disabled"
)

// Sync entity names
const (
	SyncEntityEvents    = "events"
	SyncEntityMarkets   = "markets"
	SyncEntityTrades    = "trades"
	SyncEntityPrices    = "prices"
	SyncEntityClobAudit = "clob_audit"
)

// JSONMap stores loosely structured metadata in a jsonb column
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("type assertion failed for JSONMap")
	}
}

// SyncState tracks the last outcome of each sync task
type SyncState struct {
	Entity     string     `gorm:"primaryKey;column:entity" json:"entity"`
	Status     string     `gorm:"column:status;type:varchar(16)" json:"status"`
	LastSyncAt *time.Time `gorm:"column:last_sync_at" json:"last_sync_at"`
	Metadata   JSONMap    `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Error      string     `gorm:"column:error" json:"error"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by SyncState to `sync_state`
func (SyncState) TableName() string {
	return "sync_state"
}

// Stale reports whether the entity has not synced within the threshold
func (s *SyncState) Stale(threshold time.Duration, now time.Time) bool {
	if s.LastSyncAt == nil {
		return true
	}
	return now.Sub(*s.LastSyncAt) > threshold
}
