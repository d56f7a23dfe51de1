/**
 * @description
 * Price sample database model.
 * Maps to the 'price_samples' table in PostgreSQL.
 * One row per (market, token, instant, source); duplicate inserts are dropped
 * by the unique index so both backfill and the realtime flusher can write
 * at-least-once.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import (
	"time"
)

// PriceSample represents a single observed price point for an outcome token
type PriceSample struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MarketID  string    `gorm:"column:market_id;uniqueIndex:uq_price_samples,priority:1;index:idx_price_samples_market_time,priority:1" json:"market_id"`
	TokenID   string    `gorm:"column:token_id;uniqueIndex:uq_price_samples,priority:2" json:"token_id"`
	Timestamp time.Time `gorm:"column:timestamp;uniqueIndex:uq_price_samples,priority:3;index:idx_price_samples_market_time,priority:2" json:"timestamp"`
	Price     float64   `gorm:"column:price;type:decimal(10,6)" json:"price"`
	Source    string    `gorm:"column:source;type:varchar(16);uniqueIndex:uq_price_samples,priority:4" json:"source"`
}

// TableName overrides the table name used by PriceSample to `price_samples`
func (PriceSample) TableName() string {
	return "price_samples"
}
