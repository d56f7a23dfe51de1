/**
 * @description
 * Market database model.
 * Maps to the 'markets' table in PostgreSQL.
 *
 * The three outcome columns are parallel arrays of equal length:
 * outcomes (labels), outcome_token_ids (CLOB asset ids), outcome_prices.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import (
	"time"
)

// Price sample sources
const (
	PriceSourceClob      = "clob"
	PriceSourceWebsocket = "websocket"
)

// Market represents a single market (binary or N-outcome) inside an event
type Market struct {
	ID          string  `gorm:"primaryKey;column:id" json:"id"`
	EventID     *string `gorm:"column:event_id;index" json:"event_id"`
	ConditionID string  `gorm:"column:condition_id;index" json:"condition_id"`
	Question    string  `gorm:"column:question" json:"question"`
	Description string  `gorm:"column:description" json:"description"`
	Slug        string  `gorm:"column:slug;index" json:"slug"`

	Outcomes        StringArray  `gorm:"column:outcomes;type:text[]" json:"outcomes"`
	OutcomeTokenIDs StringArray  `gorm:"column:outcome_token_ids;type:text[]" json:"outcome_token_ids"`
	OutcomePrices   Float64Array `gorm:"column:outcome_prices;type:numeric[]" json:"outcome_prices"`

	BestBid        float64 `gorm:"column:best_bid" json:"best_bid"`
	BestAsk        float64 `gorm:"column:best_ask" json:"best_ask"`
	Spread         float64 `gorm:"column:spread" json:"spread"`
	LastTradePrice float64 `gorm:"column:last_trade_price" json:"last_trade_price"`

	Volume    float64 `gorm:"column:volume" json:"volume"`
	Volume24h float64 `gorm:"column:volume_24h;index:idx_markets_volume_24h,sort:desc" json:"volume_24h"`
	Liquidity float64 `gorm:"column:liquidity" json:"liquidity"`

	Category string     `gorm:"column:category" json:"category"`
	EndDate  *time.Time `gorm:"column:end_date" json:"end_date"`

	Active         bool `gorm:"column:active;default:true;index:idx_markets_live,priority:1" json:"active"`
	Closed         bool `gorm:"column:closed;default:false;index:idx_markets_live,priority:2" json:"closed"`
	Archived       bool `gorm:"column:archived;default:false;index:idx_markets_live,priority:3" json:"archived"`
	Resolved       bool `gorm:"column:resolved;default:false" json:"resolved"`
	WinningOutcome int  `gorm:"column:winning_outcome;default:-1" json:"winning_outcome"` // index into outcomes; only meaningful when resolved

	PriceUpdatedAt *time.Time `gorm:"column:price_updated_at" json:"price_updated_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Market to `markets`
func (Market) TableName() string {
	return "markets"
}

// Live reports whether the market is active, not closed and not archived
func (m *Market) Live() bool {
	return m.Active && !m.Closed && !m.Archived
}

// TokenIndex returns the outcome index of a token id, or -1 when unknown
func (m *Market) TokenIndex(tokenID string) int {
	for i, id := range m.OutcomeTokenIDs {
		if id == tokenID {
			return i
		}
	}
	return -1
}
