/**
 * @description
 * Trade database model.
 * Maps to the 'trades' table in PostgreSQL. Append-only; the primary key is a
 * content hash so re-ingesting the same trade is a no-op.
 *
 * @dependencies
 * - gorm.io/gorm
 * - crypto/sha256
 */

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Trade represents an executed trade observed on the global feed
type Trade struct {
	ID              string    `gorm:"primaryKey;column:id" json:"id"`
	MarketID        string    `gorm:"column:market_id;index:idx_trades_market_time,priority:1" json:"market_id"`
	TokenID         string    `gorm:"column:token_id" json:"token_id"`
	Side            string    `gorm:"column:side;type:varchar(4)" json:"side"` // BUY or SELL
	Price           float64   `gorm:"column:price;type:decimal(10,6)" json:"price"`
	Size            float64   `gorm:"column:size;type:decimal(20,6)" json:"size"`
	Timestamp       time.Time `gorm:"column:timestamp;index:idx_trades_market_time,priority:2" json:"timestamp"`
	TransactionHash string    `gorm:"column:transaction_hash" json:"transaction_hash"`
	ProxyWallet     string    `gorm:"column:proxy_wallet" json:"proxy_wallet"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by Trade to `trades`
func (Trade) TableName() string {
	return "trades"
}

// TradeID derives a deterministic id from the trade content. Upstream
// sometimes omits its own id, and the same trade can show up in more than one
// feed batch, so the id must be a pure function of the tuple.
func TradeID(tokenID, side string, price, size float64, timestamp int64, txHash, proxyWallet string) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s",
		tokenID,
		side,
		strconv.FormatFloat(price, 'f', -1, 64),
		strconv.FormatFloat(size, 'f', -1, 64),
		timestamp,
		txHash,
		proxyWallet,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
