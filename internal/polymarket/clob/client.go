/**
 * @description
 * HTTP client for the Polymarket CLOB API.
 * The CLOB is authoritative for whether a market is tradable: the catalog can
 * report a market open long after the order book is gone. Also serves the
 * per-condition price history used by the backfill.
 *
 * @dependencies
 * - internal/polymarket/rest: shared request pipeline
 * - internal/config
 */

package clob

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/polyndex/indexer/internal/config"
	"github.com/polyndex/indexer/internal/polymarket/rest"
)

// History intervals accepted by /prices-history
const (
	IntervalMax = "max"
	Interval1W  = "1w"
	Interval1D  = "1d"
	Interval6H  = "6h"
	Interval1H  = "1h"
)

// ValidInterval reports whether s is an accepted history interval
func ValidInterval(s string) bool {
	switch s {
	case IntervalMax, Interval1W, Interval1D, Interval6H, Interval1H:
		return true
	}
	return false
}

// MarketStatus is the tradability subset of GET /markets/{conditionID}
type MarketStatus struct {
	ConditionID     string `json:"condition_id"`
	Closed          bool   `json:"closed"`
	AcceptingOrders bool   `json:"accepting_orders"`
	EnableOrderBook bool   `json:"enable_order_book"`
}

// Validate checks the required subset of the response
func (m *MarketStatus) Validate() error {
	if m.ConditionID == "" {
		return &rest.ValidationError{Issues: []string{"condition_id is required"}}
	}
	return nil
}

// Tradable reports whether the CLOB will still take orders for the market
func (m *MarketStatus) Tradable() bool {
	return !m.Closed && m.AcceptingOrders && m.EnableOrderBook
}

// PricePoint is one sample in a /prices-history response
type PricePoint struct {
	Timestamp int64   `json:"t"` // unix seconds
	Price     float64 `json:"p"`
}

// PriceHistory is the /prices-history response envelope
type PriceHistory struct {
	History []PricePoint `json:"history"`
}

// Client for the Polymarket CLOB API
type Client struct {
	requester *rest.Requester
}

// NewClient creates a CLOB client from config. When L2 credentials are
// configured, every request is signed.
func NewClient(cfg *config.Config) *Client {
	creds := Credentials{
		Address:    cfg.Polymarket.Address,
		APIKey:     cfg.Polymarket.APIKey,
		Secret:     cfg.Polymarket.APISecret,
		Passphrase: cfg.Polymarket.Passphrase,
	}
	return NewClientWithBase(cfg.Polymarket.ClobURL, rest.DefaultTimeout, creds)
}

// NewClientWithBase creates a CLOB client against an explicit base URL
func NewClientWithBase(baseURL string, timeout time.Duration, creds Credentials) *Client {
	requester := rest.New(baseURL, timeout)
	if creds.Configured() {
		signer := NewSigner(creds)
		requester.Auth = signer.SignRequest
	}
	return &Client{requester: requester}
}

// GetMarket fetches the tradability status for a condition id
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*MarketStatus, error) {
	if conditionID == "" {
		return nil, &rest.ValidationError{Issues: []string{"conditionID is required"}}
	}

	var status MarketStatus
	if err := c.requester.GetJSON(ctx, "/markets/"+url.PathEscape(conditionID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetPricesHistory fetches the price time-series for a condition id over one
// of the discrete intervals (max, 1w, 1d, 6h, 1h).
func (c *Client) GetPricesHistory(ctx context.Context, conditionID, interval string) ([]PricePoint, error) {
	if conditionID == "" {
		return nil, &rest.ValidationError{Issues: []string{"conditionID is required"}}
	}
	if !ValidInterval(interval) {
		return nil, &rest.ValidationError{Issues: []string{fmt.Sprintf("invalid interval %q", interval)}}
	}

	q := url.Values{}
	q.Set("market", conditionID)
	q.Set("interval", interval)

	var history PriceHistory
	if err := c.requester.GetJSON(ctx, "/prices-history", q, &history); err != nil {
		return nil, err
	}
	return history.History, nil
}
