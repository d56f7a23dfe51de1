/**
 * @description
 * HTTP client for the Polymarket Data API.
 * Serves the global, time-ordered feed of executed trades across all
 * markets. Unauthenticated; the sync layer filters the feed against the set
 * of tracked tokens.
 *
 * @dependencies
 * - internal/polymarket/rest: shared request pipeline
 * - internal/config
 */

package data_api

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/polyndex/indexer/internal/config"
	"github.com/polyndex/indexer/internal/polymarket/rest"
)

// Trade represents a single execution from the global /trades feed
type Trade struct {
	Asset           string      `json:"asset"` // outcome token id
	ConditionID     string      `json:"conditionId"`
	Side            string      `json:"side"` // BUY or SELL
	Price           float64     `json:"price"`
	Size            float64     `json:"size"`
	Timestamp       int64       `json:"timestamp"` // unix seconds
	TransactionHash string      `json:"transactionHash"`
	ProxyWallet     string      `json:"proxyWallet"`
	Outcome         string      `json:"outcome"`
	OutcomeIndex    interface{} `json:"outcomeIndex"` // string or number; unused
}

// Client for the Polymarket Data API
type Client struct {
	requester *rest.Requester
}

// NewClient creates a Data API client from config
func NewClient(cfg *config.Config) *Client {
	return NewClientWithBase(cfg.Polymarket.DataAPIURL, rest.DefaultTimeout)
}

// NewClientWithBase creates a Data API client against an explicit base URL
func NewClientWithBase(baseURL string, timeout time.Duration) *Client {
	return &Client{requester: rest.New(baseURL, timeout)}
}

// GetTrades fetches one batch of the global trades feed, newest first
func (c *Client) GetTrades(ctx context.Context, limit int) ([]Trade, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	q.Set("takerOnly", "true")

	var trades []Trade
	if err := c.requester.GetJSON(ctx, "/trades", q, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}
