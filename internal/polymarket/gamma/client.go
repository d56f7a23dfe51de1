/**
 * @description
 * HTTP client for the Polymarket Gamma (catalog) API.
 * Fetches paginated events and markets. The sync layer drives pagination;
 * this client performs exactly one request per call and never retries.
 *
 * @dependencies
 * - internal/polymarket/rest: shared request pipeline
 * - internal/config
 */

package gamma

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/polyndex/indexer/internal/config"
	"github.com/polyndex/indexer/internal/polymarket/rest"
)

// Client for the Gamma catalog API
type Client struct {
	requester *rest.Requester
}

// NewClient creates a catalog client from config
func NewClient(cfg *config.Config) *Client {
	return NewClientWithBase(cfg.Polymarket.GammaURL, rest.DefaultTimeout)
}

// NewClientWithBase creates a catalog client against an explicit base URL
func NewClientWithBase(baseURL string, timeout time.Duration) *Client {
	return &Client{requester: rest.New(baseURL, timeout)}
}

// ListParams holds the pagination filter for /events and /markets
type ListParams struct {
	Limit  int
	Offset int
	Closed bool
}

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	q.Set("closed", strconv.FormatBool(p.Closed))
	q.Set("order", "id")
	q.Set("ascending", "true")
	return q
}

// ListEvents fetches one page of events, nested child markets included
func (c *Client) ListEvents(ctx context.Context, params ListParams) ([]Event, error) {
	var events []Event
	if err := c.requester.GetJSON(ctx, "/events", params.query(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListMarkets fetches one page of standalone markets
func (c *Client) ListMarkets(ctx context.Context, params ListParams) ([]Market, error) {
	var markets []Market
	if err := c.requester.GetJSON(ctx, "/markets", params.query(), &markets); err != nil {
		return nil, err
	}
	return markets, nil
}
