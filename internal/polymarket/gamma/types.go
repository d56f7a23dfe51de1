/**
 * @description
 * Type definitions for the Polymarket Gamma (catalog) API responses.
 * These structs map to the JSON returned by /events and /markets.
 *
 * Gamma is inconsistent about types: numeric fields arrive as strings or
 * numbers, and array fields (outcomes, outcomePrices, clobTokenIds) arrive as
 * JSON-encoded strings. Everything is normalized here before it reaches the
 * store. Unknown fields pass through untouched.
 */

package gamma

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/polyndex/indexer/internal/models"
)

// DefaultOutcomes is the fallback when a market's outcomes field is unparsable
var DefaultOutcomes = []string{"Yes", "No"}

// Event represents an event object from the Gamma API
type Event struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   string      `json:"startDate"` // Gamma returns ISO strings
	EndDate     string      `json:"endDate"`
	Image       string      `json:"image"`
	Icon        string      `json:"icon"`
	Active      bool        `json:"active"`
	Closed      bool        `json:"closed"`
	Archived    bool        `json:"archived"`
	Markets     []Market    `json:"markets"` // nested children; may be absent
	Tags        []Tag       `json:"tags"`
	Volume      interface{} `json:"volume"` // string or number
	Volume24h   interface{} `json:"volume24hr"`
	Liquidity   interface{} `json:"liquidity"`
}

// Market represents a market object from the Gamma API
type Market struct {
	ID             string      `json:"id"`
	ConditionID    string      `json:"conditionId"`
	Slug           string      `json:"slug"`
	Question       string      `json:"question"`
	Description    string      `json:"description"`
	Category       string      `json:"category"`
	EndDate        string      `json:"endDate"` // ISO string
	Outcomes       interface{} `json:"outcomes"` // JSON string "[\"Yes\",\"No\"]" or array
	OutcomePrices  interface{} `json:"outcomePrices"`
	ClobTokenIds   interface{} `json:"clobTokenIds"`
	Volume         interface{} `json:"volume"`
	Volume24h      interface{} `json:"volume24hr"`
	Liquidity      interface{} `json:"liquidity"`
	BestBid        interface{} `json:"bestBid"`
	BestAsk        interface{} `json:"bestAsk"`
	Spread         interface{} `json:"spread"`
	LastTradePrice interface{} `json:"lastTradePrice"`
	Active         bool        `json:"active"`
	Closed         bool        `json:"closed"`
	Archived       bool        `json:"archived"`
}

// Tag represents a tag object
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// ToModel converts a Gamma event to the internal DB model.
// Nested markets are not converted here; the sync only uses them for
// event_id linkage.
func (e *Event) ToModel() models.Event {
	var tags []string
	for _, t := range e.Tags {
		tags = append(tags, t.Slug)
	}

	return models.Event{
		ID:          e.ID,
		Title:       e.Title,
		Slug:        e.Slug,
		Description: e.Description,
		ImageURL:    e.Image,
		IconURL:     e.Icon,
		StartDate:   parseTimeSafe(e.StartDate),
		EndDate:     parseTimeSafe(e.EndDate),
		Volume:      parseFloatSafe(e.Volume),
		Volume24h:   parseFloatSafe(e.Volume24h),
		Liquidity:   parseFloatSafe(e.Liquidity),
		Active:      e.Active,
		Closed:      e.Closed,
		Archived:    e.Archived,
		Tags:        tags,
	}
}

// ToModel converts a Gamma market to the internal DB model
func (m *Market) ToModel() models.Market {
	outcomes := ParseStringList(m.Outcomes)
	if len(outcomes) == 0 {
		outcomes = append([]string(nil), DefaultOutcomes...)
	}
	tokenIDs := ParseStringList(m.ClobTokenIds)
	prices := ParseFloatList(m.OutcomePrices)

	// The three sequences must stay parallel so downstream index math is
	// always safe. Token ids anchor the length when present; a market without
	// token ids (absent or unparsable clobTokenIds) is anchored on outcomes
	// and carries empty-string token slots.
	n := len(tokenIDs)
	if n == 0 {
		n = len(outcomes)
	}
	outcomes = fitStrings(outcomes, n)
	tokenIDs = fitStrings(tokenIDs, n)
	prices = fitFloats(prices, n)

	resolved, winner := deriveResolution(m.Closed, prices)

	return models.Market{
		ID:              m.ID,
		ConditionID:     m.ConditionID,
		Question:        m.Question,
		Description:     m.Description,
		Slug:            m.Slug,
		Outcomes:        outcomes,
		OutcomeTokenIDs: tokenIDs,
		OutcomePrices:   prices,
		BestBid:         parseFloatSafe(m.BestBid),
		BestAsk:         parseFloatSafe(m.BestAsk),
		Spread:          parseFloatSafe(m.Spread),
		LastTradePrice:  parseFloatSafe(m.LastTradePrice),
		Volume:          parseFloatSafe(m.Volume),
		Volume24h:       parseFloatSafe(m.Volume24h),
		Liquidity:       parseFloatSafe(m.Liquidity),
		Category:        m.Category,
		EndDate:         parseTimeSafe(m.EndDate),
		Active:          m.Active,
		Closed:          m.Closed,
		Archived:        m.Archived,
		Resolved:        resolved,
		WinningOutcome:  winner,
	}
}

// fitStrings pads with empty strings or truncates to exactly n elements
func fitStrings(in []string, n int) []string {
	for len(in) < n {
		in = append(in, "")
	}
	return in[:n]
}

// fitFloats pads with zeros or truncates to exactly n elements
func fitFloats(in []float64, n int) []float64 {
	for len(in) < n {
		in = append(in, 0)
	}
	return in[:n]
}

// deriveResolution flags a closed market as resolved when one outcome has
// settled at ~1. Gamma has no first-class resolved field on /markets.
func deriveResolution(closed bool, prices []float64) (bool, int) {
	if !closed {
		return false, -1
	}
	for i, p := range prices {
		if p >= 0.999 {
			return true, i
		}
	}
	return false, -1
}

// ParseStringList decodes Gamma's stringified JSON arrays
// (e.g. "[\"Yes\",\"No\"]"). Native arrays are accepted too. Returns nil on
// malformed input so callers can apply their own fallback.
func ParseStringList(v interface{}) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		var out []string
		if err := json.Unmarshal([]byte(val), &out); err != nil {
			return nil
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ParseFloatList decodes Gamma's stringified numeric arrays, where the
// elements themselves are usually strings ("[\"0.4\",\"0.6\"]").
func ParseFloatList(v interface{}) []float64 {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		var raw []interface{}
		if err := json.Unmarshal([]byte(val), &raw); err != nil {
			return nil
		}
		out := make([]float64, 0, len(raw))
		for _, item := range raw {
			out = append(out, parseFloatSafe(item))
		}
		return out
	case []interface{}:
		out := make([]float64, 0, len(val))
		for _, item := range val {
			out = append(out, parseFloatSafe(item))
		}
		return out
	default:
		return nil
	}
}

func parseFloatSafe(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case json.Number:
		f, _ := val.Float64()
		return f
	default:
		return 0
	}
}

func parseTimeSafe(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	return nil
}
