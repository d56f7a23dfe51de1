/**
 * @description
 * Latest-wins buffer between the WebSocket readers and the database flush.
 * Readers overwrite the entry for their (market, token) key; the flusher
 * drains a snapshot, so a slow database never blocks ingestion and only the
 * newest price per token survives a flush interval.
 */

package services

import (
	"sync"

	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/store"
)

const bufferWarnThreshold = 10000

type bufferKey struct {
	marketID string
	tokenID  string
}

// PriceBuffer accumulates realtime price updates between flushes
type PriceBuffer struct {
	mu      sync.Mutex
	entries map[bufferKey]store.PriceUpdate
	warned  bool
}

// NewPriceBuffer creates an empty buffer
func NewPriceBuffer() *PriceBuffer {
	return &PriceBuffer{entries: make(map[bufferKey]store.PriceUpdate)}
}

// Put records an update, replacing any pending one for the same token
func (b *PriceBuffer) Put(u store.PriceUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[bufferKey{marketID: u.MarketID, tokenID: u.TokenID}] = u

	if len(b.entries) > bufferWarnThreshold && !b.warned {
		b.warned = true
		logger.Warn("price buffer exceeded %d pending updates; flush is falling behind", bufferWarnThreshold)
	}
}

// Len returns the number of pending updates
func (b *PriceBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Drain removes and returns every pending update, grouped by market id
func (b *PriceBuffer) Drain() map[string][]store.PriceUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}

	groups := make(map[string][]store.PriceUpdate)
	for key, u := range b.entries {
		groups[key.marketID] = append(groups[key.marketID], u)
	}
	b.entries = make(map[bufferKey]store.PriceUpdate)
	b.warned = false
	return groups
}

// Restore puts a failed flush's updates back, without clobbering anything
// newer that arrived while the flush was in flight.
func (b *PriceBuffer) Restore(groups map[string][]store.PriceUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, updates := range groups {
		for _, u := range updates {
			key := bufferKey{marketID: u.MarketID, tokenID: u.TokenID}
			if _, exists := b.entries[key]; !exists {
				b.entries[key] = u
			}
		}
	}
}
