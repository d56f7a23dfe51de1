/**
 * @description
 * One WebSocket shard of the realtime price feed.
 * Owns a single connection to the CLOB market channel, the subscription
 * handshake for its assigned tokens, keep-alive pings, and the reconnect
 * loop. Parsed price changes are handed to the manager's callback; the shard
 * never touches the database.
 *
 * The server terminates connections that receive bursts of frames, so
 * subscriptions go out in batches of at most 500 token ids with ~25 ms
 * spacing.
 *
 * @dependencies
 * - github.com/gorilla/websocket
 */

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polyndex/indexer/internal/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 10 * 1024 * 1024

	subscribeBatchSize   = 500
	subscribeFrameGap    = 25 * time.Millisecond
	maxReconnectBackoff  = 30 * time.Second
	steadyReconnectDelay = 60 * time.Second
)

// subscribeFrame is the market-channel subscription message. The initial
// frame after open carries no operation; incremental frames set
// operation=subscribe. Note the API field is "assets_ids", not "asset_ids".
type subscribeFrame struct {
	Type      string   `json:"type"`
	Operation string   `json:"operation,omitempty"`
	AssetsIDs []string `json:"assets_ids"`
}

type priceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
}

type priceChangeMessage struct {
	EventType    string        `json:"event_type"`
	Market       string        `json:"market"`
	PriceChanges []priceChange `json:"price_changes"`
}

// priceFunc receives every parsed (token, price) observation
type priceFunc func(tokenID string, price float64, at time.Time)

// wsShard maintains one connection of the sharded fan-out
type wsShard struct {
	index  int
	url    string
	dialer *websocket.Dialer

	onPrice priceFunc
	onState func() // connection state changed; manager recomputes aggregate

	reconnectBase time.Duration
	maxAttempts   int

	mu                sync.Mutex
	conn              *websocket.Conn
	connected         bool
	assigned          []string
	subscribed        map[string]bool
	reconnectAttempts int
}

func newWSShard(index int, url string, reconnectBase time.Duration, maxAttempts int, onPrice priceFunc, onState func()) *wsShard {
	return &wsShard{
		index:         index,
		url:           url,
		dialer:        websocket.DefaultDialer,
		onPrice:       onPrice,
		onState:       onState,
		reconnectBase: reconnectBase,
		maxAttempts:   maxAttempts,
		subscribed:    make(map[string]bool),
	}
}

// setAssigned replaces the shard's token assignment
func (s *wsShard) setAssigned(tokens []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned = tokens
}

func (s *wsShard) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// run drives the connect/read/reconnect cycle until the context is
// cancelled. It never gives up: past maxAttempts the backoff flattens to a
// constant delay.
func (s *wsShard) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			logger.Warn("ws shard %d: connect failed: %v", s.index, err)
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.connected = true
		s.reconnectAttempts = 0
		s.subscribed = make(map[string]bool)
		assigned := append([]string(nil), s.assigned...)
		s.mu.Unlock()
		s.onState()
		logger.Info("ws shard %d: connected, subscribing %d tokens", s.index, len(assigned))

		if err := s.sendSubscriptions(ctx, assigned, true); err != nil {
			logger.Warn("ws shard %d: subscription handshake failed: %v", s.index, err)
		}

		pingDone := make(chan struct{})
		go s.pingLoop(ctx, conn, pingDone)

		s.readLoop(ctx, conn)
		close(pingDone)

		s.mu.Lock()
		s.conn = nil
		s.connected = false
		s.mu.Unlock()
		s.onState()

		if ctx.Err() != nil {
			return
		}
		logger.Warn("ws shard %d: connection lost, reconnecting", s.index)
		if !s.sleepBackoff(ctx) {
			return
		}
	}
}

// subscribeDelta subscribes additional tokens on the live connection. Called
// after a market refresh; no initial frame, no unsubscribe.
func (s *wsShard) subscribeDelta(ctx context.Context) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	var toAdd []string
	for _, token := range s.assigned {
		if !s.subscribed[token] {
			toAdd = append(toAdd, token)
		}
	}
	s.mu.Unlock()

	if len(toAdd) == 0 {
		return nil
	}
	return s.sendSubscriptions(ctx, toAdd, false)
}

func (s *wsShard) sendSubscriptions(ctx context.Context, tokens []string, initial bool) error {
	for start := 0; start < len(tokens); start += subscribeBatchSize {
		end := start + subscribeBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		frame := subscribeFrame{Type: "market", AssetsIDs: batch}
		if !initial || start > 0 {
			frame.Operation = "subscribe"
		}
		if err := s.writeJSON(frame); err != nil {
			return err
		}

		s.mu.Lock()
		for _, token := range batch {
			s.subscribed[token] = true
		}
		s.mu.Unlock()

		if end < len(tokens) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(subscribeFrameGap):
			}
		}
	}
	return nil
}

func (s *wsShard) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return websocket.ErrCloseSent
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}

func (s *wsShard) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws shard %d: read error: %v", s.index, err)
			}
			return
		}
		s.handleFrame(message)
	}
}

// handleFrame parses one inbound frame. Plaintext status tokens (INVALID
// OPERATION, NO NEW ASSETS) and array-shaped orderbook snapshots are ignored;
// only objects carrying price_changes feed the buffer.
func (s *wsShard) handleFrame(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return
	}

	var msg priceChangeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if len(msg.PriceChanges) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, change := range msg.PriceChanges {
		if change.AssetID == "" {
			continue
		}
		price, err := strconv.ParseFloat(change.Price, 64)
		if err != nil {
			continue
		}
		s.onPrice(change.AssetID, price, now)
	}
}

func (s *wsShard) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sleepBackoff waits min(base * 2^(attempts-1), 30s) up to maxAttempts, then
// a constant 60s. Returns false when the context was cancelled.
func (s *wsShard) sleepBackoff(ctx context.Context) bool {
	s.mu.Lock()
	s.reconnectAttempts++
	attempts := s.reconnectAttempts
	s.mu.Unlock()

	var delay time.Duration
	if attempts > s.maxAttempts {
		delay = steadyReconnectDelay
	} else {
		delay = s.reconnectBase << uint(attempts-1)
		if delay > maxReconnectBackoff || delay <= 0 {
			delay = maxReconnectBackoff
		}
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// closeConn force-closes the live connection so the read loop unblocks
func (s *wsShard) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}
