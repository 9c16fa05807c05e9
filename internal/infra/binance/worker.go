// Package binance ingests Binance USD-M futures market data over
// WebSocket and normalizes it into engine events. The worker owns the
// connection lifecycle; the engine never sees a raw exchange payload.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
	"tradepulse/internal/event"
)

const (
	maxRetries  = 10
	baseDelay   = 1 * time.Second
	maxDelay    = 60 * time.Second
	readTimeout = 60 * time.Second
	pongWait    = 60 * time.Second
)

// Worker handles the Binance combined-stream WebSocket connection for a
// single symbol: partial book depth, aggregated trades, and the rolling
// ticker.
type Worker struct {
	baseURL string
	symbol  string // lower-case stream symbol, e.g. "ltcusdt"
	inbox   chan<- event.Event

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	dropped uint64 // events lost to a full inbox since start
}

// NewWorker creates a market data worker feeding the given inbox.
func NewWorker(baseURL, symbol string, inbox chan<- event.Event) *Worker {
	return &Worker{
		baseURL: baseURL,
		symbol:  strings.ToLower(symbol),
		inbox:   inbox,
	}
}

// Connect starts the WebSocket connection with automatic reconnection.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Binance panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Binance connection loop stopped")
			return
		default:
		}

		err := w.connect(ctx)
		if err != nil {
			if !domain.IsRetriable(err) {
				slog.Error("Binance connection failed permanently", slog.Any("error", err))
				return
			}
			slog.Warn("Binance connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := w.calculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				slog.Error("Binance max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		w.readLoop(ctx)
	}
}

func (w *Worker) calculateBackoff(retryCount int) time.Duration {
	delay := baseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// streamURL builds the combined-stream URL. Subscription happens in the
// URL itself, so no subscribe frame is needed after connect.
func (w *Worker) streamURL() string {
	streams := []string{
		w.symbol + "@depth20@100ms",
		w.symbol + "@aggTrade",
		w.symbol + "@ticker",
	}
	return fmt.Sprintf("%s?streams=%s", w.baseURL, strings.Join(streams, "/"))
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, w.streamURL(), nil)
	if err != nil {
		// A 4xx handshake rejection means the URL or symbol is wrong;
		// retrying it forever only hides a config mistake.
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return domain.NewFatalNetworkError("dial", fmt.Errorf("%s: %w", resp.Status, err))
		}
		return domain.NewNetworkError("dial", err)
	}

	// Binance pings; answering keeps the server from closing us.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(payload string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	slog.Info("Binance WebSocket connected", slog.String("symbol", w.symbol))
	return nil
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.closeConnection()
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Binance WebSocket read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

// handleMessage routes one combined-stream frame by its stream suffix.
func (w *Worker) handleMessage(message []byte) {
	var msg combinedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Debug("Binance message parse error", slog.Any("error", err))
		return
	}

	switch {
	case strings.Contains(msg.Stream, "@depth"):
		w.handleDepth(msg.Data)
	case strings.HasSuffix(msg.Stream, "@aggTrade"):
		w.handleAggTrade(msg.Data)
	case strings.HasSuffix(msg.Stream, "@ticker"):
		w.handleTicker(msg.Data)
	}
}

func (w *Worker) handleDepth(data json.RawMessage) {
	var p depthPayload
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Debug("Binance depth parse error", slog.Any("error", err))
		return
	}

	ev := event.AcquireBookUpdate()
	ev.Sequence = p.FinalID
	ev.Ts = time.UnixMilli(p.EventTime).UTC()

	var ok bool
	if ev.Bids, ok = appendLevels(ev.Bids, p.Bids); !ok {
		event.ReleaseBookUpdate(ev)
		return
	}
	if ev.Asks, ok = appendLevels(ev.Asks, p.Asks); !ok {
		event.ReleaseBookUpdate(ev)
		return
	}

	if !w.send(ev) {
		event.ReleaseBookUpdate(ev)
	}
}

func (w *Worker) handleAggTrade(data json.RawMessage) {
	var p aggTradePayload
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Debug("Binance trade parse error", slog.Any("error", err))
		return
	}

	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return
	}
	qty, err := decimal.NewFromString(p.Quantity)
	if err != nil {
		return
	}

	ev := event.AcquireTrade()
	ev.ID = p.AggTradeID
	ev.Price = price
	ev.Qty = qty
	ev.Ts = time.UnixMilli(p.TradeTime).UTC()
	if p.BuyerIsMaker {
		ev.Aggressor = domain.SideSell
	} else {
		ev.Aggressor = domain.SideBuy
	}

	if !w.send(ev) {
		event.ReleaseTrade(ev)
	}
}

func (w *Worker) handleTicker(data json.RawMessage) {
	var p tickerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Debug("Binance ticker parse error", slog.Any("error", err))
		return
	}

	price, err := decimal.NewFromString(p.LastPrice)
	if err != nil {
		return
	}

	w.send(&event.Ticker{
		LastPrice: price,
		Ts:        time.UnixMilli(p.EventTime).UTC(),
	})
}

// send delivers without blocking the read loop. A full inbox means the
// engine is behind; dropping here is safe because the store drops stale
// data anyway and fresher frames follow within 100ms.
func (w *Worker) send(ev event.Event) bool {
	select {
	case w.inbox <- ev:
		return true
	default:
		w.dropped++
		if w.dropped%1000 == 1 {
			slog.Warn("engine inbox full, dropping market data",
				slog.Uint64("dropped_total", w.dropped))
		}
		return false
	}
}

// appendLevels parses [price, qty] string pairs into the given slice.
func appendLevels(dst []event.Level, raw [][]string) ([]event.Level, bool) {
	for _, pair := range raw {
		if len(pair) != 2 {
			return dst, false
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return dst, false
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			return dst, false
		}
		dst = append(dst, event.Level{Price: price, Qty: qty})
	}
	return dst, true
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect closes the WebSocket connection and waits for the loop.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	slog.Info("Binance WebSocket disconnected")
}

// IsConnected returns connection status.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
