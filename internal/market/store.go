// Package market owns the rolling market state for a single instrument:
// visible order book, trade tape, per-interval volume samples, and the
// session VWAP accumulators.
//
// Mutations are serialized behind one mutex. In the live wiring only the
// engine goroutine writes; the lock additionally lets external readers
// (status endpoint, tests) take consistent copy-on-read snapshots.
package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/event"
)

// Config sizes the rolling windows.
type Config struct {
	BucketInterval time.Duration // volume/price bucket width, wall-clock aligned
	VolumeWindow   int           // closed volume samples retained (K for the z-score)
	TradeCap       int           // trade tape ring capacity
}

// DefaultConfig mirrors the windows the strategy was tuned on: one-minute
// buckets, 20 samples, 256 trades.
func DefaultConfig() Config {
	return Config{
		BucketInterval: time.Minute,
		VolumeWindow:   20,
		TradeCap:       256,
	}
}

// Bucket is one closed interval, returned by Tick for incremental
// consumers (EMA/RSI trackers). Close is zero until the first trade of the
// session; consumers skip such buckets.
type Bucket struct {
	Start  time.Time
	Volume decimal.Decimal
	Close  decimal.Decimal
}

// Store is the mutable market state. All fields are guarded by mu.
type Store struct {
	mu  sync.RWMutex
	cfg Config

	// Visible order book, replaced wholesale per accepted update.
	bookSeq   uint64
	bids      []event.Level
	asks      []event.Level
	bidVolume decimal.Decimal
	askVolume decimal.Decimal

	// Trade tape ring, oldest overwritten first.
	trades []event.Trade
	head   int
	count  int

	// Session VWAP accumulators.
	vwapNotional decimal.Decimal
	vwapVolume   decimal.Decimal

	// Current bucket.
	bucketStart    time.Time
	bucketVolume   decimal.Decimal
	lastTradePrice decimal.Decimal
	prevClose      decimal.Decimal
	volumes        []float64 // closed samples, oldest first

	lastPrice   decimal.Decimal
	lastTs      time.Time
	lastTradeID uint64
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	if cfg.BucketInterval <= 0 {
		cfg.BucketInterval = time.Minute
	}
	if cfg.VolumeWindow <= 0 {
		cfg.VolumeWindow = 20
	}
	if cfg.TradeCap <= 0 {
		cfg.TradeCap = 256
	}
	return &Store{
		cfg:     cfg,
		trades:  make([]event.Trade, cfg.TradeCap),
		volumes: make([]float64, 0, cfg.VolumeWindow),
	}
}

// ApplyBookUpdate replaces the visible ladders. Updates whose sequence is
// at or below the last applied one are stale (duplicate or out-of-order
// delivery) and are dropped silently; the return value only feeds an
// observability counter. The visible sequence is therefore strictly
// increasing across accepted updates.
func (s *Store) ApplyBookUpdate(ev *event.BookUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Sequence <= s.bookSeq {
		return false
	}
	s.bookSeq = ev.Sequence

	s.bids = append(s.bids[:0], ev.Bids...)
	s.asks = append(s.asks[:0], ev.Asks...)

	bidVol := decimal.Zero
	for _, lv := range s.bids {
		bidVol = bidVol.Add(lv.Qty)
	}
	askVol := decimal.Zero
	for _, lv := range s.asks {
		askVol = askVol.Add(lv.Qty)
	}
	s.bidVolume = bidVol
	s.askVolume = askVol
	return true
}

// RecordTrade appends a trade to the tape and folds it into the current
// bucket and the session VWAP accumulators. A redelivered trade (id at or
// below the last recorded one) is dropped, so applying the same event
// twice leaves the store content identical to applying it once.
func (s *Store) RecordTrade(ev *event.Trade) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID != 0 && ev.ID <= s.lastTradeID {
		return false
	}
	if ev.ID != 0 {
		s.lastTradeID = ev.ID
	}

	idx := (s.head + s.count) % s.cfg.TradeCap
	s.trades[idx] = *ev
	if s.count < s.cfg.TradeCap {
		s.count++
	} else {
		s.head = (s.head + 1) % s.cfg.TradeCap
	}

	s.vwapNotional = s.vwapNotional.Add(ev.Price.Mul(ev.Qty))
	s.vwapVolume = s.vwapVolume.Add(ev.Qty)

	s.bucketVolume = s.bucketVolume.Add(ev.Qty)
	s.lastTradePrice = ev.Price

	s.lastPrice = ev.Price
	if ev.Ts.After(s.lastTs) {
		s.lastTs = ev.Ts
	}
	return true
}

// SetLastPrice records the ticker price without touching the tape.
func (s *Store) SetLastPrice(price decimal.Decimal, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPrice = price
	if ts.After(s.lastTs) {
		s.lastTs = ts
	}
}

// Tick closes volume/price buckets whose wall-clock boundary has passed
// and returns them oldest first. Rollover is idempotent: a second call
// past the same boundary closes nothing. Intervals with no trades close
// with zero volume and a carried-forward close price.
func (s *Store) Tick(now time.Time) []Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	boundary := now.Truncate(s.cfg.BucketInterval)
	if s.bucketStart.IsZero() {
		s.bucketStart = boundary
		return nil
	}
	if !boundary.After(s.bucketStart) {
		return nil
	}

	var closed []Bucket
	for s.bucketStart.Before(boundary) {
		close := s.lastTradePrice
		if close.IsZero() {
			close = s.prevClose
		}
		closed = append(closed, Bucket{
			Start:  s.bucketStart,
			Volume: s.bucketVolume,
			Close:  close,
		})
		if !close.IsZero() {
			s.prevClose = close
		}

		vol, _ := s.bucketVolume.Float64()
		s.volumes = append(s.volumes, vol)
		if len(s.volumes) > s.cfg.VolumeWindow {
			s.volumes = s.volumes[1:]
		}

		s.bucketVolume = decimal.Zero
		s.lastTradePrice = decimal.Decimal{}
		s.bucketStart = s.bucketStart.Add(s.cfg.BucketInterval)
	}
	return closed
}

// ResetVWAP clears the session accumulators. Exposed for a session
// boundary policy; not scheduled by default.
func (s *Store) ResetVWAP() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vwapNotional = decimal.Zero
	s.vwapVolume = decimal.Zero
}

// LastPrice returns the most recent traded/ticker price.
func (s *Store) LastPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrice
}

// BookSequence returns the last accepted book sequence (external read).
func (s *Store) BookSequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookSeq
}

// Snapshot returns a consistent, immutable copy of the derived state for
// metric computation. No calculator can observe a half-applied update.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		BookSequence: s.bookSeq,
		BidVolume:    s.bidVolume,
		AskVolume:    s.askVolume,
		VWAPNotional: s.vwapNotional,
		VWAPVolume:   s.vwapVolume,
		LastPrice:    s.lastPrice,
		Ts:           s.lastTs,
	}
	if len(s.bids) > 0 {
		snap.BestBid = s.bids[0].Price
	}
	if len(s.asks) > 0 {
		snap.BestAsk = s.asks[0].Price
	}

	snap.Trades = make([]event.Trade, 0, s.count)
	for i := 0; i < s.count; i++ {
		snap.Trades = append(snap.Trades, s.trades[(s.head+i)%s.cfg.TradeCap])
	}

	snap.ClosedVolumes = append([]float64(nil), s.volumes...)
	snap.CurrentVolume, _ = s.bucketVolume.Float64()
	return snap
}
