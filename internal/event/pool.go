package event

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Pools for the two high-frequency event kinds. Book updates arrive every
// 100ms and trades in bursts; pooling them keeps GC pressure off the
// hotpath.
//
// Usage:
//
//	ev := AcquireBookUpdate()
//	ev.Sequence = seq
//	// ... send through the inbox, the engine releases after processing ...
var bookUpdatePool = sync.Pool{
	New: func() interface{} {
		return &BookUpdate{}
	},
}

// AcquireBookUpdate gets a BookUpdate from the pool.
// The returned event has zero values and must be initialized.
func AcquireBookUpdate() *BookUpdate {
	return bookUpdatePool.Get().(*BookUpdate)
}

// ReleaseBookUpdate returns a BookUpdate to the pool.
// Level slices keep their capacity so steady-state updates reuse them.
func ReleaseBookUpdate(ev *BookUpdate) {
	if ev == nil {
		return
	}
	ev.Sequence = 0
	ev.Bids = ev.Bids[:0]
	ev.Asks = ev.Asks[:0]
	ev.Ts = time.Time{}

	bookUpdatePool.Put(ev)
}

var tradePool = sync.Pool{
	New: func() interface{} {
		return &Trade{}
	},
}

// AcquireTrade gets a Trade from the pool.
func AcquireTrade() *Trade {
	return tradePool.Get().(*Trade)
}

// ReleaseTrade returns a Trade to the pool.
func ReleaseTrade(ev *Trade) {
	if ev == nil {
		return
	}
	ev.ID = 0
	ev.Price = decimal.Decimal{}
	ev.Qty = decimal.Decimal{}
	ev.Aggressor = ""
	ev.Ts = time.Time{}

	tradePool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
// It acquires and releases a batch of events.
func Warmup() {
	const batchSize = 1000

	books := make([]*BookUpdate, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		books = append(books, AcquireBookUpdate())
	}
	for _, ev := range books {
		ReleaseBookUpdate(ev)
	}

	trades := make([]*Trade, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		trades = append(trades, AcquireTrade())
	}
	for _, ev := range trades {
		ReleaseTrade(ev)
	}
}
