package market

import (
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/event"
)

// Snapshot is an immutable copy of the store's derived state, taken at a
// single serialization point. Metric calculators consume snapshots only;
// they never touch the store.
type Snapshot struct {
	BookSequence uint64
	BestBid      decimal.Decimal
	BestAsk      decimal.Decimal
	BidVolume    decimal.Decimal
	AskVolume    decimal.Decimal

	Trades []event.Trade // oldest first

	ClosedVolumes []float64 // closed bucket volumes, oldest first
	CurrentVolume float64   // volume accumulated in the open bucket

	VWAPNotional decimal.Decimal
	VWAPVolume   decimal.Decimal

	LastPrice decimal.Decimal
	Ts        time.Time
}

// VWAP returns the session volume-weighted average price. ok is false
// before any volume has traded.
func (s Snapshot) VWAP() (decimal.Decimal, bool) {
	if s.VWAPVolume.IsZero() {
		return decimal.Decimal{}, false
	}
	return s.VWAPNotional.Div(s.VWAPVolume), true
}
