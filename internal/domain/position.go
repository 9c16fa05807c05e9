package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionFlat  = "FLAT"
	PositionLong  = "LONG"
	PositionShort = "SHORT"
)

// Position is the current holding for the instrument. Exactly one Position
// exists per instrument; only the risk manager mutates it.
type Position struct {
	Side     string // "FLAT", "LONG", "SHORT"
	Entry    decimal.Decimal
	Qty      decimal.Decimal
	Leverage int

	// Stop state. Stop only ever moves in the favorable direction once the
	// trail is armed; it must never loosen.
	InitialStop decimal.Decimal
	Stop        decimal.Decimal
	TrailArmed  bool
	WaterMark   decimal.Decimal // high-water for long, low-water for short

	OpenedAt time.Time
}

// IsOpen reports whether a position is currently held.
func (p *Position) IsOpen() bool {
	return p.Side == PositionLong || p.Side == PositionShort
}

// ClosedTrade is one completed round trip, journaled on exit fill.
type ClosedTrade struct {
	Symbol   string
	Side     string // side of the position, not of the exit order
	Entry    decimal.Decimal
	Exit     decimal.Decimal
	Qty      decimal.Decimal
	Pnl      decimal.Decimal
	OpenedAt time.Time
	ClosedAt time.Time
}
