package domain

import "time"

// Signal is the discrete output of a decision cycle.
type Signal int

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

// String returns the string representation of Signal
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	case SignalHold:
		return "HOLD"
	default:
		return "UNKNOWN"
	}
}

// Reading bundles every metric value produced for one decision cycle.
// A Reading is never persisted beyond the cycle that consumed it.
//
// All calculators fail closed: a metric lacking warm-up data reports the
// neutral value noted on its field instead of an error, so a cold start
// can never produce a non-HOLD signal.
type Reading struct {
	Pressure  float64 // bid/ask volume ratio, neutral 1.0
	Dominance float64 // aggressor buy/sell volume ratio, neutral 1.0
	VolumeZ   float64 // standardized current-bucket volume, neutral 0

	EMAFast  float64
	EMASlow  float64
	EMAReady bool // both EMAs warmed past their period

	RSI float64 // Wilder RSI, neutral 50 until warm

	VWAPDev   float64 // (last - vwap) / vwap
	VWAPReady bool    // false until any volume traded this session

	LastPrice float64
	Ts        time.Time
}

// Evaluated pairs a Signal with the Reading that produced it.
type Evaluated struct {
	Signal  Signal
	Reading Reading
}
