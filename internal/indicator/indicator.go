// Package indicator holds the metric calculators. Each is a pure function
// of a market snapshot; EMA and RSI additionally carry their own small
// incremental state between cycles. Every calculator fails closed: with
// insufficient warm-up data it reports a neutral, HOLD-leaning value
// rather than an error.
package indicator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
	"tradepulse/internal/event"
)

// epsilon guards ratio denominators against division by zero.
const epsilon = 1e-9

// Pressure is the order book pressure: aggregated bid volume over
// aggregated ask volume. An empty book reports the neutral 1.0.
func Pressure(bidVolume, askVolume decimal.Decimal) float64 {
	bid, _ := bidVolume.Float64()
	ask, _ := askVolume.Float64()
	if bid == 0 && ask == 0 {
		return 1.0
	}
	return bid / math.Max(ask, epsilon)
}

// Dominance is the trade dominance ratio: aggressive-buy volume over
// aggressive-sell volume within the look-back window. An empty window
// reports the neutral 1.0.
func Dominance(trades []event.Trade, window time.Duration, now time.Time) float64 {
	cutoff := now.Add(-window)

	var buys, sells float64
	for _, tr := range trades {
		if tr.Ts.Before(cutoff) {
			continue
		}
		qty, _ := tr.Qty.Float64()
		if tr.Aggressor == domain.SideBuy {
			buys += qty
		} else {
			sells += qty
		}
	}
	if buys == 0 && sells == 0 {
		return 1.0
	}
	return buys / math.Max(sells, epsilon)
}

// VolumeZScore standardizes the open bucket's volume against the rolling
// mean and population stddev of the last k closed samples. Neutral 0 until
// k samples exist, and when the baseline has no variance.
func VolumeZScore(closed []float64, current float64, k int) float64 {
	if k <= 0 || len(closed) < k {
		return 0
	}
	window := closed[len(closed)-k:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(k)

	var variance float64
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(k))
	if std < epsilon {
		return 0
	}
	return (current - mean) / std
}

// VWAPDeviation is (last - vwap) / vwap. ok is false until any session
// volume has traded; callers treat that as neutral.
func VWAPDeviation(last, vwapNotional, vwapVolume decimal.Decimal) (float64, bool) {
	if vwapVolume.IsZero() || last.IsZero() {
		return 0, false
	}
	vwap := vwapNotional.Div(vwapVolume)
	if vwap.IsZero() {
		return 0, false
	}
	dev, _ := last.Sub(vwap).Div(vwap).Float64()
	return dev, true
}
