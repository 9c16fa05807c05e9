package strategy

import "tradepulse/internal/domain"

// Thresholds configures the gate levels. Pressure and Dominance gate
// bullish entries above the threshold and bearish entries below its
// reciprocal, so a single knob keeps both directions symmetric.
type Thresholds struct {
	Pressure      float64 // e.g. 1.2
	Dominance     float64 // e.g. 1.2
	ZScoreMin     float64 // e.g. 1.0
	RSIOverbought float64 // e.g. 70
	RSIOversold   float64 // e.g. 30
}

// GateStrategy combines the metric readings through five ordered,
// conjunctive gates. Every gate must pass for a non-HOLD signal; any
// single failing gate collapses the result to HOLD. A conjunction of
// documented thresholds, rather than a weighted score, keeps the rule
// auditable.
//
// Gate order:
//  1. EMA-12 vs EMA-26 sets the only direction ever considered.
//  2. Book pressure and trade dominance must both confirm it.
//  3. Volume z-score must confirm participation (mirrored for bearish).
//  4. RSI must not sit in the extreme band on the entry side.
//  5. Price must sit on the gated side of session VWAP.
type GateStrategy struct {
	th Thresholds
}

// NewGateStrategy creates the gate evaluator.
func NewGateStrategy(th Thresholds) *GateStrategy {
	return &GateStrategy{th: th}
}

// Evaluate implements Strategy.
func (g *GateStrategy) Evaluate(r domain.Reading) domain.Signal {
	// Gate 1: directional gate. No warmed-up crossover, no trade.
	if !r.EMAReady {
		return domain.SignalHold
	}

	switch {
	case r.EMAFast > r.EMASlow:
		if g.passesBullish(r) {
			return domain.SignalBuy
		}
	case r.EMAFast < r.EMASlow:
		if g.passesBearish(r) {
			return domain.SignalSell
		}
	}
	return domain.SignalHold
}

func (g *GateStrategy) passesBullish(r domain.Reading) bool {
	// Gate 2: flow confirmation.
	if r.Pressure <= g.th.Pressure || r.Dominance <= g.th.Dominance {
		return false
	}
	// Gate 3: participation.
	if r.VolumeZ < g.th.ZScoreMin {
		return false
	}
	// Gate 4: contrarian safety filter, not a trigger.
	if r.RSI > g.th.RSIOverbought {
		return false
	}
	// Gate 5: VWAP agreement.
	return r.VWAPReady && r.VWAPDev > 0
}

func (g *GateStrategy) passesBearish(r domain.Reading) bool {
	if r.Pressure >= 1/g.th.Pressure || r.Dominance >= 1/g.th.Dominance {
		return false
	}
	if r.VolumeZ > -g.th.ZScoreMin {
		return false
	}
	if r.RSI < g.th.RSIOversold {
		return false
	}
	return r.VWAPReady && r.VWAPDev < 0
}
