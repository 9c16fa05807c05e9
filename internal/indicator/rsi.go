package indicator

// neutralRSI is reported while the tracker is still warming up.
const neutralRSI = 50.0

// RSI maintains Wilder's Relative Strength Index incrementally. The first
// period deltas seed the averages with a simple mean; afterwards gains and
// losses are smoothed as avg = (avg*(period-1) + delta) / period.
type RSI struct {
	period  int
	avgGain float64
	avgLoss float64
	prev    float64
	deltas  int // price deltas consumed
	seeded  bool
}

// NewRSI creates an RSI tracker, conventionally period 14.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update folds one closing price into the index.
func (r *RSI) Update(close float64) {
	if !r.seeded {
		r.prev = close
		r.seeded = true
		return
	}

	delta := close - r.prev
	r.prev = close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	r.deltas++
	if r.deltas <= r.period {
		// Seeding phase: plain average over the first period deltas.
		r.avgGain += (gain - r.avgGain) / float64(r.deltas)
		r.avgLoss += (loss - r.avgLoss) / float64(r.deltas)
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

// Value returns the current index in [0, 100]. Neutral 50 until period
// deltas have been consumed. When the average loss is zero, RS is treated
// as infinite and the index saturates at 100.
func (r *RSI) Value() (value float64, ready bool) {
	if r.deltas < r.period {
		return neutralRSI, false
	}
	if r.avgLoss == 0 {
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}
