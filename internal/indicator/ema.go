package indicator

// EMA maintains an exponential moving average incrementally, one closing
// price per bucket. Smoothing factor is the standard alpha = 2/(period+1).
// The value is only valid once at least period samples have been seen.
type EMA struct {
	period int
	alpha  float64
	value  float64
	count  int
}

// NewEMA creates an EMA tracker for the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Update folds one closing price into the average. The first sample seeds
// the average directly.
func (e *EMA) Update(close float64) {
	if e.count == 0 {
		e.value = close
	} else {
		e.value = e.alpha*close + (1-e.alpha)*e.value
	}
	e.count++
}

// Value returns the current average. ready is false until the tracker has
// warmed up with at least period samples.
func (e *EMA) Value() (value float64, ready bool) {
	return e.value, e.count >= e.period
}

// Count returns the number of samples consumed.
func (e *EMA) Count() int { return e.count }
