package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
)

// PriceSource supplies the simulated fill price; the market store
// implements it.
type PriceSource interface {
	LastPrice() decimal.Decimal
}

// PaperExecutor simulates fills so the state machine is exercised
// identically to live mode. Market intents fill at the current market
// price, stop-market intents at their trigger, each after the configured
// latency. An intent arriving before any market price exists is rejected.
type PaperExecutor struct {
	price   PriceSource
	sink    OutcomeSink
	latency time.Duration
}

// NewPaperExecutor creates a paper executor delivering outcomes to sink.
func NewPaperExecutor(price PriceSource, sink OutcomeSink, latency time.Duration) *PaperExecutor {
	return &PaperExecutor{price: price, sink: sink, latency: latency}
}

// Execute implements Executor.
func (p *PaperExecutor) Execute(ctx context.Context, intent domain.OrderIntent) {
	go func() {
		if p.latency > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.latency):
			}
		}

		fillPrice := intent.TriggerPrice
		if fillPrice.IsZero() {
			fillPrice = p.price.LastPrice()
		}

		out := domain.ExecutionOutcome{
			IntentID: intent.ID,
			Kind:     domain.OutcomeFilled,
			Price:    fillPrice,
			Qty:      intent.Qty,
			Ts:       time.Now().UTC(),
		}
		if fillPrice.IsZero() {
			out = domain.ExecutionOutcome{
				IntentID: intent.ID,
				Kind:     domain.OutcomeRejected,
				Reason:   "no market price available",
				Ts:       time.Now().UTC(),
			}
		}
		p.sink(out)
	}()
}
